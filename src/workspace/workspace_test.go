package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memWorkspace(t *testing.T, files map[string]string, ignore ...string) (*Workspace, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, content := range files {
		abs := filepath.Join("/project", path)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, afero.WriteFile(fsys, abs, []byte(content), 0o644))
	}
	require.NoError(t, fsys.MkdirAll("/project", 0o755))
	w, err := New(fsys, "/project", ignore)
	require.NoError(t, err)
	return w, fsys
}

func TestStructureListing(t *testing.T) {
	w, _ := memWorkspace(t, map[string]string{
		"src/server.ts":           "",
		"src/routes/users.ts":     "",
		"package.json":            "{}",
		"README.md":               "",
		"node_modules/x/index.js": "",
		".git/HEAD":               "",
		"src/__pycache__/a.pyc":   "",
		".vscode/settings.json":   "",
		"venv/bin/python":         "",
		"env/bin/python":          "",
	})

	got, err := w.Structure()
	require.NoError(t, err)
	want := "- README.md\n" +
		"- package.json\n" +
		"- src\n" +
		"  - routes\n" +
		"    - users.ts\n" +
		"  - server.ts\n"
	assert.Equal(t, want, got)
}

func TestStructureExtraIgnoreGlobs(t *testing.T) {
	w, _ := memWorkspace(t, map[string]string{
		"src/a.ts":       "",
		"dist/bundle.js": "",
		"yarn.lock":      "",
		"src/gen/x.ts":   "",
	}, "dist", "**/*.lock", "src/gen")

	got, err := w.Structure()
	require.NoError(t, err)
	assert.Equal(t, "- src\n  - a.ts\n", got)
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "/p", []string{"[unclosed"})
	assert.Error(t, err)
}

func TestNilWorkspace(t *testing.T) {
	var w *Workspace
	s, err := w.Structure()
	require.NoError(t, err)
	assert.Equal(t, NoWorkspace, s)

	_, ok := w.ReadFile("a.ts")
	assert.False(t, ok)

	_, err = w.Apply("a.ts", "x")
	assert.True(t, errors.Is(err, ErrNoWorkspace))
}

func TestStructureMissingRoot(t *testing.T) {
	w, err := New(afero.NewMemMapFs(), "/does/not/exist", nil)
	require.NoError(t, err)
	_, err = w.Structure()
	assert.True(t, errors.Is(err, ErrFileSystem))
}

func TestReadFile(t *testing.T) {
	w, _ := memWorkspace(t, map[string]string{"src/server.ts": "export const app = 1;"})

	content, ok := w.ReadFile("src/server.ts")
	assert.True(t, ok)
	assert.Equal(t, "export const app = 1;", content)

	_, ok = w.ReadFile("src/missing.ts")
	assert.False(t, ok)
}

func TestApplyCreatesParentsAndReportsCreated(t *testing.T) {
	w, fsys := memWorkspace(t, nil)

	c, err := w.Apply("src/deep/health.ts", "export const ok = true;\n")
	require.NoError(t, err)
	assert.True(t, c.Created)
	assert.Contains(t, c.Diff, "--- /dev/null")
	assert.Contains(t, c.Diff, "+export const ok = true;")

	data, err := afero.ReadFile(fsys, "/project/src/deep/health.ts")
	require.NoError(t, err)
	assert.Equal(t, "export const ok = true;\n", string(data))
}

func TestApplyOverwritesExisting(t *testing.T) {
	w, fsys := memWorkspace(t, map[string]string{"src/server.ts": "a\nb\nc\n"})

	c, err := w.Apply("src/server.ts", "a\nB\nc\n")
	require.NoError(t, err)
	assert.False(t, c.Created)
	assert.Contains(t, c.Diff, "@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n")

	data, _ := afero.ReadFile(fsys, "/project/src/server.ts")
	assert.Equal(t, "a\nB\nc\n", string(data))

	history := w.Changes()
	require.Len(t, history, 1)
	assert.Equal(t, "src/server.ts", history[0].Path)
}

func TestApplyLeadingSlashIsRootRelative(t *testing.T) {
	w, fsys := memWorkspace(t, nil)
	_, err := w.Apply("/src/a.ts", "x")
	require.NoError(t, err)
	ok, _ := afero.Exists(fsys, "/project/src/a.ts")
	assert.True(t, ok)
}

func TestApplyRejectsEscapes(t *testing.T) {
	w, fsys := memWorkspace(t, nil)
	for _, p := range []string{"../outside.ts", "src/../../outside.ts", "", "."} {
		_, err := w.Apply(p, "x")
		assert.True(t, errors.Is(err, ErrOutsideWorkspace), "path %q: %v", p, err)
	}
	ok, _ := afero.Exists(fsys, "/outside.ts")
	assert.False(t, ok)
}

func TestApplyBlockedParentFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "src"), []byte("not a dir"), 0o644))
	w, err := New(afero.NewOsFs(), root, nil)
	require.NoError(t, err)

	_, err = w.Apply("src/a.ts", "x")
	assert.True(t, errors.Is(err, ErrFileSystem), "got %v", err)
}

func TestApplyExistingParentTolerated(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	w, err := New(afero.NewOsFs(), root, nil)
	require.NoError(t, err)

	_, err = w.Apply("src/a.ts", "x")
	require.NoError(t, err)
}

func TestWatchReportsChanges(t *testing.T) {
	root := t.TempDir()
	w, err := New(afero.NewOsFs(), root, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan string, 16)
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(rel string) { changed <- rel }) }()

	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "new.ts"), []byte("x"), 0o644))

	select {
	case rel := <-changed:
		assert.True(t, strings.HasPrefix(rel, "new.ts"))
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchRequiresOsFs(t *testing.T) {
	w, _ := memWorkspace(t, nil)
	err := w.Watch(context.Background(), func(string) {})
	assert.True(t, errors.Is(err, ErrWatchUnsupported))
}
