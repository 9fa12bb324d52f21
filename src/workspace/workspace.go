// Package workspace lists, reads and writes files under the project root.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// NoWorkspace is the listing returned when no root is open.
const NoWorkspace = "No workspace open."

var (
	ErrNoWorkspace      = errors.New("no open folder in workspace")
	ErrOutsideWorkspace = errors.New("path escapes the workspace root")
	ErrFileSystem       = errors.New("file system error")
)

// noise directories and files never shown in the structure listing.
var noise = map[string]struct{}{
	"node_modules": {}, ".git": {}, ".vscode": {}, "venv": {}, "env": {}, "__pycache__": {},
}

// Workspace is a project root on an afero filesystem. A nil *Workspace behaves as
// "no workspace open".
type Workspace struct {
	fs      afero.Fs
	root    string
	ignore  []string
	tracker *ChangeTracker
}

// New opens root on fsys. ignore holds extra doublestar patterns matched against
// slash-separated paths relative to root.
func New(fsys afero.Fs, root string, ignore []string) (*Workspace, error) {
	for _, pat := range ignore {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pat)
		}
	}
	return &Workspace{
		fs:      fsys,
		root:    filepath.Clean(root),
		ignore:  ignore,
		tracker: NewChangeTracker(),
	}, nil
}

func (w *Workspace) Root() string {
	if w == nil {
		return ""
	}
	return w.root
}

// Changes returns the apply history of this workspace.
func (w *Workspace) Changes() []Change {
	if w == nil {
		return nil
	}
	return w.tracker.History()
}

// Structure renders the project tree: one "- name" line per entry, children indented by
// two spaces, siblings sorted by name.
func (w *Workspace) Structure() (string, error) {
	if w == nil || w.root == "" {
		return NoWorkspace, nil
	}
	var b strings.Builder
	if err := w.list(&b, w.root, ""); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileSystem, err)
	}
	return b.String(), nil
}

func (w *Workspace) list(b *strings.Builder, dir, prefix string) error {
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		if w.ignored(abs, e.Name()) {
			continue
		}
		fmt.Fprintf(b, "%s- %s\n", prefix, e.Name())
		if e.IsDir() {
			if err := w.list(b, abs, prefix+"  "); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Workspace) ignored(abs, name string) bool {
	if _, ok := noise[name]; ok {
		return true
	}
	if len(w.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pat := range w.ignore {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

// Resolve maps a workspace-relative path to an absolute one. A leading slash is
// relative to the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	if w == nil || w.root == "" {
		return "", ErrNoWorkspace
	}
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	r, err := filepath.Rel(w.root, abs)
	if err != nil || r == "." || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, rel)
	}
	return abs, nil
}

// ReadFile returns the content of rel. ok is false when the file cannot be read.
func (w *Workspace) ReadFile(rel string) (content string, ok bool) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return "", false
	}
	data, err := afero.ReadFile(w.fs, abs)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Change describes one applied file.
type Change struct {
	Path    string `json:"filePath"`
	Created bool   `json:"created"`
	Diff    string `json:"diff,omitempty"`
}

// Apply writes code to rel, creating parent directories as needed.
func (w *Workspace) Apply(rel, code string) (Change, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return Change{}, err
	}
	old, existed := w.ReadFile(rel)

	if err := w.ensureDir(filepath.Dir(abs)); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrFileSystem, err)
	}
	if err := afero.WriteFile(w.fs, abs, []byte(code), 0o644); err != nil {
		return Change{}, fmt.Errorf("%w: %v", ErrFileSystem, err)
	}

	var oldB []byte
	if existed {
		oldB = []byte(old)
	}
	c := Change{
		Path:    rel,
		Created: !existed,
		Diff:    Diff(rel, oldB, []byte(code)),
	}
	w.tracker.Record(c)
	return c, nil
}

// ensureDir creates dir. An "already exists" failure is tolerated; anything else aborts.
func (w *Workspace) ensureDir(dir string) error {
	err := w.fs.MkdirAll(dir, 0o755)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return nil
	}
	return err
}
