package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Protocol-Lattice/specgen/src/app"
	"github.com/Protocol-Lattice/specgen/src/plan"
)

type replyChat struct{ reply string }

func (c replyChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.reply}}},
	}, nil
}

// executeCommand runs a fresh command tree against an in-memory workspace.
func executeCommand(t *testing.T, fs afero.Fs, reply, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SPECGEN_API_KEY", "gsk-test")
	t.Chdir(t.TempDir())
	require.NoError(t, fs.MkdirAll("/proj", 0o755))

	root := NewRootCmd(app.Options{Fs: fs, Chat: replyChat{reply: reply}})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--workspace", "/proj"}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

const onePlan = `{"plan":[{"file":"src/health.ts","action":"CREATE","description":"Add health handler"}]}`

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd(app.Options{})
	assert.Equal(t, "specgen", root.Use)

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"bridge", "plan", "code"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestPlanJSON(t *testing.T) {
	out, _, err := executeCommand(t, afero.NewMemMapFs(), onePlan, "", "plan", "Add", "a", "health", "check")
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":[{"file":"src/health.ts","action":"CREATE","description":"Add health handler"}]}`, out)
}

func TestPlanYAML(t *testing.T) {
	out, _, err := executeCommand(t, afero.NewMemMapFs(), onePlan, "", "plan", "--format", "yaml", "Add a health check")
	require.NoError(t, err)

	var got struct {
		Plan plan.Plan `yaml:"plan"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, plan.Plan{{File: "src/health.ts", Action: plan.Create, Description: "Add health handler"}}, got.Plan)
}

func TestPlanBadFormat(t *testing.T) {
	_, _, err := executeCommand(t, afero.NewMemMapFs(), onePlan, "", "plan", "--format", "xml", "x")
	assert.Error(t, err)
}

func TestPlanFailure(t *testing.T) {
	_, stderr, err := executeCommand(t, afero.NewMemMapFs(), "no json here", "", "plan", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to generate plan from AI.")
	assert.Contains(t, stderr, "[error]")
}

func TestCodePrintsCode(t *testing.T) {
	out, _, err := executeCommand(t, afero.NewMemMapFs(), "```ts\nexport {};\n```", "",
		"code", "--file", "src/a.ts", "--action", "create", "-d", "empty module")
	require.NoError(t, err)
	assert.Equal(t, "export {};\n", out)
}

func TestCodeApplyWritesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	out, stderr, err := executeCommand(t, fs, "export {};", "",
		"code", "--file", "src/a.ts", "--action", "CREATE", "-d", "empty module", "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "+export {};")
	assert.Contains(t, stderr, "Successfully updated src/a.ts")

	data, err := afero.ReadFile(fs, "/proj/src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {};", string(data))
}

func TestCodeRejectsUnknownAction(t *testing.T) {
	_, _, err := executeCommand(t, afero.NewMemMapFs(), "", "",
		"code", "--file", "a", "--action", "DELETE", "-d", "x")
	assert.Error(t, err)
}

func TestBridgeRoundTrip(t *testing.T) {
	stdin := `{"command":"generatePlan","requestId":1,"text":"Add a health check"}` + "\n"
	out, _, err := executeCommand(t, afero.NewMemMapFs(), onePlan, stdin, "bridge")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"command":"planGenerated","requestId":1,"payload":{"plan":[{"file":"src/health.ts","action":"CREATE","description":"Add health handler"}]}}`,
		strings.TrimSpace(out))
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SPECGEN_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Chdir(t.TempDir())

	root := NewRootCmd(app.Options{Fs: afero.NewMemMapFs()})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"plan", "x"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}
