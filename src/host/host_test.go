package host

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Protocol-Lattice/specgen/src/ai"
	"github.com/Protocol-Lattice/specgen/src/hooks"
	"github.com/Protocol-Lattice/specgen/src/plan"
	"github.com/Protocol-Lattice/specgen/src/protocol"
	"github.com/Protocol-Lattice/specgen/src/workspace"
)

type fakeChat struct {
	mu      sync.Mutex
	replies []string
	err     error
	reqs    []openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	var content string
	if len(f.replies) > 0 {
		content, f.replies = f.replies[0], f.replies[1:]
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: content}}},
	}, nil
}

type fakeCaller struct {
	out any
	err error
}

func (f fakeCaller) CallTool(context.Context, string, map[string]any) (any, error) {
	return f.out, f.err
}

func newHost(t *testing.T, chat *fakeChat, files map[string]string) (*Host, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, c := range files {
		require.NoError(t, afero.WriteFile(fs, "/proj/"+p, []byte(c), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/proj", 0o755))
	ws, err := workspace.New(fs, "/proj", nil)
	require.NoError(t, err)
	svc := ai.NewServiceWithClient(chat, ai.Options{Model: "gemma2-9b-it", Temperature: 0.1})
	return New(svc, Options{Workspace: ws}), fs
}

func notices(out []protocol.Outbound) []protocol.NoticePayload {
	var n []protocol.NoticePayload
	for _, o := range out {
		if o.Command == protocol.Notify {
			n = append(n, o.Payload.(protocol.NoticePayload))
		}
	}
	return n
}

func last(t *testing.T, out []protocol.Outbound, cmd protocol.Command) protocol.Outbound {
	t.Helper()
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Command == cmd {
			return out[i]
		}
	}
	t.Fatalf("no %s message in %v", cmd, out)
	return protocol.Outbound{}
}

func TestGeneratePlan(t *testing.T) {
	chat := &fakeChat{replies: []string{`{"plan":[{"file":"src/health.ts","action":"CREATE","description":"Add endpoint"}]}`}}
	h, _ := newHost(t, chat, map[string]string{"src/index.ts": "x"})

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.GeneratePlan, Text: "Add a health check", RequestID: 1}, &c)
	out := c.Drain()

	require.Len(t, out, 1)
	msg := last(t, out, protocol.PlanGenerated)
	assert.Equal(t, uint64(1), msg.RequestID)
	assert.Empty(t, msg.Error)
	assert.Equal(t, plan.Plan{{File: "src/health.ts", Action: plan.Create, Description: "Add endpoint"}},
		msg.Payload.(protocol.PlanPayload).Plan)

	user := chat.reqs[0].Messages[1].Content
	assert.Contains(t, user, "- src\n  - index.ts\n")
	assert.Contains(t, user, "Add a health check")
	require.NotNil(t, chat.reqs[0].ResponseFormat)
}

func TestGeneratePlanFailureNotifies(t *testing.T) {
	h, _ := newHost(t, &fakeChat{replies: []string{"I cannot do that"}}, nil)

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.GeneratePlan, Text: "x", RequestID: 2}, &c)
	out := c.Drain()

	msg := last(t, out, protocol.PlanGenerated)
	assert.NotEmpty(t, msg.Error)
	assert.Empty(t, msg.Payload.(protocol.PlanPayload).Plan)
	assert.Equal(t, []protocol.NoticePayload{{Level: protocol.LevelError, Message: MsgPlanFailed}}, notices(out))
}

func TestGenerateCodeModifyIncludesExisting(t *testing.T) {
	chat := &fakeChat{replies: []string{"```ts\nexport const a = 2;\n```"}}
	h, _ := newHost(t, chat, map[string]string{"src/a.ts": "export const a = 1;"})

	step := &plan.Step{File: "src/a.ts", Action: plan.Modify, Description: "bump"}
	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.GenerateCode, Step: step, RequestID: 5}, &c)
	out := c.Drain()

	msg := last(t, out, protocol.CodeGenerated)
	assert.Equal(t, uint64(5), msg.RequestID)
	assert.Equal(t, protocol.CodePayload{Step: *step, Code: "export const a = 2;"}, msg.Payload)
	assert.Contains(t, chat.reqs[0].Messages[1].Content, "export const a = 1;")
	assert.Nil(t, chat.reqs[0].ResponseFormat)
}

func TestGenerateCodeFailureUsesPlaceholder(t *testing.T) {
	h, _ := newHost(t, &fakeChat{err: errors.New("connection refused")}, nil)

	step := &plan.Step{File: "src/new.ts", Action: plan.Create, Description: "new"}
	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.GenerateCode, Step: step}, &c)
	out := c.Drain()

	msg := last(t, out, protocol.CodeGenerated)
	assert.Equal(t, ai.FailedCodePlaceholder, msg.Payload.(protocol.CodePayload).Code)
	assert.NotEmpty(t, msg.Error)
	assert.Equal(t, MsgCodeFailed, notices(out)[0].Message)
}

func TestGenerateCodeRejectsInvalidStep(t *testing.T) {
	chat := &fakeChat{}
	h, _ := newHost(t, chat, nil)

	for _, step := range []*plan.Step{nil, {Action: plan.Create}, {File: "a", Action: "DELETE"}} {
		var c protocol.Collector
		h.Handle(context.Background(), protocol.Inbound{Command: protocol.GenerateCode, Step: step}, &c)
		out := c.Drain()
		require.Len(t, out, 1)
		assert.Equal(t, protocol.Notify, out[0].Command)
	}
	assert.Empty(t, chat.reqs)
}

func TestApplyCodeWritesFile(t *testing.T) {
	h, fs := newHost(t, &fakeChat{}, nil)

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.ApplyCode, FilePath: "src/deep/new.ts", Code: "export {}\n"}, &c)
	out := c.Drain()

	data, err := afero.ReadFile(fs, "/proj/src/deep/new.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}\n", string(data))

	assert.Equal(t, []protocol.NoticePayload{{Level: protocol.LevelInfo, Message: "Successfully updated src/deep/new.ts"}}, notices(out))
	applied := last(t, out, protocol.FileApplied).Payload.(protocol.AppliedPayload)
	assert.True(t, applied.Created)
	assert.Contains(t, applied.Diff, "+export {}")
}

func TestApplyCodeWithoutWorkspace(t *testing.T) {
	h := New(ai.NewServiceWithClient(&fakeChat{}, ai.Options{}), Options{})

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.ApplyCode, FilePath: "a.ts", Code: "x"}, &c)
	assert.Equal(t, []protocol.NoticePayload{{Level: protocol.LevelError, Message: MsgNoWorkspace}}, notices(c.Drain()))
}

func TestApplyCodeOutsideRoot(t *testing.T) {
	h, _ := newHost(t, &fakeChat{}, nil)

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.ApplyCode, FilePath: "../escape.ts", Code: "x"}, &c)
	n := notices(c.Drain())
	require.Len(t, n, 1)
	assert.Equal(t, protocol.LevelError, n[0].Level)
	assert.True(t, strings.HasPrefix(n[0].Message, "Failed to apply code to ../escape.ts. Error: "))
}

func TestApplyCodeRunsHook(t *testing.T) {
	h, _ := newHost(t, &fakeChat{}, nil)
	h.hook = hooks.NewPostApply(fakeCaller{out: "formatted"}, "fmt")

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.ApplyCode, FilePath: "a.ts", Code: "x"}, &c)
	applied := last(t, c.Drain(), protocol.FileApplied).Payload.(protocol.AppliedPayload)
	assert.Equal(t, "formatted", applied.HookOutput)
}

func TestApplyCodeHookFailureWarns(t *testing.T) {
	h, fs := newHost(t, &fakeChat{}, nil)
	h.hook = hooks.NewPostApply(fakeCaller{err: errors.New("lint crashed")}, "lint")

	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: protocol.ApplyCode, FilePath: "a.ts", Code: "x"}, &c)
	out := c.Drain()

	ok, err := afero.Exists(fs, "/proj/a.ts")
	require.NoError(t, err)
	assert.True(t, ok)
	n := notices(out)
	require.Len(t, n, 2)
	assert.Equal(t, protocol.LevelWarning, n[1].Level)
	assert.Contains(t, n[1].Message, "lint crashed")
	last(t, out, protocol.FileApplied)
}

func TestUnknownCommand(t *testing.T) {
	h, _ := newHost(t, &fakeChat{}, nil)
	var c protocol.Collector
	h.Handle(context.Background(), protocol.Inbound{Command: "deleteEverything"}, &c)
	n := notices(c.Drain())
	require.Len(t, n, 1)
	assert.Equal(t, protocol.LevelError, n[0].Level)
}
