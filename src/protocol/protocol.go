// Package protocol defines the tagged messages exchanged between the host and a front-end
// (the terminal panel or an editor webview on the bridge).
package protocol

import (
	"sync"

	"github.com/Protocol-Lattice/specgen/src/plan"
)

type Command string

// Front-end to host.
const (
	GeneratePlan Command = "generatePlan"
	GenerateCode Command = "generateCode"
	ApplyCode    Command = "applyCode"
)

// Host to front-end.
const (
	PlanGenerated Command = "planGenerated"
	CodeGenerated Command = "codeGenerated"
	Notify        Command = "notify"
	FileApplied   Command = "fileApplied"
)

// Inbound is a message from the front-end. Only the fields of its command are set.
type Inbound struct {
	Command   Command    `json:"command"`
	RequestID uint64     `json:"requestId,omitempty"`
	Text      string     `json:"text,omitempty"`
	Step      *plan.Step `json:"step,omitempty"`
	FilePath  string     `json:"filePath,omitempty"`
	Code      string     `json:"code,omitempty"`
}

// Outbound is a message to the front-end. Error is set on failed results; the payload
// still carries the fallback value.
type Outbound struct {
	Command   Command `json:"command"`
	RequestID uint64  `json:"requestId,omitempty"`
	Payload   any     `json:"payload,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type PlanPayload struct {
	Plan plan.Plan `json:"plan"`
}

type CodePayload struct {
	Step plan.Step `json:"step"`
	Code string    `json:"code"`
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// NoticePayload is a transient notification for the user.
type NoticePayload struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// AppliedPayload tells the front-end a file was written and should be opened.
type AppliedPayload struct {
	FilePath   string `json:"filePath"`
	Created    bool   `json:"created"`
	Diff       string `json:"diff,omitempty"`
	HookOutput string `json:"hookOutput,omitempty"`
}

// NewNotice builds a notify message.
func NewNotice(level Level, message string) Outbound {
	return Outbound{Command: Notify, Payload: NoticePayload{Level: level, Message: message}}
}

// Emitter delivers outbound messages to a front-end.
type Emitter interface {
	Post(Outbound)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Outbound)

func (f EmitterFunc) Post(o Outbound) { f(o) }

// Collector buffers posted messages. It is safe for concurrent use.
type Collector struct {
	mu  sync.Mutex
	out []Outbound
}

func (c *Collector) Post(o Outbound) {
	c.mu.Lock()
	c.out = append(c.out, o)
	c.mu.Unlock()
}

// Drain returns and clears the buffered messages.
func (c *Collector) Drain() []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.out
	c.out = nil
	return out
}
