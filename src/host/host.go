// Package host dispatches front-end messages to the completion service and the workspace.
// Every failure is converted here into a notification plus a fallback result.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Protocol-Lattice/specgen/src/ai"
	"github.com/Protocol-Lattice/specgen/src/hooks"
	"github.com/Protocol-Lattice/specgen/src/metrics"
	"github.com/Protocol-Lattice/specgen/src/plan"
	"github.com/Protocol-Lattice/specgen/src/protocol"
	"github.com/Protocol-Lattice/specgen/src/workspace"
)

// User-facing notification texts.
const (
	MsgPlanFailed  = "Failed to generate plan from AI. Check the extension logs for details."
	MsgCodeFailed  = "Failed to generate code for a step."
	MsgNoWorkspace = "No open folder in workspace."
)

type Options struct {
	Workspace *workspace.Workspace
	Hook      *hooks.PostApply
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
}

// Host is safe for concurrent use; each Handle call is independent.
type Host struct {
	svc     *ai.Service
	ws      *workspace.Workspace
	hook    *hooks.PostApply
	log     *slog.Logger
	metrics *metrics.Recorder
}

func New(svc *ai.Service, opts Options) *Host {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Host{
		svc:     svc,
		ws:      opts.Workspace,
		hook:    opts.Hook,
		log:     log,
		metrics: opts.Metrics,
	}
}

// Workspace returns the workspace the host writes to, or nil.
func (h *Host) Workspace() *workspace.Workspace { return h.ws }

// Handle processes one inbound message and posts its responses to out.
// It blocks for the duration of any completion call.
func (h *Host) Handle(ctx context.Context, in protocol.Inbound, out protocol.Emitter) {
	switch in.Command {
	case protocol.GeneratePlan:
		h.generatePlan(ctx, in, out)
	case protocol.GenerateCode:
		h.generateCode(ctx, in, out)
	case protocol.ApplyCode:
		h.applyCode(ctx, in, out)
	default:
		h.log.Warn("unknown command", "command", in.Command)
		out.Post(protocol.NewNotice(protocol.LevelError, fmt.Sprintf("Unknown command %q.", in.Command)))
	}
}

func (h *Host) generatePlan(ctx context.Context, in protocol.Inbound, out protocol.Emitter) {
	res := ai.PlanResult{Plan: plan.Plan{}}
	structure, err := h.ws.Structure()
	if err != nil {
		res.Err = err
	} else {
		res = h.svc.GeneratePlan(ctx, in.Text, structure)
	}

	msg := protocol.Outbound{
		Command:   protocol.PlanGenerated,
		RequestID: in.RequestID,
		Payload:   protocol.PlanPayload{Plan: res.Plan},
	}
	if res.Failed() {
		h.log.Error("plan generation failed", "request_id", in.RequestID, "error", res.Err)
		msg.Error = res.Err.Error()
		out.Post(protocol.NewNotice(protocol.LevelError, MsgPlanFailed))
	} else {
		h.log.Info("plan generated", "request_id", in.RequestID, "steps", len(res.Plan))
	}
	out.Post(msg)
}

func (h *Host) generateCode(ctx context.Context, in protocol.Inbound, out protocol.Emitter) {
	step, err := validStep(in.Step)
	if err != nil {
		out.Post(protocol.NewNotice(protocol.LevelError, fmt.Sprintf("Invalid step: %v", err)))
		return
	}

	var existing *string
	if content, ok := h.ws.ReadFile(step.File); ok {
		existing = &content
	}
	res := h.svc.GenerateCode(ctx, step, existing)

	msg := protocol.Outbound{
		Command:   protocol.CodeGenerated,
		RequestID: in.RequestID,
		Payload:   protocol.CodePayload{Step: step, Code: res.Code},
	}
	if res.Failed() {
		h.log.Error("code generation failed", "request_id", in.RequestID, "file", step.File, "error", res.Err)
		msg.Error = res.Err.Error()
		out.Post(protocol.NewNotice(protocol.LevelError, MsgCodeFailed))
	} else {
		h.log.Info("code generated", "request_id", in.RequestID, "file", step.File, "bytes", len(res.Code))
	}
	out.Post(msg)
}

func (h *Host) applyCode(ctx context.Context, in protocol.Inbound, out protocol.Emitter) {
	change, err := h.ws.Apply(in.FilePath, in.Code)
	h.metrics.Applied(err == nil)
	if err != nil {
		h.log.Error("apply failed", "file", in.FilePath, "error", err)
		if errors.Is(err, workspace.ErrNoWorkspace) {
			out.Post(protocol.NewNotice(protocol.LevelError, MsgNoWorkspace))
			return
		}
		out.Post(protocol.NewNotice(protocol.LevelError,
			fmt.Sprintf("Failed to apply code to %s. Error: %v", in.FilePath, err)))
		return
	}
	h.log.Info("applied", "file", change.Path, "created", change.Created)
	out.Post(protocol.NewNotice(protocol.LevelInfo, fmt.Sprintf("Successfully updated %s", in.FilePath)))

	payload := protocol.AppliedPayload{
		FilePath: change.Path,
		Created:  change.Created,
		Diff:     change.Diff,
	}
	if h.hook != nil {
		hookOut, err := h.hook.Run(ctx, change.Path, in.Code)
		if err != nil {
			h.log.Warn("post-apply hook failed", "tool", h.hook.Tool(), "error", err)
			out.Post(protocol.NewNotice(protocol.LevelWarning, err.Error()))
		}
		payload.HookOutput = hookOut
	}
	out.Post(protocol.Outbound{Command: protocol.FileApplied, RequestID: in.RequestID, Payload: payload})
}

func validStep(s *plan.Step) (plan.Step, error) {
	if s == nil {
		return plan.Step{}, errors.New("missing step")
	}
	if s.File == "" {
		return plan.Step{}, errors.New("missing file")
	}
	action, err := plan.ParseAction(string(s.Action))
	if err != nil {
		return plan.Step{}, err
	}
	return plan.Step{File: s.File, Action: action, Description: s.Description}, nil
}
