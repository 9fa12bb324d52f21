// Package ai talks to an OpenAI-compatible chat-completion endpoint to produce plans and code.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Protocol-Lattice/specgen/src/metrics"
	"github.com/Protocol-Lattice/specgen/src/plan"
	"github.com/Protocol-Lattice/specgen/src/prompt"
)

// Operation labels.
const (
	OpPlan = "plan"
	OpCode = "code"
)

// ChatClient is the subset of *openai.Client the service needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Service.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	// Timeout bounds one completion. Zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
}

// Service issues plan and code completions. It is safe for concurrent use.
// The zero value is unavailable: every call fails with ErrServiceUnavailable.
type Service struct {
	client      ChatClient
	model       string
	temperature float32
	timeout     time.Duration
	log         *slog.Logger
	metrics     *metrics.Recorder
}

// NewService builds a service backed by go-openai. An empty API key is a configuration error.
func NewService(opts Options) (*Service, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrConfiguration)
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return NewServiceWithClient(openai.NewClientWithConfig(cfg), opts), nil
}

// NewServiceWithClient wraps an existing chat client.
func NewServiceWithClient(client ChatClient, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		log:         log,
		metrics:     opts.Metrics,
	}
}

// Model returns the configured model identifier.
func (s *Service) Model() string {
	if s == nil {
		return ""
	}
	return s.model
}

// Request is one two-message completion.
type Request struct {
	Operation string
	Prompt    prompt.Pair
	// JSON asks the endpoint for a JSON object response.
	JSON bool
}

// Complete sends req and returns the raw content of the first choice.
func (s *Service) Complete(ctx context.Context, req Request) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrServiceUnavailable
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	creq := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt.User},
		},
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	s.log.Debug("completion request",
		"operation", req.Operation,
		"model", s.model,
		"prompt_tokens_est", req.Prompt.Tokens())

	resp, err := s.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// PlanResult is the outcome of a plan request. On failure Plan is empty and Err holds the cause.
type PlanResult struct {
	Plan plan.Plan
	Err  error
}

// Failed reports whether the request did not produce a plan.
func (r PlanResult) Failed() bool { return r.Err != nil }

// CodeResult is the outcome of a code request. On failure Code holds a placeholder comment.
type CodeResult struct {
	Code string
	Err  error
}

// Failed reports whether the request did not produce code.
func (r CodeResult) Failed() bool { return r.Err != nil }

// GeneratePlan asks for a plan implementing request against the given structure listing.
// It never returns a fault; failures fold into an empty plan.
func (s *Service) GeneratePlan(ctx context.Context, request, structure string) PlanResult {
	start := time.Now()
	res := s.generatePlan(ctx, request, structure)
	s.observe(OpPlan, start, res.Err)
	return res
}

func (s *Service) generatePlan(ctx context.Context, request, structure string) PlanResult {
	content, err := s.Complete(ctx, Request{
		Operation: OpPlan,
		Prompt:    prompt.ForPlan(request, structure),
		JSON:      true,
	})
	if err != nil {
		return PlanResult{Plan: plan.Plan{}, Err: err}
	}
	p, err := plan.Decode(content)
	if err != nil {
		return PlanResult{Plan: plan.Plan{}, Err: err}
	}
	return PlanResult{Plan: p}
}

// GenerateCode asks for the full content of step.File. A nil existing means the file is new.
func (s *Service) GenerateCode(ctx context.Context, step plan.Step, existing *string) CodeResult {
	start := time.Now()
	res := s.generateCode(ctx, step, existing)
	s.observe(OpCode, start, res.Err)
	return res
}

func (s *Service) generateCode(ctx context.Context, step plan.Step, existing *string) CodeResult {
	content, err := s.Complete(ctx, Request{
		Operation: OpCode,
		Prompt:    prompt.ForCode(step, existing),
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrEmptyResponse):
		return CodeResult{Code: NoCodePlaceholder, Err: err}
	default:
		return CodeResult{Code: FailedCodePlaceholder, Err: err}
	}
	code, ok := NormalizeCode(content)
	if !ok {
		return CodeResult{Code: code, Err: ErrEmptyResponse}
	}
	return CodeResult{Code: code}
}

func (s *Service) observe(op string, start time.Time, err error) {
	elapsed := time.Since(start)
	if s == nil || s.log == nil {
		return
	}
	outcome := Outcome(err)
	if err != nil {
		s.log.Error("completion failed", "operation", op, "outcome", outcome, "error", err, "elapsed", elapsed)
	} else {
		s.log.Debug("completion done", "operation", op, "elapsed", elapsed)
	}
	s.metrics.Completion(op, outcome, elapsed)
}
