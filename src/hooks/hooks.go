// Package hooks runs an optional UTCP tool after generated code is applied.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	utcp "github.com/universal-tool-calling-protocol/go-utcp"
)

// ToolCaller is the subset of the UTCP client used by hooks.
type ToolCaller interface {
	CallTool(ctx context.Context, toolName string, args map[string]any) (any, error)
}

// PostApply calls one tool with the path and content of every applied file.
// A nil *PostApply does nothing.
type PostApply struct {
	caller ToolCaller
	tool   string
}

func NewPostApply(caller ToolCaller, tool string) *PostApply {
	return &PostApply{caller: caller, tool: tool}
}

// NewUTCP builds a UTCP client from a providers file.
func NewUTCP(ctx context.Context, providersPath string) (utcp.UtcpClientInterface, error) {
	if _, err := os.Stat(providersPath); err != nil {
		return nil, fmt.Errorf("UTCP unavailable: providers file missing at %s", providersPath)
	}
	client, err := utcp.NewUTCPClient(ctx, &utcp.UtcpClientConfig{
		ProvidersFilePath: providersPath,
	}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("UTCP unavailable: %w", err)
	}
	return client, nil
}

// Tool returns the configured tool name.
func (h *PostApply) Tool() string {
	if h == nil {
		return ""
	}
	return h.tool
}

// Run invokes the tool and renders its result as text.
func (h *PostApply) Run(ctx context.Context, path, code string) (string, error) {
	if h == nil || h.caller == nil {
		return "", nil
	}
	res, err := h.caller.CallTool(ctx, h.tool, map[string]any{
		"path": path,
		"code": code,
	})
	if err != nil {
		return "", fmt.Errorf("post-apply tool %s: %w", h.tool, err)
	}
	return render(res), nil
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
