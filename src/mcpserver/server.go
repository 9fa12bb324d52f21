// Package mcpserver exposes plan generation, code generation and apply as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Protocol-Lattice/specgen/src/host"
	"github.com/Protocol-Lattice/specgen/src/plan"
	"github.com/Protocol-Lattice/specgen/src/protocol"
)

const (
	toolGeneratePlan     = "generate_plan"
	toolGenerateCode     = "generate_code"
	toolApplyCode        = "apply_code"
	toolProjectStructure = "project_structure"
	toolReadFile         = "read_file"
)

// Server wraps an MCP server whose tools are answered by a host.
type Server struct {
	host *host.Host
	mcp  *server.MCPServer
}

func New(h *host.Host, version string) *Server {
	s := &Server{
		host: h,
		mcp: server.NewMCPServer(
			"SpecGen MCP Server",
			version,
			server.WithToolCapabilities(true),
		),
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.Tool{
		Name:        toolGeneratePlan,
		Description: "Generate a step-by-step plan of file changes implementing a feature request in the workspace",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"request": map[string]interface{}{
					"type":        "string",
					"description": "Feature request in natural language",
				},
			},
			Required: []string{"request"},
		},
	}, s.handleGeneratePlan)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolGenerateCode,
		Description: "Generate the complete content of one file for a plan step",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative path of the file",
				},
				"action": map[string]interface{}{
					"type":        "string",
					"description": "CREATE or MODIFY",
					"enum":        []string{string(plan.Create), string(plan.Modify)},
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "What to change in the file",
				},
			},
			Required: []string{"file", "action", "description"},
		},
	}, s.handleGenerateCode)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolApplyCode,
		Description: "Write generated code to a workspace file, creating parent directories",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative path of the file",
				},
				"code": map[string]interface{}{
					"type":        "string",
					"description": "Full file content",
				},
			},
			Required: []string{"path", "code"},
		},
	}, s.handleApplyCode)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolProjectStructure,
		Description: "Show the workspace tree the planner sees",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleProjectStructure)

	s.mcp.AddTool(mcp.Tool{
		Name:        toolReadFile,
		Description: "Read the contents of a workspace file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Workspace-relative path of the file",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleReadFile)
}

// dispatch runs one host message and returns everything it posted.
func (s *Server) dispatch(ctx context.Context, in protocol.Inbound) []protocol.Outbound {
	var c protocol.Collector
	s.host.Handle(ctx, in, &c)
	return c.Drain()
}

func (s *Server) handleGeneratePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := strings.TrimSpace(request.GetString("request", ""))
	if text == "" {
		return mcp.NewToolResultError("request is required"), nil
	}

	out := s.dispatch(ctx, protocol.Inbound{Command: protocol.GeneratePlan, Text: text})
	msg, ok := find(out, protocol.PlanGenerated)
	if !ok {
		return mcp.NewToolResultError(noticeText(out)), nil
	}
	if msg.Error != "" {
		return mcp.NewToolResultError(fmt.Sprintf("Plan generation failed: %s", msg.Error)), nil
	}

	data, err := json.MarshalIndent(msg.Payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode plan: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGenerateCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step := &plan.Step{
		File:        request.GetString("file", ""),
		Action:      plan.Action(request.GetString("action", "")),
		Description: request.GetString("description", ""),
	}

	out := s.dispatch(ctx, protocol.Inbound{Command: protocol.GenerateCode, Step: step})
	msg, ok := find(out, protocol.CodeGenerated)
	if !ok {
		return mcp.NewToolResultError(noticeText(out)), nil
	}
	if msg.Error != "" {
		return mcp.NewToolResultError(fmt.Sprintf("Code generation failed: %s", msg.Error)), nil
	}
	return mcp.NewToolResultText(msg.Payload.(protocol.CodePayload).Code), nil
}

func (s *Server) handleApplyCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	code := request.GetString("code", "")

	out := s.dispatch(ctx, protocol.Inbound{Command: protocol.ApplyCode, FilePath: path, Code: code})
	msg, ok := find(out, protocol.FileApplied)
	if !ok {
		return mcp.NewToolResultError(noticeText(out)), nil
	}

	applied := msg.Payload.(protocol.AppliedPayload)
	var b strings.Builder
	b.WriteString(noticeText(out))
	if applied.Diff != "" {
		b.WriteString("\n\n")
		b.WriteString(applied.Diff)
	}
	if applied.HookOutput != "" {
		b.WriteString("\n\n")
		b.WriteString(applied.HookOutput)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleProjectStructure(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	listing, err := s.host.Workspace().Structure()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workspace: %v", err)), nil
	}
	return mcp.NewToolResultText(listing), nil
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	content, ok := s.host.Workspace().ReadFile(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read file: %s", path)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func find(out []protocol.Outbound, cmd protocol.Command) (protocol.Outbound, bool) {
	for _, o := range out {
		if o.Command == cmd {
			return o, true
		}
	}
	return protocol.Outbound{}, false
}

// noticeText joins the notification messages in out.
func noticeText(out []protocol.Outbound) string {
	var msgs []string
	for _, o := range out {
		if n, ok := o.Payload.(protocol.NoticePayload); ok {
			msgs = append(msgs, n.Message)
		}
	}
	if len(msgs) == 0 {
		return "No response"
	}
	return strings.Join(msgs, "\n")
}
