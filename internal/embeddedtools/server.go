// Package embeddedtools implements the embedded ACP-side tool server
// (spec §4.3): it exposes list_tools/call_tool to the Assistant CLI over
// the sub-protocol internal/assistant multiplexes onto the same
// connection, resolving each call against the tool registry and emitting
// session-update notifications back to the Client.
//
// Grounded on gsh's internal/acp/process.go readLoop/handleAgentRequest
// line-delimited-JSON-RPC routing technique (reused in shape inside
// internal/assistant's readLoop, which calls into this package).
package embeddedtools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/brokerline/acpd/internal/acperr"
	"github.com/brokerline/acpd/internal/hooks"
	"github.com/brokerline/acpd/internal/mcpclient"
	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
	"github.com/google/uuid"
)

const protocolVersion = "2024-acp-tools-1"

// ReservedPrefix denotes that a tool name addresses this broker's embedded
// server (spec §4.1); it is stripped before lookup.
const ReservedPrefix = "mcp__acp__"

// EmitFunc streams a wire.Update notification for this server's session
// back to the Client.
type EmitFunc func(update wire.Update)

// Server is session-scoped: one per live Session (spec §4.6).
type Server struct {
	sessionID string
	cwd       string

	registry *tools.Registry
	perm     *permission.Engine
	shell    tools.BackgroundRegistry
	plans    *tools.PlanStore
	hooks    *hooks.Registry
	mcp      *mcpclient.Manager

	emit       EmitFunc
	cancelHook func()
	cancelBusy atomic.Bool

	disabled map[string]bool // disableBuiltInTools meta field, spec §6
}

// New constructs a session-scoped embedded tool server. mcp may be nil when
// the session has no external MCP servers configured.
func New(sessionID, cwd string, registry *tools.Registry, perm *permission.Engine, shellReg tools.BackgroundRegistry, plans *tools.PlanStore, hookReg *hooks.Registry, mcp *mcpclient.Manager, emit EmitFunc, cancelHook func()) *Server {
	return &Server{
		sessionID:  sessionID,
		cwd:        cwd,
		registry:   registry,
		perm:       perm,
		shell:      shellReg,
		plans:      plans,
		hooks:      hookReg,
		mcp:        mcp,
		emit:       emit,
		cancelHook: cancelHook,
		disabled:   map[string]bool{},
	}
}

// Disable marks built-in tool names the Assistant CLI shadows with its own
// implementations (meta.disableBuiltInTools / the ACP-replacement list
// recovered from original_source/src/session/session.rs, SPEC_FULL §C).
func (s *Server) Disable(names ...string) {
	for _, n := range names {
		s.disabled[n] = true
	}
}

// Handle implements assistant.ToolServer for agent-initiated requests.
func (s *Server) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "initialize":
		return map[string]any{
			"protocol_version": protocolVersion,
			"capabilities":     map[string]any{"tools": true},
		}, nil

	case "list_tools":
		return s.listTools(), nil

	case "call_tool":
		return s.callTool(ctx, params)

	default:
		return nil, fmt.Errorf("method not found: %s", method)
	}
}

// Notify implements assistant.ToolServer for notifications/* methods.
// notifications/cancelled invokes the session's cancel hook exactly once
// via a non-blocking try-acquire (spec §4.3, §5, §9).
func (s *Server) Notify(method string, _ json.RawMessage) {
	if method != "notifications/cancelled" {
		return // unknown notifications/* methods are accepted and ignored
	}
	if s.cancelBusy.CompareAndSwap(false, true) {
		if s.cancelHook != nil {
			s.cancelHook()
		}
	}
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (s *Server) listTools() map[string]any {
	var descriptors []toolDescriptor
	for _, def := range s.registry.List() {
		if s.disabled[def.Name] {
			continue
		}
		descriptors = append(descriptors, toolDescriptor{
			Name:        ReservedPrefix + def.Name,
			Description: def.Description,
			InputSchema: def.Schema,
		})
	}
	return map[string]any{"tools": descriptors}
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Meta      map[string]any `json:"meta"`
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, error) {
	var p callToolParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid call_tool params: %w", err)
	}

	if strings.HasPrefix(p.Name, "mcp__") && !strings.HasPrefix(p.Name, ReservedPrefix) {
		return s.callExternalTool(ctx, p)
	}

	name := strings.TrimPrefix(p.Name, ReservedPrefix)
	def, ok := s.registry.Lookup(name)
	if !ok {
		return nil, acperr.New(acperr.KindToolNotFound, fmt.Sprintf("tool not found: %s", name))
	}

	toolUseID, _ := p.Meta["claudecode/toolUseId"].(string)
	if toolUseID == "" {
		// Generate one; the Client will be unable to correlate this
		// update with a prior announcement (spec §4.3).
		toolUseID = uuid.NewString()
	}

	if s.hooks != nil {
		if err := s.hooks.RunPre(toolUseID, name, p.Arguments); err != nil {
			s.emitUpdate(toolUseID, tools.Result{Status: tools.StatusError, Content: err.Error(), IsError: true})
			return map[string]any{"content": err.Error(), "is_error": true}, nil
		}
	}

	if def.RequiresPermission && s.perm != nil {
		res, err := s.perm.Resolve(ctx, permission.Request{ToolName: name, Input: p.Arguments, Kind: def.Kind})
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			s.emitUpdate(toolUseID, tools.Result{Status: tools.StatusError, Content: res.Reason, IsError: true})
			return map[string]any{"content": res.Reason, "is_error": true}, nil
		}
	}

	tctx := &tools.Context{
		SessionID:  s.sessionID,
		Cwd:        s.cwd,
		ToolCallID: toolUseID,
		Permission: s.perm,
		Shell:      s.shell,
		PlanStore:  s.plans,
		EmitUpdate: func(meta map[string]any) {
			s.emit(wire.ToolCallUpdate{ID: toolUseID, Status: "in_progress", RawOutput: meta})
		},
	}

	result := def.Execute(ctx, p.Arguments, tctx)
	s.emitUpdate(toolUseID, result)
	if s.hooks != nil {
		s.hooks.RunPost(toolUseID, name, p.Arguments, result.Content, result.IsError)
	}

	return map[string]any{
		"content":  result.Content,
		"is_error": result.IsError,
		"metadata": result.Metadata,
	}, nil
}

// callExternalTool dispatches a mcp__<server>__<tool> call to the session's
// mcpclient.Manager (spec §4.4: "ANY external MCP server", not just the
// embedded acp one).
func (s *Server) callExternalTool(ctx context.Context, p callToolParams) (any, error) {
	if s.mcp == nil {
		return nil, acperr.New(acperr.KindToolNotFound, fmt.Sprintf("no external MCP server configured for %s", p.Name))
	}

	toolUseID, _ := p.Meta["claudecode/toolUseId"].(string)
	if toolUseID == "" {
		toolUseID = uuid.NewString()
	}

	ruleName := p.Name
	if serverName, toolName, perr := mcpclient.ParseFullName(p.Name); perr == nil {
		if friendly, ok := mcpclient.FriendlyName(serverName, toolName); ok {
			ruleName = friendly
		}
	}
	if s.perm != nil {
		res, err := s.perm.Resolve(ctx, permission.Request{ToolName: ruleName, Input: p.Arguments, Kind: permission.KindOther})
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			s.emitUpdate(toolUseID, tools.Result{Status: tools.StatusError, Content: res.Reason, IsError: true})
			return map[string]any{"content": res.Reason, "is_error": true}, nil
		}
	}

	content, isError, err := s.mcp.CallTool(ctx, p.Name, p.Arguments)
	if err != nil {
		s.emitUpdate(toolUseID, tools.Result{Status: tools.StatusError, Content: err.Error(), IsError: true})
		return nil, err
	}

	status := tools.StatusSuccess
	if isError {
		status = tools.StatusError
	}
	s.emitUpdate(toolUseID, tools.Result{Status: status, Content: content, IsError: isError})

	return map[string]any{"content": content, "is_error": isError}, nil
}

func (s *Server) emitUpdate(toolUseID string, result tools.Result) {
	status := "completed"
	if result.IsError || result.Status == tools.StatusError {
		status = "failed"
	}
	if result.Status == tools.StatusCancelled {
		status = "cancelled"
	}
	s.emit(wire.ToolCallUpdate{
		ID:        toolUseID,
		Status:    status,
		Content:   result.Content,
		RawOutput: result.Metadata,
	})
}
