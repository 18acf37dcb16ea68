package acp

import (
	"context"
	"fmt"
	"sync"
	"time"

	acpsdk "github.com/coder/acp-go-sdk"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brokerline/acpd/internal/acperr"
	"github.com/brokerline/acpd/internal/mcpclient"
	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/session"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
)

// Config carries the fixed Assistant CLI launch parameters every session
// is constructed with (spec §3, §4.6; the broker supports exactly one
// Assistant CLI binary per process, Non-goal (d)).
type Config struct {
	AssistantCommand string
	AssistantArgs    []string
	RulesPath        string
}

// Dispatcher implements github.com/coder/acp-go-sdk's Agent interface
// (spec §4.8): it is the single entry point for every request and
// notification the Client sends.
type Dispatcher struct {
	conn *acpsdk.AgentSideConnection

	sessions *session.Manager
	registry *tools.Registry
	cfg      Config
	logger   *zap.Logger

	// permReplies is the one-shot reply-channel registry keyed by request
	// id for the permission round trip (spec §9 "permission round-trip
	// across suspension"). acp-go-sdk's RequestPermission already blocks
	// for the reply internally, so in practice this package only needs a
	// thin per-call adapter (see requestPermission below); kept as a
	// documented design note rather than a literal channel map since the
	// SDK already owns request/response correlation for us.
	_ struct{}

	// promptSlots maps a session id to a one-slot channel held for the
	// duration of that session's Prompt, serializing its prompt turns
	// (invariant I1); blocked prompts are queued in arrival order.
	promptSlots sync.Map
}

func NewDispatcher(cfg Config, registry *tools.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sessions: session.NewManager(registry, logger),
		registry: registry,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetAgentConnection is called once by acp-go-sdk immediately after
// construction, before any request arrives.
func (d *Dispatcher) SetAgentConnection(conn *acpsdk.AgentSideConnection) {
	d.conn = conn
}

func (d *Dispatcher) Authenticate(ctx context.Context, _ acpsdk.AuthenticateRequest) error {
	return nil // no auth handshake of our own; the Assistant CLI owns its own credentials (spec §1 out-of-scope)
}

func (d *Dispatcher) Initialize(ctx context.Context, req acpsdk.InitializeRequest) (acpsdk.InitializeResponse, error) {
	return acpsdk.InitializeResponse{
		ProtocolVersion: acpsdk.ProtocolVersionNumber,
		AgentCapabilities: acpsdk.AgentCapabilities{
			LoadSession: true,
			PromptCapabilities: acpsdk.PromptCapabilities{
				Image:           true,
				EmbeddedContext: true,
			},
		},
	}, nil
}

func (d *Dispatcher) NewSession(ctx context.Context, req acpsdk.NewSessionRequest) (acpsdk.NewSessionResponse, error) {
	id := uuid.NewString()
	s, err := d.sessions.Create(id, d.sessionConfig(req.Cwd, req.McpServers, req.Meta), d.ruleChecker(), d.requestPermission, d.emit)
	if err != nil {
		return acpsdk.NewSessionResponse{}, err
	}
	return acpsdk.NewSessionResponse{SessionId: acpsdk.SessionId(s.ID), Modes: availableModes(s.Mode())}, nil
}

// SessionLoader is an assumed extension to acpsdk.Agent for session/load
// (unconfirmed against the retrieval pack's one example file, which never
// exercises resumption). See DESIGN.md's open-question entry.
type SessionLoader interface {
	LoadSession(ctx context.Context, req acpsdk.LoadSessionRequest) (acpsdk.LoadSessionResponse, error)
}

func (d *Dispatcher) LoadSession(ctx context.Context, req acpsdk.LoadSessionRequest) (acpsdk.LoadSessionResponse, error) {
	id := string(req.SessionId)
	cfg := d.sessionConfig(req.Cwd, req.McpServers, req.Meta)
	cfg.ResumeSessionID = id
	s, err := d.sessions.Create(id, cfg, d.ruleChecker(), d.requestPermission, d.emit)
	if err != nil {
		return acpsdk.LoadSessionResponse{}, err
	}
	return acpsdk.LoadSessionResponse{Modes: availableModes(s.Mode())}, nil
}

// SessionModeSetter is an assumed extension to acpsdk.Agent for
// session/setMode; see DESIGN.md.
type SessionModeSetter interface {
	SetSessionMode(ctx context.Context, req acpsdk.SetSessionModeRequest) (acpsdk.SetSessionModeResponse, error)
}

func (d *Dispatcher) SetSessionMode(ctx context.Context, req acpsdk.SetSessionModeRequest) (acpsdk.SetSessionModeResponse, error) {
	s, ok := d.sessions.Get(string(req.SessionId))
	if !ok {
		return acpsdk.SetSessionModeResponse{}, acperr.New(acperr.KindSessionNotFound, "unknown session: "+string(req.SessionId))
	}
	mode := permission.Mode(req.ModeId)
	s.SetMode(mode)
	d.emit(s.ID, wire.CurrentModeUpdate{ModeID: string(mode)})
	return acpsdk.SetSessionModeResponse{}, nil
}

func (d *Dispatcher) Cancel(ctx context.Context, req acpsdk.CancelNotification) error {
	s, ok := d.sessions.Get(string(req.SessionId))
	if !ok {
		return nil // spec §4.8: unknown session on a notification is silently ignored, not an error
	}
	s.Cancel()
	return nil
}

func (d *Dispatcher) Prompt(ctx context.Context, req acpsdk.PromptRequest) (acpsdk.PromptResponse, error) {
	s, ok := d.sessions.Get(string(req.SessionId))
	if !ok {
		return acpsdk.PromptResponse{}, acperr.New(acperr.KindSessionNotFound, "unknown session: "+string(req.SessionId))
	}
	slot, _ := d.promptSlots.LoadOrStore(s.ID, make(chan struct{}, 1))
	slot.(chan struct{}) <- struct{}{}
	defer func() { <-slot.(chan struct{}) }()
	return d.runPromptLoop(ctx, s, req)
}

func (d *Dispatcher) sessionConfig(cwd string, servers []acpsdk.McpServer, meta map[string]any) session.Config {
	cfg := session.Config{
		Cwd:              cwd,
		AssistantCommand: d.cfg.AssistantCommand,
		AssistantArgs:    d.cfg.AssistantArgs,
	}
	for _, m := range servers {
		cfg.MCPServers = append(cfg.MCPServers, mcpclient.ServerConfig{
			Name:    m.Name,
			Command: m.Command,
			Args:    m.Args,
			Env:     envPairs(m.Env),
			Cwd:     cwd,
		})
	}
	applyMeta(&cfg, meta)
	return cfg
}

func envPairs(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

// applyMeta reads the `meta` fields spec §6 documents for session/new and
// session/load: systemPrompt.append/replace, claudeCode.options.resume,
// disableBuiltInTools.
func applyMeta(cfg *session.Config, meta map[string]any) {
	if meta == nil {
		return
	}
	if sp, ok := meta["systemPrompt"].(map[string]any); ok {
		if s, ok := sp["append"].(string); ok {
			cfg.SystemPromptAppend = s
		}
		if s, ok := sp["replace"].(string); ok {
			cfg.SystemPromptReplace = s
		}
	}
	if cc, ok := meta["claudeCode"].(map[string]any); ok {
		if opts, ok := cc["options"].(map[string]any); ok {
			if resume, ok := opts["resume"].(string); ok {
				cfg.ResumeSessionID = resume
			}
		}
	}
	if disable, ok := meta["disableBuiltInTools"].(bool); ok {
		cfg.DisableBuiltInTools = disable
	}
}

func availableModes(current permission.Mode) acpsdk.SessionModeState {
	modes := make([]acpsdk.SessionMode, 0, len(permission.AllModes))
	for _, m := range permission.AllModes {
		modes = append(modes, acpsdk.SessionMode{Id: acpsdk.SessionModeId(m), Name: string(m)})
	}
	return acpsdk.SessionModeState{CurrentModeId: acpsdk.SessionModeId(current), AvailableModes: modes}
}

// emit streams a wire.Update to the Client as a SessionNotification. Per
// spec §5/§6, this is the broker's only notification pathway, so failures
// are logged rather than propagated.
func (d *Dispatcher) emit(sessionID string, u wire.Update) {
	if d.conn == nil {
		return
	}
	err := d.conn.SessionUpdate(context.Background(), acpsdk.SessionNotification{
		SessionId: acpsdk.SessionId(sessionID),
		Update:    toSessionUpdate(u),
	})
	if err != nil {
		d.logger.Warn("session update failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (d *Dispatcher) ruleChecker() permission.RuleChecker {
	checker, err := permission.LoadFileRuleChecker(d.cfg.RulesPath)
	if err != nil {
		d.logger.Warn("loading permission rules", zap.Error(err))
	}
	return checker
}

// requestPermission adapts the engine's Prompter contract to the real
// outer connection's RequestPermission call (spec §4.5 step 5).
func (d *Dispatcher) requestPermission(ctx context.Context, req permission.Request) (permission.Outcome, error) {
	if d.conn == nil {
		return permission.OutcomeCancelled, acperr.New(acperr.KindNotConnected, "connection not ready")
	}
	resp, err := d.conn.RequestPermission(ctx, acpsdk.RequestPermissionRequest{
		ToolCall: acpsdk.ToolCallUpdate{
			RawInput: req.Input,
		},
		Options: []acpsdk.PermissionOption{
			{Kind: acpsdk.PermissionOptionKindAllowAlways, Name: "Always Allow", OptionId: acpsdk.PermissionOptionId(permission.OptionAllowAlways)},
			{Kind: acpsdk.PermissionOptionKindAllowOnce, Name: "Allow", OptionId: acpsdk.PermissionOptionId(permission.OptionAllowOnce)},
			{Kind: acpsdk.PermissionOptionKindRejectOnce, Name: "Reject", OptionId: acpsdk.PermissionOptionId(permission.OptionRejectOnce)},
		},
	})
	if err != nil {
		return permission.OutcomeCancelled, err
	}
	if resp.Outcome.Selected == nil {
		return permission.OutcomeCancelled, nil
	}
	return permission.OutcomeFromOptionID(string(resp.Outcome.Selected.OptionId), true), nil
}

const pollTick = 100 * time.Millisecond
