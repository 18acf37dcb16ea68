// Package session owns per-conversation state: the Assistant-CLI handle,
// permission engine, embedded tool server, and the bookkeeping each prompt
// turn mutates (spec §3, §4.6).
//
// Grounded on gsh's internal/acp/client.go Session/Client field layout
// (session id, connected flag, sync.RWMutex-guarded mutation) generalized
// to the broker's richer per-session state.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brokerline/acpd/internal/assistant"
	"github.com/brokerline/acpd/internal/convert"
	"github.com/brokerline/acpd/internal/embeddedtools"
	"github.com/brokerline/acpd/internal/hooks"
	"github.com/brokerline/acpd/internal/mcpclient"
	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/shell"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
	"go.uber.org/zap"
)

// Config is the fixed, per-session launch configuration (spec §4.6).
type Config struct {
	Cwd              string
	AssistantCommand string
	AssistantArgs    []string
	AssistantEnv     []string
	MCPServers       []mcpclient.ServerConfig
	ResumeSessionID  string // set on session/load, forwarded to the Assistant CLI
	SystemPromptAppend  string
	SystemPromptReplace string
	DisableBuiltInTools bool
}

// UsageTracker is read-only bookkeeping (spec SPEC_FULL §C): no behavior
// depends on it, it is surfaced for observability only.
type UsageTracker struct {
	turns        atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

func (u *UsageTracker) RecordTurn()               { u.turns.Add(1) }
func (u *UsageTracker) AddTokens(in, out int64)    { u.inputTokens.Add(in); u.outputTokens.Add(out) }
func (u *UsageTracker) Turns() int64               { return u.turns.Load() }
func (u *UsageTracker) Tokens() (in, out int64)    { return u.inputTokens.Load(), u.outputTokens.Load() }

// Session is one live conversation (spec §3).
type Session struct {
	ID  string
	Cwd string

	logger *zap.Logger
	cfg    Config

	mu             sync.RWMutex
	mode           permission.Mode
	assistantH     *assistant.Handle
	connected      atomic.Bool
	cancelled      atomic.Bool
	connectOnce    sync.Once
	cleanupOnce    sync.Once

	Permission *permission.Engine
	Tools      *embeddedtools.Server
	ToolReg    *tools.Registry
	Shells     *shell.Registry
	Plans      *tools.PlanStore
	Hooks      *hooks.Registry
	MCP        *mcpclient.Manager
	Converter  *convert.Converter
	Usage      *UsageTracker

	// emit streams a wire.Update notification for this session to the
	// Client; set by the router at construction time (single-assignment,
	// spec §5).
	emit func(wire.Update)
}

// prompter adapts the router's permission round-trip into permission.Prompter.
type prompter struct {
	fn func(ctx context.Context, req permission.Request) (permission.Outcome, error)
}

func (p prompter) RequestPermission(ctx context.Context, req permission.Request) (permission.Outcome, error) {
	return p.fn(ctx, req)
}

// New eagerly constructs a Session's collaborators but does not start the
// Assistant CLI subprocess (spec §4.6: that happens on first prompt / connect).
func New(
	id string,
	cfg Config,
	registry *tools.Registry,
	rules permission.RuleChecker,
	requestPermission func(ctx context.Context, req permission.Request) (permission.Outcome, error),
	emit func(wire.Update),
	logger *zap.Logger,
) *Session {
	s := &Session{
		ID:        id,
		Cwd:       cfg.Cwd,
		cfg:       cfg,
		mode:      permission.ModeDefault,
		logger:    logger,
		ToolReg:   registry,
		Shells:    shell.NewRegistry(),
		Plans:     tools.NewPlanStore(),
		Hooks:     hooks.NewRegistry(),
		MCP:       mcpclient.NewManager(),
		Converter: convert.NewConverter(cfg.Cwd),
		Usage:     &UsageTracker{},
		emit:      emit,
	}

	s.Permission = permission.NewEngine(s.mode, rules, prompter{fn: requestPermission})

	s.Tools = embeddedtools.New(
		id,
		cfg.Cwd,
		registry,
		s.Permission,
		s.Shells,
		s.Plans,
		s.Hooks,
		s.MCP,
		func(u wire.Update) { s.emit(u) },
		func() { s.cancelled.Store(true) },
	)
	if cfg.DisableBuiltInTools {
		for _, def := range registry.List() {
			s.Tools.Disable(def.Name)
		}
	}

	return s
}

// Mode returns the session's current permission mode.
func (s *Session) Mode() permission.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode updates the mode and best-effort-propagates it to the Assistant
// CLI handle (spec §4.8 session/setMode).
func (s *Session) SetMode(mode permission.Mode) {
	s.mu.Lock()
	s.mode = mode
	h := s.assistantH
	s.mu.Unlock()

	s.Permission.SetMode(mode)
	if h != nil {
		h.SetMode(s.ID, string(mode))
	}
}

// Connected reports whether the Assistant CLI handle is ready.
func (s *Session) Connected() bool { return s.connected.Load() }

// ConfigMCPServers returns the external tool servers configured for this
// session (spec §3 external_servers; the manager may be session- or
// process-scoped — here it is session-scoped per Open Question decision).
func (s *Session) ConfigMCPServers() []mcpclient.ServerConfig { return s.cfg.MCPServers }

// Connect starts the Assistant CLI subprocess on first use; idempotent.
func (s *Session) Connect(ctx context.Context) error {
	var err error
	s.connectOnce.Do(func() {
		h, spawnErr := assistant.Spawn(ctx, s.cfg.AssistantCommand, s.cfg.AssistantArgs, s.cfg.Cwd, s.cfg.AssistantEnv, s.logger)
		if spawnErr != nil {
			err = fmt.Errorf("connecting session %s: %w", s.ID, spawnErr)
			return
		}
		h.ToolServer = s.Tools
		s.mu.Lock()
		s.assistantH = h
		s.mu.Unlock()
		s.connected.Store(true)
	})
	return err
}

// Handle returns the Assistant CLI handle, or nil if not yet connected.
func (s *Session) Handle() *assistant.Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assistantH
}

// Cancelled reports and clears-on-next-prompt the cancellation flag.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// ClearCancelled resets the flag at the start of a new prompt turn (spec §4.10 step 4).
func (s *Session) ClearCancelled() { s.cancelled.Store(false) }

// Cancel sets the cancelled flag and best-effort interrupts the Assistant
// CLI (spec §4.6 Session::cancel).
func (s *Session) Cancel() {
	s.cancelled.Store(true)
	if h := s.Handle(); h != nil {
		h.Interrupt(s.ID)
	}
}

// Cleanup kills external tool-server subprocesses, interrupts the
// Assistant, and releases background shells (spec §4.6 Session::cleanup).
func (s *Session) Cleanup() {
	s.cleanupOnce.Do(func() {
		s.MCP.CloseAll()
		if h := s.Handle(); h != nil {
			h.Interrupt(s.ID)
			if err := h.Close(); err != nil {
				s.logger.Warn("closing assistant handle", zap.String("session_id", s.ID), zap.Error(err))
			}
		}
		s.Shells.KillAll()
	})
}
