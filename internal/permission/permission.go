// Package permission implements the permission resolution engine: mode
// auto-approval, a rule checker, and the interactive round-trip to the
// Client (spec §4.5).
package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/brokerline/acpd/internal/acperr"
)

// Mode is the session's permission mode.
type Mode string

const (
	ModeDefault     Mode = "default"
	ModeAcceptEdits Mode = "acceptEdits"
	ModePlan        Mode = "plan"
	ModeDontAsk     Mode = "dontAsk"
	ModeBypass      Mode = "bypassPermissions"
)

// AllModes lists every mode in the order advertised to the Client.
var AllModes = []Mode{ModeDefault, ModeAcceptEdits, ModePlan, ModeDontAsk, ModeBypass}

// ToolKind categorizes a built-in or external tool for mode-table lookup.
type ToolKind string

const (
	KindRead       ToolKind = "read"
	KindEdit       ToolKind = "edit"
	KindExecute    ToolKind = "execute"
	KindSearch     ToolKind = "search"
	KindFetch      ToolKind = "fetch"
	KindThink      ToolKind = "think"
	KindSwitchMode ToolKind = "switch-mode"
	KindOther      ToolKind = "other"
)

// autoApprove lists the tool kinds a mode approves without prompting once
// the rule checker has neither allowed nor denied the call, and blocked
// lists kinds the mode refuses outright regardless of rules (spec §4.5
// table).
var autoApprove = map[Mode]map[ToolKind]bool{
	ModeDefault:     kinds(KindRead, KindSearch),
	ModeAcceptEdits: kinds(KindRead, KindSearch, KindEdit),
	ModePlan:        kinds(KindRead, KindSearch),
	ModeDontAsk:     kinds(),
	ModeBypass:      nil, // everything; handled specially
}

var blocked = map[Mode]map[ToolKind]bool{
	ModePlan: kinds(KindEdit, KindExecute),
}

func kinds(ks ...ToolKind) map[ToolKind]bool {
	m := make(map[ToolKind]bool, len(ks))
	for _, k := range ks {
		m[k] = true
	}
	return m
}

// Decision is the rule checker's verdict for a single tool invocation.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask"
)

// RuleResult is what a RuleChecker returns for one (tool, input) pair.
type RuleResult struct {
	Decision Decision
	Rule     string // human-readable rule identifier, for Deny/Allow
}

// RuleChecker is the external-collaborator contract for settings-derived
// rules (spec §4.5). It is never cached by the engine — rules can change at
// runtime (e.g. via AllowAlways).
type RuleChecker interface {
	Check(toolName string, input map[string]any) RuleResult
	AllowAlways(toolName string)
}

// Outcome is the closed outcome type of a resolved permission request,
// distinct from the wire-level option id (spec §4.5 step 5; recovered
// shape from original_source/src/permissions/can_use_tool.rs).
type Outcome int

const (
	OutcomeAllowOnce Outcome = iota
	OutcomeAllowAlways
	OutcomeRejected
	OutcomeCancelled
)

// Request describes one tool invocation awaiting a decision.
type Request struct {
	ToolName string
	Input    map[string]any
	Kind     ToolKind
}

// Result is what Resolve returns.
type Result struct {
	Allowed bool
	Reason  string
}

// Prompter sends an interactive permission request to the Client and
// blocks for the reply. Implemented by the ACP router; injected here so
// the engine has no dependency on the wire connection type.
type Prompter interface {
	RequestPermission(ctx context.Context, req Request) (Outcome, error)
}

// Engine resolves permission decisions for a single session.
type Engine struct {
	mu       sync.Mutex
	mode     Mode
	rules    RuleChecker
	prompter Prompter
}

func NewEngine(mode Mode, rules RuleChecker, prompter Prompter) *Engine {
	return &Engine{mode: mode, rules: rules, prompter: prompter}
}

func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Resolve implements the resolution order from spec §4.5.
func (e *Engine) Resolve(ctx context.Context, req Request) (Result, error) {
	mode := e.Mode()

	// 1. Bypass approves everything.
	if mode == ModeBypass {
		return Result{Allowed: true}, nil
	}

	// 2. Mode-level block.
	if blocked[mode][req.Kind] {
		return Result{Allowed: false, Reason: fmt.Sprintf("mode %q blocks %s tools", mode, req.Kind)}, nil
	}

	// 3. Rule checker.
	if e.rules != nil {
		switch res := e.rules.Check(req.ToolName, req.Input); res.Decision {
		case DecisionDeny:
			return Result{Allowed: false, Reason: fmt.Sprintf("denied by rule %q", res.Rule)}, nil
		case DecisionAllow:
			return Result{Allowed: true}, nil
		}
	}

	// 4. Mode auto-approve.
	if autoApprove[mode][req.Kind] {
		return Result{Allowed: true}, nil
	}

	// 5. Interactive round trip.
	if e.prompter == nil {
		return Result{}, acperr.New(acperr.KindNotConnected, "permission prompt requested but connection not ready")
	}

	outcome, err := e.prompter.RequestPermission(ctx, req)
	if err != nil {
		return Result{}, err
	}

	switch outcome {
	case OutcomeAllowAlways:
		if e.rules != nil {
			e.rules.AllowAlways(req.ToolName)
		}
		return Result{Allowed: true}, nil
	case OutcomeAllowOnce:
		return Result{Allowed: true}, nil
	case OutcomeRejected:
		return Result{Allowed: false, Reason: "rejected by user"}, nil
	default: // OutcomeCancelled
		return Result{Allowed: false, Reason: "cancelled by user"}, nil
	}
}
