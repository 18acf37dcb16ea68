// Package tools implements the built-in tool registry (spec §4.1).
//
// Grounded on gsh's internal/agent/tools/{bash,editfile,viewfile,
// viewdirectory,createfile}.go for the read/write/edit shapes, generalized
// away from openai.Tool schemas (no SPEC_FULL component calls an LLM
// directly) toward the small local Definition type below.
package tools

import (
	"context"
	"sync"

	"github.com/brokerline/acpd/internal/permission"
)

// Status is the outcome of a single tool execution.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusRunning   Status = "running"
)

// Result is what every tool's Execute returns.
type Result struct {
	Status   Status
	Content  string
	IsError  bool
	Metadata map[string]any
}

// Location names a file a tool call touches, surfaced to the Client so it
// can e.g. open the file being edited.
type Location struct {
	Path string
}

// Context carries everything a tool execution needs beyond its input:
// session-scoped state and callbacks back into the broker. Fields set once
// at session-start are safe to read without locking (spec §5
// single-assignment cells); EmitUpdate may be called repeatedly from
// concurrent goroutines (e.g. Bash's stdout/stderr streams).
type Context struct {
	SessionID string
	Cwd       string
	ToolCallID string

	Permission *permission.Engine
	Shell      BackgroundRegistry
	PlanStore  *PlanStore

	// EmitUpdate streams an in-flight ToolCallUpdate to the Client (used by
	// Bash for terminal_output chunks). Tools that only ever emit one
	// terminal update do not call it; the embedded tool server emits that
	// update for them.
	EmitUpdate func(meta map[string]any)

	Cancelled func() bool
}

// BackgroundRegistry is the subset of *shell.Registry the tools package
// needs, kept as an interface to avoid an import cycle risk and to keep
// tool unit tests light.
type BackgroundRegistry interface {
	Output(id string) (chunk string, finished bool, exitCode int, err error)
	FullOutput(id string) (full string, exitCode int, err error)
	Kill(id string) error
}

// Execute is a tool's handler.
type Execute func(ctx context.Context, input map[string]any, tctx *Context) Result

// Definition is a tool's static description plus its handler.
type Definition struct {
	Name               string
	Description        string
	Schema             map[string]any
	Kind               permission.ToolKind
	RequiresPermission bool
	Execute            Execute
}

// Registry looks up tool definitions by canonical name (spec §4.1: the
// mcp__acp__ prefix is stripped by the caller before Lookup is invoked).
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out
}

// NewDefaultRegistry builds the registry with every required built-in tool
// registered (spec §4.1).
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerFileTools(r)
	registerSearchTools(r)
	registerBashTools(r)
	registerPlanTools(r)
	registerNotebookTools(r)
	registerStubTools(r)
	return r
}
