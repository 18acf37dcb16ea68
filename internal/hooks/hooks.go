// Package hooks implements the pre-/post-tool-use callback registry the
// Assistant CLI protocol expects (spec §4.6, §9 "Callback registries";
// recovered from original_source/src/hooks/callback_registry.rs).
//
// Callbacks are one-shot: registering a second callback under the same key
// silently replaces the first (a tool-use id is never reused), and
// executing a callback removes it atomically so a duplicate delivery (e.g.
// a retried notification) is a no-op.
package hooks

import "sync"

// PreToolUse runs before a tool executes and may veto it; PostToolUse is
// fire-and-forget notification after a tool result is known.
type PreToolUse func(toolName string, input map[string]any) error
type PostToolUse func(toolName string, input map[string]any, result string, isError bool)

// Registry is a keyed store of one-shot callbacks, safe for concurrent use.
type Registry struct {
	mu   sync.Mutex
	pre  map[string]PreToolUse
	post map[string]PostToolUse
}

func NewRegistry() *Registry {
	return &Registry{
		pre:  make(map[string]PreToolUse),
		post: make(map[string]PostToolUse),
	}
}

func (r *Registry) RegisterPre(toolUseID string, cb PreToolUse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre[toolUseID] = cb
}

func (r *Registry) RegisterPost(toolUseID string, cb PostToolUse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post[toolUseID] = cb
}

// RunPre executes and removes the pre-hook for toolUseID, if any.
func (r *Registry) RunPre(toolUseID, toolName string, input map[string]any) error {
	r.mu.Lock()
	cb, ok := r.pre[toolUseID]
	if ok {
		delete(r.pre, toolUseID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return cb(toolName, input)
}

// RunPost executes and removes the post-hook for toolUseID, if any.
func (r *Registry) RunPost(toolUseID, toolName string, input map[string]any, result string, isError bool) {
	r.mu.Lock()
	cb, ok := r.post[toolUseID]
	if ok {
		delete(r.post, toolUseID)
	}
	r.mu.Unlock()

	if ok {
		cb(toolName, input, result, isError)
	}
}

// Forget removes any pending callbacks for toolUseID without running them,
// used during session cleanup.
func (r *Registry) Forget(toolUseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pre, toolUseID)
	delete(r.post, toolUseID)
}
