package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/brokerline/acpd/internal/permission"
)

// TodoItem is one entry of a session-scoped plan (spec §4.1 TodoWrite).
type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"` // pending | in_progress | completed
	ActiveForm string `json:"activeForm"`
}

// PlanStore holds the most recent plan per session. The notification
// converter does not read it: its Plan update is derived from the cached
// TodoWrite input instead.
type PlanStore struct {
	mu    sync.Mutex
	plans map[string][]TodoItem
}

func NewPlanStore() *PlanStore { return &PlanStore{plans: make(map[string][]TodoItem)} }

func (p *PlanStore) Set(sessionID string, items []TodoItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans[sessionID] = items
}

func (p *PlanStore) Get(sessionID string) []TodoItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plans[sessionID]
}

var validStatus = map[string]bool{"pending": true, "in_progress": true, "completed": true}

func registerPlanTools(r *Registry) {
	r.Register(Definition{
		Name:               "TodoWrite",
		Description:        "Replace the session's plan with a new list of todo items.",
		Kind:               permission.KindThink,
		RequiresPermission: false,
		Schema: schema(map[string]any{
			"todos": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"content":    strProp("Imperative description of the task"),
						"status":     strProp("pending | in_progress | completed"),
						"activeForm": strProp("Present-continuous form shown while in progress"),
					},
					"required": []string{"content", "status", "activeForm"},
				},
			},
		}, "todos"),
		Execute: todoWriteTool,
	})

	r.Register(Definition{
		Name:               "ExitPlanMode",
		Description:        "Mark the current plan as ready for review.",
		Kind:               permission.KindSwitchMode,
		RequiresPermission: false,
		Schema:             schema(map[string]any{}),
		Execute: func(_ context.Context, _ map[string]any, _ *Context) Result {
			return Result{Status: StatusSuccess, Content: "Plan marked ready for review."}
		},
	})
}

func todoWriteTool(_ context.Context, input map[string]any, tctx *Context) Result {
	raw, ok := input["todos"].([]any)
	if !ok {
		return errResult("TodoWrite requires a 'todos' array")
	}

	items := make([]TodoItem, 0, len(raw))
	for i, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return errResult(fmt.Sprintf("todos[%d] must be an object", i))
		}
		item := TodoItem{
			Content:    strings.TrimSpace(stringField(m, "content")),
			Status:     stringField(m, "status"),
			ActiveForm: strings.TrimSpace(stringField(m, "activeForm")),
		}
		if item.Content == "" || item.ActiveForm == "" {
			return errResult(fmt.Sprintf("todos[%d] must have non-empty content and activeForm", i))
		}
		if !validStatus[item.Status] {
			return errResult(fmt.Sprintf("todos[%d] has invalid status %q", i, item.Status))
		}
		items = append(items, item)
	}

	if tctx.PlanStore != nil {
		tctx.PlanStore.Set(tctx.SessionID, items)
	}

	return Result{
		Status:   StatusSuccess,
		Content:  fmt.Sprintf("Updated plan with %d item(s).", len(items)),
		Metadata: map[string]any{"todos": items},
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
