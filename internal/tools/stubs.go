package tools

import (
	"context"
	"fmt"

	"github.com/brokerline/acpd/internal/permission"
)

// registerStubTools declares schemas for tools the Assistant CLI is
// expected to implement itself; the broker's own handler is a descriptive
// no-op so the Assistant's tool-router never sees an unknown-tool error
// for names it did not shadow (spec §4.1).
func registerStubTools(r *Registry) {
	stubs := []struct {
		name, description string
		kind              permission.ToolKind
	}{
		{"Task", "Delegate work to a sub-agent.", permission.KindOther},
		{"TaskOutput", "Read output from a delegated sub-agent task.", permission.KindOther},
		{"AskUserQuestion", "Ask the user a clarifying question.", permission.KindOther},
		{"SlashCommand", "Invoke a slash command.", permission.KindOther},
		{"Skill", "Invoke a packaged skill.", permission.KindOther},
		{"WebFetch", "Fetch the contents of a URL.", permission.KindFetch},
		{"WebSearch", "Search the web.", permission.KindFetch},
	}

	for _, s := range stubs {
		name := s.name
		r.Register(Definition{
			Name:               name,
			Description:        s.description,
			Kind:               s.kind,
			RequiresPermission: false,
			Schema:             schema(map[string]any{}),
			Execute: func(_ context.Context, _ map[string]any, _ *Context) Result {
				return Result{
					Status:  StatusSuccess,
					Content: fmt.Sprintf("%s is implemented by the Assistant CLI; the broker only declares its schema.", name),
				}
			},
		})
	}
}
