// Package convert implements the notification converter (spec §4.9):
// stateful, session-scoped, it maps Assistant-CLI message blocks to
// zero-or-more ACP session-update notifications.
//
// Grounded directly on spec §4.9 (no teacher equivalent exists — gsh never
// talks to an agent producing structured tool-use/tool-result blocks). The
// ToolCallId -> invocation-record cache uses github.com/patrickmn/go-cache
// (zjrosen-perles go.mod), whose TTL eviction is a direct fit for
// "forget records for long-finished tool calls" bookkeeping hygiene.
package convert

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/brokerline/acpd/internal/assistant"
	"github.com/brokerline/acpd/internal/wire"
	"github.com/patrickmn/go-cache"
)

const (
	cacheTTL        = 30 * time.Minute
	cacheCleanupInt = 5 * time.Minute
	maxTitleLen     = 60
)

type invocation struct {
	name  string
	input map[string]any
}

// Converter is session-scoped: construct one per Session.
type Converter struct {
	cwd   string
	calls *cache.Cache
}

func NewConverter(cwd string) *Converter {
	return &Converter{cwd: cwd, calls: cache.New(cacheTTL, cacheCleanupInt)}
}

// Convert turns one Assistant event into zero or more wire.Update values,
// in emission order.
func (c *Converter) Convert(ev assistant.Event) []wire.Update {
	var updates []wire.Update
	for _, b := range ev.Blocks {
		if u := c.convertBlock(b); u != nil {
			updates = append(updates, u...)
		}
	}
	return updates
}

func (c *Converter) convertBlock(b assistant.Block) []wire.Update {
	switch b.Type {
	case "text":
		return []wire.Update{wire.AgentMessageChunk{Text: b.Text}}

	case "thinking":
		return []wire.Update{wire.AgentThoughtChunk{Text: b.Text}}

	case "tool_use":
		c.calls.Set(b.ToolUseID, invocation{name: b.ToolName, input: b.Input}, cache.DefaultExpiration)
		return []wire.Update{c.announce(b.ToolUseID, b.ToolName, b.Input)}

	case "tool_result":
		raw, found := c.calls.Get(b.ToolUseID)
		if !found {
			return nil // I2: orphan update, dropped
		}
		inv := raw.(invocation)
		c.calls.Delete(b.ToolUseID)
		return c.result(b.ToolUseID, inv, b)

	default:
		// system / user / control messages produce no notifications.
		return nil
	}
}

func (c *Converter) announce(id, name string, input map[string]any) wire.ToolCall {
	return wire.ToolCall{
		ID:        id,
		Title:     c.title(name, input),
		Kind:      toolKind(name),
		Status:    "in_progress",
		Locations: c.locations(name, input),
		RawInput:  input,
		Meta:      c.meta(id, name),
	}
}

// meta builds a ToolCall's out-of-band metadata (spec §4.2): Bash's
// pre-spawn announcement carries terminal_info so the Client can attach a
// terminal view before the command produces any output.
func (c *Converter) meta(id, name string) map[string]any {
	if name != "Bash" {
		return nil
	}
	return map[string]any{
		"terminal_info": map[string]any{"terminal_id": id, "cwd": c.cwd},
	}
}

func (c *Converter) result(id string, inv invocation, b assistant.Block) []wire.Update {
	status := "completed"
	if b.IsError {
		status = "failed"
	}

	update := wire.ToolCallUpdate{ID: id, Status: status, Content: b.Content}

	switch inv.name {
	case "Edit":
		update.Diff = &wire.DiffContent{
			Path:    stringInput(inv.input, "path"),
			OldText: stringInput(inv.input, "old_string"),
			NewText: stringInput(inv.input, "new_string"),
		}
	case "Write":
		update.Diff = &wire.DiffContent{
			Path:    stringInput(inv.input, "path"),
			NewText: stringInput(inv.input, "content"),
		}
	}

	updates := []wire.Update{update}

	if inv.name == "TodoWrite" {
		if entries := planEntries(inv.input); entries != nil {
			updates = append(updates, wire.Plan{Entries: entries})
		}
	}

	return updates
}

func planEntries(input map[string]any) []wire.PlanEntry {
	raw, ok := input["todos"].([]any)
	if !ok {
		return nil
	}
	entries := make([]wire.PlanEntry, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, wire.PlanEntry{
			Content:    stringInput(m, "content"),
			Status:     stringInput(m, "status"),
			ActiveForm: stringInput(m, "activeForm"),
		})
	}
	return entries
}

func stringInput(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// title derives a ToolCall's display title from its name and input (spec
// §4.9: "Read <path>", Bash uses description or truncated command).
func (c *Converter) title(name string, input map[string]any) string {
	switch name {
	case "Read", "Write", "Edit", "NotebookRead", "NotebookEdit", "LS":
		if path := stringInput(input, "path"); path != "" {
			return fmt.Sprintf("%s %s", name, normalizePath(c.cwd, path))
		}
		if path := stringInput(input, "notebook_path"); path != "" {
			return fmt.Sprintf("%s %s", name, normalizePath(c.cwd, path))
		}
	case "Bash":
		if desc := stringInput(input, "description"); desc != "" {
			return truncate(desc)
		}
		return truncate(stringInput(input, "command"))
	}
	return name
}

func (c *Converter) locations(name string, input map[string]any) []wire.ToolCallLocation {
	switch name {
	case "Read", "Write", "Edit":
		if path := stringInput(input, "path"); path != "" {
			return []wire.ToolCallLocation{{Path: resolveAbs(c.cwd, path)}}
		}
	}
	return nil
}

// normalizePath implements spec §4.9's title normalization: relative to
// cwd with "./" for direct-cwd files, absolute otherwise, duplicate
// slashes and "././" collapsed, long strings collapsed to just the name.
func normalizePath(cwd, path string) string {
	abs := resolveAbs(cwd, path)
	rel, err := filepath.Rel(cwd, abs)
	display := abs
	if err == nil && !strings.HasPrefix(rel, "..") {
		if strings.Contains(rel, string(filepath.Separator)) {
			display = rel
		} else {
			display = "./" + rel
		}
	}
	display = collapseSlashes(display)
	if len(display) > maxTitleLen {
		display = filepath.Base(display)
	}
	return display
}

func collapseSlashes(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.ReplaceAll(p, "./.", ".")
}

func resolveAbs(cwd, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(cwd, path))
}

func truncate(s string) string {
	if len(s) <= maxTitleLen {
		return s
	}
	return s[:maxTitleLen-1] + "…"
}

// toolKind maps a tool name to the ACP tool-kind vocabulary (spec §4.1).
func toolKind(name string) string {
	switch name {
	case "Read", "NotebookRead", "LS":
		return "read"
	case "Write", "Edit", "NotebookEdit":
		return "edit"
	case "Bash", "KillShell":
		return "execute"
	case "Glob", "Grep":
		return "search"
	case "WebFetch", "WebSearch":
		return "fetch"
	case "TodoWrite":
		return "think"
	case "ExitPlanMode":
		return "switch-mode"
	default:
		return "other"
	}
}
