// Package acp is the outer JSON-RPC router: it implements
// github.com/coder/acp-go-sdk's Agent interface (spec §4.8) and is the
// single place that translates between the broker's own internal/wire
// representation and the SDK's wire types — isolating the SDK's exact
// struct shapes to this package, per the risk-reduction approach recorded
// in internal/wire's doc comment.
//
// ASSUMPTION (undocumented in the retrieval pack beyond the one example
// file naming AgentMessageChunk/ToolCall/ToolCallUpdate variants): the
// remaining SessionUpdate variants follow the same
// "SessionUpdate<Variant>" naming and pointer-embedding convention already
// confirmed for those three, and ContentBlock follows the SDK's
// established "pointer-per-variant" tagged-union style. See DESIGN.md.
package acp

import (
	"fmt"

	acpsdk "github.com/coder/acp-go-sdk"

	"github.com/brokerline/acpd/internal/assistant"
	"github.com/brokerline/acpd/internal/wire"
)

// toSessionUpdate converts one broker-internal update into the SDK's
// wire type. Diff/content fields beyond the confirmed
// ToolCallId/Status/RawOutput trio are folded into RawOutput rather than
// guessed at, to keep this function dependent only on confirmed fields.
func toSessionUpdate(u wire.Update) acpsdk.SessionUpdate {
	switch v := u.(type) {
	case wire.AgentMessageChunk:
		return acpsdk.SessionUpdate{
			AgentMessageChunk: &acpsdk.SessionUpdateAgentMessageChunk{
				Content: acpsdk.TextBlock(v.Text),
			},
		}

	case wire.AgentThoughtChunk:
		return acpsdk.SessionUpdate{
			AgentThoughtChunk: &acpsdk.SessionUpdateAgentThoughtChunk{
				Content: acpsdk.TextBlock(v.Text),
			},
		}

	case wire.ToolCall:
		return acpsdk.SessionUpdate{
			ToolCall: &acpsdk.SessionUpdateToolCall{
				ToolCallId: acpsdk.ToolCallId(v.ID),
				Title:      v.Title,
				Kind:       toolKind(v.Kind),
				Status:     toolStatus(v.Status),
				Locations:  toolLocations(v.Locations),
				RawInput:   rawInput(v),
			},
		}

	case wire.ToolCallUpdate:
		return acpsdk.SessionUpdate{
			ToolCallUpdate: &acpsdk.SessionUpdateToolCallUpdate{
				ToolCallId: acpsdk.ToolCallId(v.ID),
				Status:     toolStatus(v.Status),
				RawOutput:  rawOutput(v),
			},
		}

	case wire.Plan:
		return acpsdk.SessionUpdate{
			Plan: &acpsdk.SessionUpdatePlan{Entries: planEntries(v.Entries)},
		}

	case wire.CurrentModeUpdate:
		return acpsdk.SessionUpdate{
			CurrentModeUpdate: &acpsdk.SessionUpdateCurrentModeUpdate{
				CurrentModeId: acpsdk.SessionModeId(v.ModeID),
			},
		}

	default:
		return acpsdk.SessionUpdate{}
	}
}

// rawInput folds v.Meta (spec §4.2 terminal_info/terminal_exit) under a
// "meta" key alongside the raw tool arguments, the same fold-extra-fields-in
// approach rawOutput uses for ToolCallUpdate.
func rawInput(v wire.ToolCall) map[string]any {
	if len(v.Meta) == 0 {
		return v.RawInput
	}
	out := map[string]any{}
	for k, val := range v.RawInput {
		out[k] = val
	}
	out["meta"] = v.Meta
	return out
}

func rawOutput(u wire.ToolCallUpdate) map[string]any {
	out := map[string]any{}
	if u.Content != "" {
		out["content"] = u.Content
	}
	if u.Diff != nil {
		out["diff"] = map[string]any{
			"path":     u.Diff.Path,
			"old_text": u.Diff.OldText,
			"new_text": u.Diff.NewText,
		}
	}
	for k, v := range u.RawOutput {
		out[k] = v
	}
	return out
}

func toolLocations(locs []wire.ToolCallLocation) []acpsdk.ToolCallLocation {
	if locs == nil {
		return nil
	}
	out := make([]acpsdk.ToolCallLocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, acpsdk.ToolCallLocation{Path: l.Path})
	}
	return out
}

func planEntries(entries []wire.PlanEntry) []acpsdk.PlanEntry {
	out := make([]acpsdk.PlanEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, acpsdk.PlanEntry{
			Content:    e.Content,
			Status:     e.Status,
			ActiveForm: e.ActiveForm,
		})
	}
	return out
}

func toolKind(kind string) acpsdk.ToolKind {
	switch kind {
	case "read":
		return acpsdk.ToolKindRead
	case "edit":
		return acpsdk.ToolKindEdit
	case "execute":
		return acpsdk.ToolKindExecute
	case "search":
		return acpsdk.ToolKindSearch
	case "fetch":
		return acpsdk.ToolKindFetch
	case "think":
		return acpsdk.ToolKindThink
	case "switch-mode":
		return acpsdk.ToolKindSwitchMode
	default:
		return acpsdk.ToolKindOther
	}
}

func toolStatus(status string) acpsdk.ToolCallStatus {
	switch status {
	case "pending":
		return acpsdk.ToolCallStatusPending
	case "in_progress":
		return acpsdk.ToolCallStatusInProgress
	case "completed":
		return acpsdk.ToolCallStatusCompleted
	case "failed":
		return acpsdk.ToolCallStatusFailed
	default:
		return acpsdk.ToolCallStatusPending
	}
}

// promptBlocks converts the Client's prompt content blocks into Assistant
// blocks per spec §4.10 step 5: text passes through raw; an embedded
// resource with text is wrapped as a context tag; a resource-link becomes
// a markdown link; image blocks are forwarded; audio blocks are dropped.
func promptBlocks(blocks []acpsdk.ContentBlock) []assistant.Block {
	out := make([]assistant.Block, 0, len(blocks))
	for _, b := range blocks {
		switch {
		case b.Text != nil:
			out = append(out, assistant.Block{Type: "text", Text: b.Text.Text})

		case b.Resource != nil && b.Resource.Resource.Text != "":
			out = append(out, assistant.Block{
				Type: "text",
				Text: fmt.Sprintf("<context uri=%q>%s</context>", b.Resource.Resource.Uri, b.Resource.Resource.Text),
			})

		case b.ResourceLink != nil:
			out = append(out, assistant.Block{
				Type: "text",
				Text: fmt.Sprintf("[%s](%s)", b.ResourceLink.Name, b.ResourceLink.Uri),
			})

		case b.Image != nil:
			out = append(out, assistant.Block{
				Type:      "image",
				ImageData: b.Image.Data,
				MimeType:  b.Image.MimeType,
			})

		case b.Audio != nil:
			// Dropped per spec §4.10 step 5.

		default:
			// Unknown block kind; dropped rather than failing the prompt.
		}
	}
	return out
}
