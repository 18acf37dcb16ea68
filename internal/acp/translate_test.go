package acp

import (
	"testing"

	acpsdk "github.com/coder/acp-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerline/acpd/internal/wire"
)

func TestToSessionUpdate_AgentMessageChunk(t *testing.T) {
	u := toSessionUpdate(wire.AgentMessageChunk{Text: "hello"})
	require.NotNil(t, u.AgentMessageChunk)
	require.NotNil(t, u.AgentMessageChunk.Content.Text)
	assert.Equal(t, "hello", u.AgentMessageChunk.Content.Text.Text)
}

func TestToSessionUpdate_ToolCall(t *testing.T) {
	u := toSessionUpdate(wire.ToolCall{
		ID:        "call-1",
		Title:     "Read file",
		Kind:      "read",
		Status:    "pending",
		Locations: []wire.ToolCallLocation{{Path: "/tmp/a.txt"}},
	})
	require.NotNil(t, u.ToolCall)
	assert.Equal(t, acpsdk.ToolCallId("call-1"), u.ToolCall.ToolCallId)
	assert.Equal(t, acpsdk.ToolKindRead, u.ToolCall.Kind)
	assert.Equal(t, acpsdk.ToolCallStatusPending, u.ToolCall.Status)
	require.Len(t, u.ToolCall.Locations, 1)
	assert.Equal(t, "/tmp/a.txt", u.ToolCall.Locations[0].Path)
}

func TestToSessionUpdate_ToolCall_FoldsMetaIntoRawInput(t *testing.T) {
	u := toSessionUpdate(wire.ToolCall{
		ID:       "call-3",
		RawInput: map[string]any{"command": "ls"},
		Meta: map[string]any{
			"terminal_info": map[string]any{"terminal_id": "call-3", "cwd": "/work"},
		},
	})
	require.NotNil(t, u.ToolCall)
	assert.Equal(t, "ls", u.ToolCall.RawInput["command"])
	meta, ok := u.ToolCall.RawInput["meta"].(map[string]any)
	require.True(t, ok)
	info, ok := meta["terminal_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/work", info["cwd"])
}

func TestToSessionUpdate_ToolCall_NoMetaLeavesRawInputUntouched(t *testing.T) {
	u := toSessionUpdate(wire.ToolCall{ID: "call-4", RawInput: map[string]any{"path": "a.go"}})
	require.NotNil(t, u.ToolCall)
	_, hasMeta := u.ToolCall.RawInput["meta"]
	assert.False(t, hasMeta)
}

func TestToSessionUpdate_ToolCallUpdate_FoldsDiffAndContentIntoRawOutput(t *testing.T) {
	u := toSessionUpdate(wire.ToolCallUpdate{
		ID:      "call-2",
		Status:  "completed",
		Content: "output text",
		Diff: &wire.DiffContent{
			Path:    "/tmp/b.txt",
			OldText: "old",
			NewText: "new",
		},
		RawOutput: map[string]any{"exit_code": 0},
	})
	require.NotNil(t, u.ToolCallUpdate)
	assert.Equal(t, acpsdk.ToolCallStatusCompleted, u.ToolCallUpdate.Status)
	assert.Equal(t, "output text", u.ToolCallUpdate.RawOutput["content"])
	assert.Equal(t, 0, u.ToolCallUpdate.RawOutput["exit_code"])
	diff, ok := u.ToolCallUpdate.RawOutput["diff"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/tmp/b.txt", diff["path"])
}

func TestToSessionUpdate_Plan(t *testing.T) {
	u := toSessionUpdate(wire.Plan{Entries: []wire.PlanEntry{
		{Content: "step one", Status: "pending", ActiveForm: "Doing step one"},
	}})
	require.NotNil(t, u.Plan)
	require.Len(t, u.Plan.Entries, 1)
	assert.Equal(t, "step one", u.Plan.Entries[0].Content)
}

func TestToSessionUpdate_CurrentModeUpdate(t *testing.T) {
	u := toSessionUpdate(wire.CurrentModeUpdate{ModeID: "acceptEdits"})
	require.NotNil(t, u.CurrentModeUpdate)
	assert.Equal(t, acpsdk.SessionModeId("acceptEdits"), u.CurrentModeUpdate.CurrentModeId)
}

func TestToolKind(t *testing.T) {
	cases := map[string]acpsdk.ToolKind{
		"read":        acpsdk.ToolKindRead,
		"edit":        acpsdk.ToolKindEdit,
		"execute":     acpsdk.ToolKindExecute,
		"search":      acpsdk.ToolKindSearch,
		"fetch":       acpsdk.ToolKindFetch,
		"think":       acpsdk.ToolKindThink,
		"switch-mode": acpsdk.ToolKindSwitchMode,
		"bogus":       acpsdk.ToolKindOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, toolKind(in), "kind=%s", in)
	}
}

func TestToolStatus_UnknownFallsBackToPending(t *testing.T) {
	assert.Equal(t, acpsdk.ToolCallStatusPending, toolStatus("something-new"))
}

func TestPromptBlocks_Text(t *testing.T) {
	out := promptBlocks([]acpsdk.ContentBlock{acpsdk.TextBlock("hi there")})
	require.Len(t, out, 1)
	assert.Equal(t, "text", out[0].Type)
	assert.Equal(t, "hi there", out[0].Text)
}

func TestPromptBlocks_EmptyInputYieldsEmptyOutput(t *testing.T) {
	out := promptBlocks(nil)
	assert.Empty(t, out)
}
