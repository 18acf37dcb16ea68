package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerline/acpd/internal/assistant"
	"github.com/brokerline/acpd/internal/wire"
)

func TestConvert_ToolUse_BashAnnouncementIsInProgressWithTerminalInfo(t *testing.T) {
	c := NewConverter("/work")
	updates := c.Convert(assistant.Event{Blocks: []assistant.Block{
		{Type: "tool_use", ToolUseID: "call-1", ToolName: "Bash", Input: map[string]any{"command": "ls"}},
	}})

	require.Len(t, updates, 1)
	call, ok := updates[0].(wire.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "in_progress", call.Status)

	info, ok := call.Meta["terminal_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "call-1", info["terminal_id"])
	assert.Equal(t, "/work", info["cwd"])
}

func TestConvert_ToolUse_NonBashAnnouncementHasNoTerminalMeta(t *testing.T) {
	c := NewConverter("/work")
	updates := c.Convert(assistant.Event{Blocks: []assistant.Block{
		{Type: "tool_use", ToolUseID: "call-2", ToolName: "Read", Input: map[string]any{"path": "a.go"}},
	}})

	require.Len(t, updates, 1)
	call, ok := updates[0].(wire.ToolCall)
	require.True(t, ok)
	assert.Equal(t, "in_progress", call.Status)
	assert.Nil(t, call.Meta)
}

func TestConvert_ToolResult_DroppedWhenOrphan(t *testing.T) {
	c := NewConverter("/work")
	updates := c.Convert(assistant.Event{Blocks: []assistant.Block{
		{Type: "tool_result", ToolUseID: "unknown", Content: "x"},
	}})
	assert.Empty(t, updates)
}
