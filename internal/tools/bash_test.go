package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackgroundRegistry is a minimal BackgroundRegistry double so
// killShellTool/bashOutputTool can be exercised without spawning a real
// process group.
type fakeBackgroundRegistry struct {
	incremental string
	full        string
	exitCode    int
	finished    bool
	killed      string
}

func (f *fakeBackgroundRegistry) Output(id string) (string, bool, int, error) {
	return f.incremental, f.finished, f.exitCode, nil
}

func (f *fakeBackgroundRegistry) FullOutput(id string) (string, int, error) {
	return f.full, f.exitCode, nil
}

func (f *fakeBackgroundRegistry) Kill(id string) error {
	f.killed = id
	return nil
}

func TestKillShellTool_ReturnsFullOutputNotIncrementalSlice(t *testing.T) {
	reg := &fakeBackgroundRegistry{
		incremental: "only the tail",
		full:        "the entire buffered output",
		exitCode:    7,
	}
	tctx := &Context{Shell: reg}

	res := killShellTool(context.Background(), map[string]any{"shell_id": "term-1"}, tctx)

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "the entire buffered output", res.Content)
	assert.Equal(t, "term-1", reg.killed)

	exit, ok := res.Metadata["terminal_exit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "term-1", exit["terminal_id"])
	assert.Equal(t, 7, exit["exit_code"])
}

func TestKillShellTool_RequiresShellID(t *testing.T) {
	res := killShellTool(context.Background(), map[string]any{}, &Context{Shell: &fakeBackgroundRegistry{}})
	assert.True(t, res.IsError)
}

type erroringBackgroundRegistry struct{ fakeBackgroundRegistry }

func (e *erroringBackgroundRegistry) FullOutput(id string) (string, int, error) {
	return "", 0, fmt.Errorf("no background shell with id %q", id)
}

func TestKillShellTool_PropagatesFullOutputError(t *testing.T) {
	reg := &erroringBackgroundRegistry{}
	res := killShellTool(context.Background(), map[string]any{"shell_id": "term-missing"}, &Context{Shell: reg})
	assert.True(t, res.IsError)
}

func TestBashTool_RequiresCommand(t *testing.T) {
	res := bashTool(context.Background(), map[string]any{}, &Context{})
	assert.True(t, res.IsError)
}
