package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brokerline/acpd/internal/permission"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
)

type allowAllRules struct{}

func (allowAllRules) Check(string, map[string]any) permission.RuleResult {
	return permission.RuleResult{Decision: permission.DecisionAllow, Rule: "test"}
}
func (allowAllRules) AllowAlways(string) {}

func newTestSession(t *testing.T) (*Session, *[]wire.Update) {
	t.Helper()
	var updates []wire.Update
	s := New(
		"sess-1",
		Config{Cwd: t.TempDir(), AssistantCommand: "true"},
		tools.NewRegistry(),
		allowAllRules{},
		func(ctx context.Context, req permission.Request) (permission.Outcome, error) {
			return permission.OutcomeAllowOnce, nil
		},
		func(u wire.Update) { updates = append(updates, u) },
		zap.NewNop(),
	)
	return s, &updates
}

func TestNew_StartsDisconnected(t *testing.T) {
	s, _ := newTestSession(t)
	assert.False(t, s.Connected())
	assert.Equal(t, permission.ModeDefault, s.Mode())
}

func TestSetMode_UpdatesModeAndPermissionEngine(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetMode(permission.ModeAcceptEdits)
	assert.Equal(t, permission.ModeAcceptEdits, s.Mode())
	assert.Equal(t, permission.ModeAcceptEdits, s.Permission.Mode())
}

func TestUsageTracker_RecordsTurnsAndTokens(t *testing.T) {
	var u UsageTracker
	u.RecordTurn()
	u.RecordTurn()
	u.AddTokens(10, 20)
	u.AddTokens(5, 1)

	assert.Equal(t, int64(2), u.Turns())
	in, out := u.Tokens()
	assert.Equal(t, int64(15), in)
	assert.Equal(t, int64(21), out)
}

func TestCancel_SetsCancelledFlagWithoutAHandle(t *testing.T) {
	s, _ := newTestSession(t)
	require.False(t, s.Cancelled())
	s.Cancel()
	assert.True(t, s.Cancelled())
	s.ClearCancelled()
	assert.False(t, s.Cancelled())
}

func TestCleanup_IsIdempotentWithoutAHandle(t *testing.T) {
	s, _ := newTestSession(t)
	s.Cleanup()
	s.Cleanup() // must not panic or double-close
}

func TestConfigMCPServers_ReturnsConfiguredList(t *testing.T) {
	s := New(
		"sess-2",
		Config{Cwd: t.TempDir()},
		tools.NewRegistry(),
		allowAllRules{},
		func(ctx context.Context, req permission.Request) (permission.Outcome, error) {
			return permission.OutcomeAllowOnce, nil
		},
		func(wire.Update) {},
		zap.NewNop(),
	)
	assert.Empty(t, s.ConfigMCPServers())
}
