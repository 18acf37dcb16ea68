package embeddedtools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerline/acpd/internal/acperr"
	"github.com/brokerline/acpd/internal/tools"
	"github.com/brokerline/acpd/internal/wire"
)

func newTestServer() *Server {
	var updates []wire.Update
	return New("sess-1", "/work", tools.NewRegistry(), nil, nil, nil, nil, nil,
		func(u wire.Update) { updates = append(updates, u) },
		func() {})
}

func callToolRaw(t *testing.T, s *Server, name string, args map[string]any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)
	return s.Handle(context.Background(), "call_tool", raw)
}

func TestCallTool_UnknownLocalToolReturnsToolNotFoundKind(t *testing.T) {
	s := newTestServer()
	_, err := callToolRaw(t, s, ReservedPrefix+"NoSuchTool", nil)
	require.Error(t, err)

	var acpErr *acperr.Error
	require.True(t, errors.As(err, &acpErr))
	assert.Equal(t, acperr.KindToolNotFound, acpErr.Kind)
	assert.Equal(t, acperr.Code(acperr.KindToolNotFound), acpErr.Code())
}

func TestCallTool_ExternalServerNameRoutesToMCPDispatchNotLocalLookup(t *testing.T) {
	s := newTestServer() // s.mcp is nil: no external servers configured
	_, err := callToolRaw(t, s, "mcp__github__search_issues", map[string]any{"q": "bug"})
	require.Error(t, err)

	var acpErr *acperr.Error
	require.True(t, errors.As(err, &acpErr))
	assert.Equal(t, acperr.KindToolNotFound, acpErr.Kind)
	// The error must reference the external tool's full name, not a
	// locally-stripped "github__search_issues" lookup miss.
	assert.Contains(t, acpErr.Message, "mcp__github__search_issues")
}

func TestCallTool_ReservedPrefixNeverTreatedAsExternal(t *testing.T) {
	s := newTestServer()
	_, err := callToolRaw(t, s, ReservedPrefix+"Missing", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "no external MCP server")
}

func TestNotify_CancelledInvokesHookExactlyOnce(t *testing.T) {
	calls := 0
	s := New("sess-1", "/work", tools.NewRegistry(), nil, nil, nil, nil, nil,
		func(wire.Update) {}, func() { calls++ })

	s.Notify("notifications/cancelled", nil)
	s.Notify("notifications/cancelled", nil)

	assert.Equal(t, 1, calls)
}
