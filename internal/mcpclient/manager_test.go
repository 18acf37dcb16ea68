package mcpclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerline/acpd/internal/acperr"
)

func TestParseFullName_ValidName(t *testing.T) {
	server, tool, err := ParseFullName("mcp__github__search_issues")
	require.NoError(t, err)
	assert.Equal(t, "github", server)
	assert.Equal(t, "search_issues", tool)
}

func TestParseFullName_RejectsMissingPrefix(t *testing.T) {
	_, _, err := ParseFullName("github__search_issues")
	require.Error(t, err)
	var acpErr *acperr.Error
	require.True(t, errors.As(err, &acpErr))
	assert.Equal(t, acperr.KindInvalidParams, acpErr.Kind)
}

func TestParseFullName_RejectsReservedACPServerName(t *testing.T) {
	_, _, err := ParseFullName("mcp__acp__Read")
	require.Error(t, err)
	var acpErr *acperr.Error
	require.True(t, errors.As(err, &acpErr))
	assert.Equal(t, acperr.KindInvalidParams, acpErr.Kind)
}

func TestParseFullName_RejectsMalformedMissingParts(t *testing.T) {
	_, _, err := ParseFullName("mcp__onlyserver")
	assert.Error(t, err)
}

func TestFriendlyName_KnownPairResolves(t *testing.T) {
	name, ok := FriendlyName("web-fetch", "fetch")
	require.True(t, ok)
	assert.Equal(t, "WebFetch", name)
}

func TestFriendlyName_UnknownPairIsUnknown(t *testing.T) {
	_, ok := FriendlyName("unknown-server", "whatever")
	assert.False(t, ok)
}

func TestCallTool_UnknownServerReturnsExternalRPCErrorKind(t *testing.T) {
	m := NewManager()
	defer m.CloseAll()

	_, _, err := m.CallTool(context.Background(), "mcp__nosuchserver__tool", nil)
	require.Error(t, err)
	var acpErr *acperr.Error
	require.True(t, errors.As(err, &acpErr))
	assert.Equal(t, acperr.KindExternalRPCError, acpErr.Kind)
}
