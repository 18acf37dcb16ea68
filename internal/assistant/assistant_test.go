package assistant

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brokerline/acpd/internal/acperr"
)

func TestCodeFor_AcpErrorUsesItsTaxonomyCode(t *testing.T) {
	err := acperr.New(acperr.KindToolNotFound, "tool not found: NoSuchTool")
	assert.Equal(t, acperr.Code(acperr.KindToolNotFound), codeFor(err))
}

func TestCodeFor_WrappedAcpErrorIsUnwrapped(t *testing.T) {
	cause := acperr.New(acperr.KindToolPermissionDenied, "denied")
	wrapped := fmt.Errorf("running tool: %w", cause)
	assert.Equal(t, acperr.Code(acperr.KindToolPermissionDenied), codeFor(wrapped))
}

func TestCodeFor_UntypedErrorFallsBackToMethodNotFound(t *testing.T) {
	assert.Equal(t, acperr.Code(acperr.KindMethodNotFound), codeFor(errors.New("boom")))
}
