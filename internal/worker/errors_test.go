package worker

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/finstat/internal/resilience"
)

// assertNonRetryable asserts err carries a non-retryable application error of
// the given type, however deep the task-queue machinery wrapped it.
func assertNonRetryable(t *testing.T, err error, errType string) {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errType, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestAsActivityError_NonRetryableKinds(t *testing.T) {
	cases := []struct {
		err error
		typ string
	}{
		{resilience.NotFound(eris.New("missing")), "not_found"},
		{resilience.Validation(eris.New("bad payload")), "validation"},
		{resilience.PermanentRejection(eris.New("403"), 403), "permanent_rejection"},
		{resilience.Storage(eris.New("constraint")), "storage"},
	}
	for _, tc := range cases {
		assertNonRetryable(t, asActivityError(tc.err), tc.typ)
	}
}

func TestAsActivityError_TransientPassesThrough(t *testing.T) {
	base := resilience.Transient(eris.New("timeout"), 504)
	err := asActivityError(base)

	var appErr *temporal.ApplicationError
	assert.False(t, errors.As(err, &appErr))
	assert.True(t, resilience.IsTransient(err))
}

func TestAsActivityError_WrappedKindSurvives(t *testing.T) {
	wrapped := eris.Wrap(resilience.Storage(eris.New("constraint")), "worker: upsert")
	assertNonRetryable(t, asActivityError(wrapped), "storage")
}

func TestAsActivityError_Nil(t *testing.T) {
	assert.NoError(t, asActivityError(nil))
}

func TestNonRetryableErrorTypes(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"not_found", "validation", "permanent_rejection", "storage"},
		nonRetryableErrorTypes())
}

func TestTerminalDiscoveryKind(t *testing.T) {
	kind, terminal := terminalDiscoveryKind(resilience.PermanentRejection(eris.New("403"), 403))
	assert.True(t, terminal)
	assert.Equal(t, "permanent_rejection", kind)

	_, terminal = terminalDiscoveryKind(resilience.Transient(eris.New("timeout"), 0))
	assert.False(t, terminal)
}
