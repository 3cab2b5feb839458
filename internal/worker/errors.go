package worker

import (
	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/finstat/internal/resilience"
)

// nonRetryableKinds lists the error kinds the task queue must never retry.
// Transient errors stay plain so the activity retry policy applies.
var nonRetryableKinds = []resilience.ErrorKind{
	resilience.KindNotFound,
	resilience.KindValidation,
	resilience.KindPermanentRejection,
	resilience.KindStorage,
}

// nonRetryableErrorTypes returns the application-error type names for the
// retry policy's NonRetryableErrorTypes field.
func nonRetryableErrorTypes() []string {
	types := make([]string, len(nonRetryableKinds))
	for i, k := range nonRetryableKinds {
		types[i] = string(k)
	}
	return types
}

// asActivityError converts a classified pipeline error into the matching
// Temporal error. Non-retryable kinds become non-retryable application errors
// typed by kind; transient and unclassified errors pass through so the
// activity retry policy decides.
func asActivityError(err error) error {
	if err == nil {
		return nil
	}
	kind := resilience.Classify(err)
	for _, k := range nonRetryableKinds {
		if kind == k {
			return temporal.NewNonRetryableApplicationError(err.Error(), string(kind), err)
		}
	}
	return err
}

// terminalDiscoveryKind reports whether a discovery failure should degrade to
// an empty result instead of failing the run.
func terminalDiscoveryKind(err error) (string, bool) {
	switch kind := resilience.Classify(err); kind {
	case resilience.KindPermanentRejection, resilience.KindNotFound:
		return string(kind), true
	default:
		return "", false
	}
}
