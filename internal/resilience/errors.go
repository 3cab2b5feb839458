// Package resilience provides the error taxonomy and retry policy shared by
// direct calls and the task-queue adapters.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind names the failure classes the orchestration distinguishes. The
// kind decides retry behavior: only transient errors are retried.
type ErrorKind string

const (
	// KindTransient covers network timeouts, connection loss and 5xx-style
	// upstream failures. Safe to retry with backoff.
	KindTransient ErrorKind = "transient"

	// KindNotFound means a referenced company or document does not exist.
	// Fatal to the task, never retried.
	KindNotFound ErrorKind = "not_found"

	// KindValidation marks a malformed extraction payload. The offending
	// item is skipped; the error is recorded, not retried.
	KindValidation ErrorKind = "validation"

	// KindPermanentRejection is a definitive upstream refusal (e.g. a 403
	// from a source site). Degrades to an empty result, never retried.
	KindPermanentRejection ErrorKind = "permanent_rejection"

	// KindStorage is a store-level failure (constraint violation,
	// connection loss during upsert). Fails the task, not retried here;
	// surfaced so callers see it rather than a silent partial write.
	KindStorage ErrorKind = "storage"
)

// ClassifiedError attaches an ErrorKind to an underlying error.
type ClassifiedError struct {
	Kind       ErrorKind
	Err        error
	StatusCode int
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable, with an optional HTTP status code.
func Transient(err error, statusCode int) *ClassifiedError {
	return &ClassifiedError{Kind: KindTransient, Err: err, StatusCode: statusCode}
}

// NotFound wraps err as a missing-entity failure.
func NotFound(err error) *ClassifiedError {
	return &ClassifiedError{Kind: KindNotFound, Err: err}
}

// Validation wraps err as a malformed-payload failure.
func Validation(err error) *ClassifiedError {
	return &ClassifiedError{Kind: KindValidation, Err: err}
}

// PermanentRejection wraps err as a definitive upstream refusal.
func PermanentRejection(err error, statusCode int) *ClassifiedError {
	return &ClassifiedError{Kind: KindPermanentRejection, Err: err, StatusCode: statusCode}
}

// Storage wraps err as a store-level failure.
func Storage(err error) *ClassifiedError {
	return &ClassifiedError{Kind: KindStorage, Err: err}
}

// Classify returns the ErrorKind of err. Unclassified errors that look like
// network trouble are treated as transient; everything else defaults to
// storage-grade failure semantics at the caller's discretion via KindOf.
func Classify(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if isNetworkTransient(err) {
		return KindTransient
	}
	return ""
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && Classify(err) == KindTransient
}

// IsPermanentRejection reports whether err is a definitive upstream refusal.
func IsPermanentRejection(err error) bool {
	return err != nil && Classify(err) == KindPermanentRejection
}

// IsNotFound reports whether err is a missing-entity failure.
func IsNotFound(err error) bool {
	return err != nil && Classify(err) == KindNotFound
}

// IsTransientHTTPStatus reports whether an HTTP status indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// isNetworkTransient matches network-level failures that arrive unwrapped
// from HTTP and FTP clients.
func isNetworkTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
