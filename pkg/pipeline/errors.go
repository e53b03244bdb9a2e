package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure.
type Kind string

const (
	// KindTransient covers network, timeout and rate-limit failures.
	// Transient failures are eligible for retry.
	KindTransient Kind = "transient"

	// KindAuthentication covers credential and session failures. They are
	// retried, but exhaustion is terminal for the current operation.
	KindAuthentication Kind = "authentication"

	// KindUploadVerification means the upload was submitted but the
	// post-submit confirmation failed. Treated as an upload failure.
	KindUploadVerification Kind = "upload_verification"

	// KindUnexpected is any uncaught failure.
	KindUnexpected Kind = "unexpected"
)

// Error is a failure classified with a taxonomy kind. Adapters wrap their
// failures in one of the constructors below so the pipeline can decide
// between retrying, falling through to the next source, and failing the
// transaction.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable transient failure.
func Transient(err error) error {
	return &Error{Kind: KindTransient, Err: err}
}

// Transientf formats a retryable transient failure.
func Transientf(format string, args ...interface{}) error {
	return &Error{Kind: KindTransient, Err: fmt.Errorf(format, args...)}
}

// AuthFailure wraps err as an authentication failure.
func AuthFailure(err error) error {
	return &Error{Kind: KindAuthentication, Err: err}
}

// AuthFailuref formats an authentication failure.
func AuthFailuref(format string, args ...interface{}) error {
	return &Error{Kind: KindAuthentication, Err: fmt.Errorf(format, args...)}
}

// UploadVerificationf formats an upload verification failure.
func UploadVerificationf(format string, args ...interface{}) error {
	return &Error{Kind: KindUploadVerification, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the taxonomy kind of err. Unclassified errors are
// unexpected.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnexpected
}

// IsRetryable reports whether err may be retried by the retry policy.
// Transient and authentication failures are retryable; everything else ends
// the operation immediately.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransient, KindAuthentication:
		return true
	}
	return false
}
