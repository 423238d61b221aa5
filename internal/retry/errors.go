package retry

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Kind classifies a failure for retry purposes.
type Kind int

const (
	KindFatal Kind = iota
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

type classifiedError struct {
	kind Kind
	err  error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindTransient, err: err}
}

// Fatal marks err as permanently failed.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{kind: KindFatal, err: err}
}

// KindOf returns the outermost classification in err's chain.
// Unclassified errors are fatal.
func KindOf(err error) Kind {
	var c *classifiedError
	if errors.As(err, &c) {
		return c.kind
	}
	return KindFatal
}

// IsClassified reports whether err already carries a Kind.
func IsClassified(err error) bool {
	var c *classifiedError
	return errors.As(err, &c)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

var recoverablePatterns = []string{
	"connection reset by peer",
	"connection refused",
	"timeout",
	"temporary failure",
	"network is unreachable",
	"broken pipe",
	"i/o timeout",
	"eof",
	"tls handshake timeout",
	"no such host",
	"connection timed out",
	"too many requests",
	"rate limit",
	"nonce",
}

// IsRecoverable guesses whether an unclassified transport error is worth
// retrying. Context cancellation is never recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range recoverablePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
