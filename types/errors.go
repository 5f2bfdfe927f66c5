package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for client failure classification.
var (
	// ErrNoCredential indicates no credential pair is stored; the caller must log in.
	ErrNoCredential = errors.New("no credential stored")

	// ErrAbruptClose indicates the stream ended without a terminal frame.
	ErrAbruptClose = errors.New("stream closed without completion sentinel")
)

// FailureReason classifies an error for retry and failover decisions.
type FailureReason string

const (
	// FailureReasonAuth marks authentication failures (401, rejected refresh).
	FailureReasonAuth FailureReason = "auth"
	// FailureReasonTransient marks transport failures worth retrying.
	FailureReasonTransient FailureReason = "transient"
	// FailureReasonRateLimit marks rate-limit rejections.
	FailureReasonRateLimit FailureReason = "rate_limit"
	// FailureReasonCancelled marks caller-initiated cancellation.
	FailureReasonCancelled FailureReason = "cancelled"
	// FailureReasonUnknown marks everything else.
	FailureReasonUnknown FailureReason = "unknown"
)

// AuthError is returned when the backend rejects the credential and the
// refresh exchange could not produce a new one.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth %s failed", e.Op)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError wraps a network-level failure for a single attempt.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a timeout.
func (e *TransportError) Timeout() bool {
	var ne net.Error
	if errors.As(e.Err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// APIError is a non-2xx plain response or a terminal error frame on a stream.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.Code, e.Message)
}

// IsTransient reports whether err belongs to the failure class the retry
// policy is allowed to repeat: transport timeouts and abrupt connection
// loss. Application rejections, auth failures and cancellation are never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, ErrAbruptClose) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		if te.Timeout() {
			return true
		}
		return DefaultClassifier.ClassifyError(te.Err) == FailureReasonTransient
	}
	return false
}

// ErrorClassifier maps opaque errors to a failure reason.
type ErrorClassifier interface {
	ClassifyError(err error) FailureReason
}

// PatternClassifier classifies errors by message substrings. Transport
// libraries do not always surface typed errors, so string matching remains
// the fallback of last resort.
type PatternClassifier struct {
	authPatterns      []string
	transientPatterns []string
	rateLimitPatterns []string
}

// DefaultClassifier is the classifier used by the client when none is supplied.
var DefaultClassifier = NewPatternClassifier()

// NewPatternClassifier creates a classifier with the stock pattern tables.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{
		authPatterns: []string{
			"unauthorized", "invalid token", "token expired",
			"authentication", "401", "403", "forbidden",
		},
		transientPatterns: []string{
			"timeout", "timed out", "deadline exceeded",
			"connection reset", "connection refused", "broken pipe",
			"unexpected eof", "no such host",
		},
		rateLimitPatterns: []string{
			"rate limit", "too many requests", "429", "overloaded",
		},
	}
}

// ClassifyError returns the failure reason for err.
func (c *PatternClassifier) ClassifyError(err error) FailureReason {
	if err == nil {
		return FailureReasonUnknown
	}
	if errors.Is(err, context.Canceled) {
		return FailureReasonCancelled
	}

	errMsg := strings.ToLower(err.Error())

	if c.matchesAny(errMsg, c.transientPatterns) {
		return FailureReasonTransient
	}
	if c.matchesAny(errMsg, c.authPatterns) {
		return FailureReasonAuth
	}
	if c.matchesAny(errMsg, c.rateLimitPatterns) {
		return FailureReasonRateLimit
	}

	return FailureReasonUnknown
}

func (c *PatternClassifier) matchesAny(errMsg string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
