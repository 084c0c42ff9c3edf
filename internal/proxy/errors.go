package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors for proxy operations.
var (
	// ErrInvalidUpstream indicates the upstream URL cannot be proxied to.
	ErrInvalidUpstream = errors.New("invalid upstream URL")

	// ErrServerRunning indicates Start was called on a running server.
	ErrServerRunning = errors.New("server already running")
)

// ProxyError represents a proxy-related error with details.
type ProxyError struct {
	Op      string // Operation that failed
	Target  string // Upstream URL if applicable
	Message string // Human-readable message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *ProxyError) Error() string {
	msg := fmt.Sprintf("proxy error [%s]", e.Op)
	if e.Target != "" {
		msg += " target=" + e.Target
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProxyError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ProxyError) Is(target error) bool {
	_, ok := target.(*ProxyError)
	return ok || errors.Is(e.Cause, target)
}

// NewInvalidUpstreamError creates an error for an unusable upstream URL.
func NewInvalidUpstreamError(target, message string) *ProxyError {
	return &ProxyError{
		Op:      "parse_upstream",
		Target:  target,
		Message: message,
		Cause:   ErrInvalidUpstream,
	}
}

// IsProxyError checks if an error is a ProxyError.
func IsProxyError(err error) bool {
	var proxyErr *ProxyError
	return errors.As(err, &proxyErr)
}
