package hnap

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorKind represents the category of error that occurred
type ErrorKind int

const (
	// KindNetwork indicates a connection-level failure (refused, unreachable, reset)
	KindNetwork ErrorKind = iota
	// KindTimeout indicates a request or retry deadline expired
	KindTimeout
	// KindHTTP indicates a non-2xx reply from the plug
	KindHTTP
	// KindParse indicates a reply that is not well-formed XML
	KindParse
	// KindProtocol indicates the plug rejected the session ("ERROR" sentinel or failed login)
	KindProtocol
	// KindFatal indicates a retry budget was exhausted
	KindFatal
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "Network Error"
	case KindTimeout:
		return "Timeout"
	case KindHTTP:
		return "HTTP Error"
	case KindParse:
		return "Parse Error"
	case KindProtocol:
		return "Protocol Error"
	case KindFatal:
		return "Fatal Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

var (
	// ErrMaxLoginAttempts is wrapped by every retry-exhaustion error.
	ErrMaxLoginAttempts = errors.New("maximum login attempts exceeded")

	// ErrNotLoggedIn is returned by signed calls issued before a session key exists.
	ErrNotLoggedIn = errors.New("no session key, login first")
)

// Error represents a failure while talking to the plug
type Error struct {
	Kind       ErrorKind // Category of error
	Method     string    // HNAP method being called (empty for non-call failures)
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Err        error     // Underlying error (if any)
	Retryable  bool      // Whether repeating the call may succeed
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Method != "" {
		b.WriteString(" [")
		b.WriteString(e.Method)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// classifyTransportError turns an http.Client error into an *Error.
func classifyTransportError(method string, err error) *Error {
	if os.IsTimeout(err) {
		return &Error{Kind: KindTimeout, Method: method, Message: "request timed out", Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{Kind: KindNetwork, Method: method, Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name), Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{Kind: KindNetwork, Method: method, Message: "plug refused connection", Err: err, Retryable: true}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &Error{Kind: KindNetwork, Method: method, Message: "host unreachable", Err: err, Retryable: true}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{Kind: KindNetwork, Method: method, Message: "network unreachable", Err: err, Retryable: true}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return classifyTransportError(method, urlErr.Err)
	}

	return &Error{Kind: KindNetwork, Method: method, Message: "request failed", Err: err, Retryable: true}
}

func newHTTPError(method string, status int) *Error {
	return &Error{
		Kind:       KindHTTP,
		Method:     method,
		Message:    fmt.Sprintf("unexpected status code: %d", status),
		StatusCode: status,
		Retryable:  status >= 500,
	}
}

func newParseError(method string, err error) *Error {
	return &Error{Kind: KindParse, Method: method, Message: "malformed XML reply", Err: err}
}

func newFatalError(method string, attempts int, last error) *Error {
	err := ErrMaxLoginAttempts
	if last != nil {
		err = fmt.Errorf("%w: %w", ErrMaxLoginAttempts, last)
	}
	return &Error{
		Kind:    KindFatal,
		Method:  method,
		Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Err:     err,
	}
}

// IsNetworkError reports whether err is a connection or timeout failure.
func IsNetworkError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNetwork || e.Kind == KindTimeout
	}
	return false
}

// IsFatal reports whether err is a retry-exhaustion failure.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindFatal {
		return true
	}
	return errors.Is(err, ErrMaxLoginAttempts)
}

// IsRetryable reports whether repeating the failed call may succeed.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// TroubleshootingHint returns user-facing advice for an error
func TroubleshootingHint(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "An unexpected error occurred. Please try again."
	}

	switch e.Kind {
	case KindTimeout:
		return strings.Join([]string{
			"The plug did not respond in time.",
			"Troubleshooting:",
			"  • Check that the plug is powered and its LED is solid green",
			"  • Try increasing --timeout",
		}, "\n")
	case KindNetwork:
		return strings.Join([]string{
			"Could not reach the plug.",
			"Troubleshooting:",
			"  • Verify the host or IP address is correct",
			"  • Make sure you are on the same network as the plug",
		}, "\n")
	case KindHTTP:
		return fmt.Sprintf("The plug returned HTTP %d. Check that --host points at the plug, not a router.", e.StatusCode)
	case KindParse:
		return "The plug returned a reply that is not HNAP XML. Check that --host points at a DSP-W215."
	case KindProtocol, KindFatal:
		return strings.Join([]string{
			"The plug rejected the session.",
			"Troubleshooting:",
			"  • The password is the PIN code printed on the plug's label",
			"  • The username is almost always \"admin\"",
		}, "\n")
	default:
		return "An error occurred. Please check the error message for details."
	}
}
