package hnap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{
			name:      "timeout",
			err:       &url.Error{Op: "Post", URL: "http://x/HNAP1", Err: timeoutErr{}},
			kind:      KindTimeout,
			retryable: true,
		},
		{
			name:      "refused",
			err:       &url.Error{Op: "Post", URL: "http://x/HNAP1", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}},
			kind:      KindNetwork,
			retryable: true,
		},
		{
			name:      "dns",
			err:       &url.Error{Op: "Post", URL: "http://x/HNAP1", Err: &net.DNSError{Name: "plug.invalid", Err: "no such host"}},
			kind:      KindNetwork,
			retryable: false,
		},
		{
			name:      "other",
			err:       errors.New("boom"),
			kind:      KindNetwork,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyTransportError("IsDeviceReady", tt.err)
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !IsNetworkError(got) {
				t.Error("IsNetworkError() should be true")
			}
		})
	}
}

func TestNewHTTPError(t *testing.T) {
	if e := newHTTPError("Login", 500); !e.Retryable || e.StatusCode != 500 {
		t.Errorf("500 error = %+v", e)
	}
	if e := newHTTPError("Login", 404); e.Retryable {
		t.Errorf("404 error should not be retryable")
	}
}

func TestFatalError(t *testing.T) {
	cause := newHTTPError("Login", 503)
	err := fmt.Errorf("wrapped: %w", newFatalError("Login", 5, cause))

	if !IsFatal(err) {
		t.Error("IsFatal() should be true")
	}
	if !errors.Is(err, ErrMaxLoginAttempts) {
		t.Error("errors.Is(err, ErrMaxLoginAttempts) should be true")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("fatal error should keep its cause in the chain: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "maximum login attempts exceeded") {
		t.Errorf("Error() = %s", err.Error())
	}
	if IsFatal(cause) {
		t.Error("IsFatal() should be false for an HTTP error")
	}
	if IsFatal(context.Canceled) {
		t.Error("IsFatal() should be false for a plain error")
	}
}

func TestErrorKind_String(t *testing.T) {
	if KindFatal.String() != "Fatal Error" {
		t.Errorf("KindFatal.String() = %s", KindFatal.String())
	}
	if ErrorKind(42).String() != "ErrorKind(42)" {
		t.Errorf("unknown kind String() = %s", ErrorKind(42).String())
	}
}

func TestTroubleshootingHint(t *testing.T) {
	if !strings.Contains(TroubleshootingHint(&Error{Kind: KindFatal}), "PIN") {
		t.Error("fatal hint should mention the PIN")
	}
	if !strings.Contains(TroubleshootingHint(newHTTPError("Login", 404)), "404") {
		t.Error("HTTP hint should mention the status code")
	}
	if TroubleshootingHint(errors.New("x")) == "" {
		t.Error("hint should never be empty")
	}
}
