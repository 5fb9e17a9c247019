package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"
	"unicode/utf8"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid ocid"), false},
		{"explicit", NewTransientError(errors.New("busy"), 503), true},
		{"wrapped", fmt.Errorf("fetch page 3: %w", NewTransientError(errors.New("busy"), 429)), true},
		{"net timeout", timeoutErr{}, true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message pattern", errors.New("Get https://nest.go.tz: Temporary failure in name resolution"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422, 501} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("%d should be permanent", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("gateway timeout")
	te := NewTransientError(inner, 504)
	if !errors.Is(te, inner) {
		t.Error("expected the inner error in the chain")
	}
	if te.Error() != "gateway timeout" {
		t.Errorf("unexpected message %q", te.Error())
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		transient bool
	}{
		{"server error", 503, true},
		{"rate limited", 429, true},
		{"bad request", 400, false},
		{"not found", 404, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := StatusError("ingest: nest", tt.code, " upstream said no \n")
			if !strings.Contains(err.Error(), fmt.Sprintf("ingest: nest: unexpected status %d: upstream said no", tt.code)) {
				t.Errorf("unexpected message %q", err.Error())
			}
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("transient = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestStatusError_TruncatesBody(t *testing.T) {
	err := StatusError("distribute: webhook", 500, strings.Repeat("z", 500))
	if n := strings.Count(err.Error(), "z"); n != maxErrorBody {
		t.Errorf("expected %d body bytes, got %d", maxErrorBody, n)
	}
}

func TestStatusError_TruncatesOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes then a two-byte rune straddling the limit.
	body := strings.Repeat("z", maxErrorBody-1) + "é" + strings.Repeat("z", 50)
	msg := StatusError("ingest: nest", 502, body).Error()
	if !utf8.ValidString(msg) {
		t.Fatalf("message is not valid UTF-8: %q", msg)
	}
	if strings.Contains(msg, "é") {
		t.Errorf("rune past the limit was kept")
	}
	if n := strings.Count(msg, "z"); n != maxErrorBody-1 {
		t.Errorf("expected %d body bytes, got %d", maxErrorBody-1, n)
	}
}
