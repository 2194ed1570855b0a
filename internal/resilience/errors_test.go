package resilience

import (
	"errors"
	"fmt"
	"net/textproto"
	"testing"
)

type fakeTimeoutError struct{}

func (fakeTimeoutError) Error() string   { return "i/o timeout" }
func (fakeTimeoutError) Timeout() bool   { return true }
func (fakeTimeoutError) Temporary() bool { return true }

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("upstream hiccup"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("upstream hiccup"), 502)
	err := fmt.Errorf("download failed: %w", inner)
	if !IsTransient(err) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NetTimeout(t *testing.T) {
	if !IsTransient(fakeTimeoutError{}) {
		t.Error("expected net timeout to be transient")
	}
}

func TestIsTransient_FTPReplyCodes(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{421, true},
		{450, true},
		{425, true},
		{550, false},
		{530, false},
		{226, false},
	}
	for _, tc := range cases {
		err := &textproto.Error{Code: tc.code, Msg: "reply"}
		if got := IsTransient(err); got != tc.want {
			t.Errorf("code %d: got %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestIsTransient_StringHeuristics(t *testing.T) {
	if !IsTransient(errors.New("read tcp: connection reset by peer")) {
		t.Error("expected connection reset message to be transient")
	}
	if !IsTransient(errors.New("net/http: TLS handshake timeout")) {
		t.Error("expected TLS handshake timeout to be transient")
	}
}

func TestIsTransient_PlainError(t *testing.T) {
	if IsTransient(errors.New("column point_id missing")) {
		t.Error("plain errors should not be transient")
	}
}

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	permanent := []int{200, 301, 400, 401, 403, 404, 410, 501}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestIsTransientFTPCode(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{399, false},
		{400, true},
		{421, true},
		{499, true},
		{500, false},
		{550, false},
	}
	for _, tc := range cases {
		if got := IsTransientFTPCode(tc.code); got != tc.want {
			t.Errorf("code %d: got %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	sentinel := errors.New("root cause")
	err := NewTransientError(sentinel, 503)
	if !errors.Is(err, sentinel) {
		t.Error("expected Unwrap to expose the wrapped error")
	}
}
