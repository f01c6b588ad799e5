package openproject

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestWrapStatusSentinels(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"HTTP 401", 401, ErrAuth},
		{"HTTP 403", 403, ErrForbidden},
		{"HTTP 404", 404, ErrNotFound},
		{"HTTP 409", 409, ErrConflict},
		{"HTTP 422", 422, ErrValidation},
		{"HTTP 500", 500, ErrUnavailable},
		{"HTTP 503", 503, ErrUnavailable},
		{"HTTP 400", 400, ErrBadResponse},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapStatus("GET /projects", tc.status, "")
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("status %d: expected %v, got %v", tc.status, tc.sentinel, err)
			}
		})
	}
}

func TestWrapTransportTimeout(t *testing.T) {
	err := wrapTransport("GET /", &net.DNSError{IsTimeout: true})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	err = wrapTransport("GET /", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout for deadline, got %v", err)
	}
	err = wrapTransport("GET /", errors.New("connection refused"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAPIErrorMessageIncludesDetail(t *testing.T) {
	err := wrapStatus("PATCH /work_packages/1", 422, "Subject can't be blank.")
	if !strings.Contains(err.Error(), "Subject can't be blank.") {
		t.Fatalf("server message missing from %q", err.Error())
	}
	if !strings.Contains(err.Error(), "HTTP 422") {
		t.Fatalf("status missing from %q", err.Error())
	}
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{wrapStatus("GET /", 401, ""), "Authentication failed. Please check your API key."},
		{wrapStatus("PATCH /work_packages/1", 409, ""), "Modified by someone else. Reload and try again."},
		{wrapStatus("POST /work_packages", 422, "Subject can't be blank."), "Subject can't be blank."},
		{wrapStatus("GET /projects", 500, ""), "OpenProject is unreachable."},
	}
	for _, tc := range cases {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
