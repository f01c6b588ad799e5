package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestConfigureFirstCallWins(t *testing.T) {
	resetForTest()
	var buf bytes.Buffer
	Configure(Config{Output: &buf, Service: "test-svc", Level: "debug"})
	Configure(Config{Service: "should-not-apply"})

	logger := Base()
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "test-svc" {
		t.Fatalf("expected service test-svc, got %v", entry["service"])
	}
}

func TestWithComponent(t *testing.T) {
	resetForTest()
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	logger := WithComponent("store")
	logger.Info().Msg("open")

	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Fatalf("component field missing: %s", buf.String())
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-7")
	if got := RequestIDFromContext(ctx); got != "req-7" {
		t.Fatalf("expected req-7, got %q", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	resetForTest()
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-9")
	logger := WithContext(ctx, Base())
	logger.Info().Msg("call")

	if !strings.Contains(buf.String(), `"request_id":"req-9"`) {
		t.Fatalf("request_id field missing: %s", buf.String())
	}
}

// resetForTest clears the once-configured state between tests.
func resetForTest() {
	mu.Lock()
	set = false
	mu.Unlock()
}
