package types

import (
	"context"
	"testing"
)

// mockLogger implements the Logger interface for testing purposes.
type mockLogger struct {
	messages []string
}

func (m *mockLogger) Info(msg string, args ...any)  { m.messages = append(m.messages, "info:"+msg) }
func (m *mockLogger) Error(msg string, args ...any) { m.messages = append(m.messages, "error:"+msg) }
func (m *mockLogger) Warn(msg string, args ...any)  { m.messages = append(m.messages, "warn:"+msg) }
func (m *mockLogger) With(args ...any) Logger       { return m }

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-abc")
	if got := GetRequestID(ctx); got != "req-abc" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-abc")
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on empty context = %q, want empty", got)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	l := &mockLogger{}
	ctx := WithLogger(context.Background(), l)

	got := LoggerFromContext(ctx)
	if got == nil {
		t.Fatal("LoggerFromContext returned nil")
	}
	got.Info("hello")
	if len(l.messages) != 1 || l.messages[0] != "info:hello" {
		t.Errorf("messages = %v", l.messages)
	}
}

func TestLoggerFromContextMissing(t *testing.T) {
	if got := LoggerFromContext(context.Background()); got != nil {
		t.Errorf("expected nil logger, got %v", got)
	}
}

func TestNewSlogLoggerNilDefaults(t *testing.T) {
	l := NewSlogLogger(nil)
	if l == nil {
		t.Fatal("NewSlogLogger(nil) returned nil")
	}
	if l.With("k", "v") == nil {
		t.Fatal("With returned nil")
	}
}
