package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	l := slog.New(h)
	return NewSlogLogger(l), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		key   string
		val   string
	}{
		{"DEBUG", "dbg", "a", "1"},
		{"INFO", "inf", "b", "2"},
		{"WARN", "wrn", "c", "3"},
		{"ERROR", "err", "d", "4"},
	}

	for _, tc := range tests {
		if !strings.Contains(out, "level="+tc.level) {
			t.Fatalf("expected line with level=%s in output:\n%s", tc.level, out)
		}
		if !strings.Contains(out, "msg="+tc.msg) {
			t.Fatalf("expected line with msg=%q in output:\n%s", tc.msg, out)
		}
		if !strings.Contains(out, tc.key+"="+tc.val) {
			t.Fatalf("expected attribute %s=%s in output:\n%s", tc.key, tc.val, out)
		}
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log2 := log.With("req_id", "123", "user", "alice")
	log2.Info(ctx, "hello", "k", "v")

	out := buf.String()
	wantSubs := []string{
		"level=INFO",
		"msg=hello",
		"req_id=123",
		"user=alice",
		"k=v",
	}
	for _, s := range wantSubs {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output, got:\n%s", s, out)
		}
	}
}

func TestSlogLogger_ContextDoesNotPanic(t *testing.T) {
	log, _ := newTestLogger(t)

	ctx := context.TODO()
	log.Info(ctx, "ctx-ok")
	log.Debug(ctx, "ctx-ok")
	log.Warn(ctx, "ctx-ok")
	log.Error(ctx, "ctx-ok")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tc := range tests {
		if got := slogLevel(tc.in); got != tc.want {
			t.Fatalf("slogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewSlogLoggers_RespectLevel(t *testing.T) {
	ctx := context.Background()

	for name, l := range map[string]*SlogLogger{
		"json": NewSlogJSONLogger("warn"),
		"text": NewSlogTextLogger("warn"),
	} {
		if l.l.Enabled(ctx, slog.LevelInfo) {
			t.Fatalf("%s logger: info must be disabled at warn level", name)
		}
		if !l.l.Enabled(ctx, slog.LevelWarn) {
			t.Fatalf("%s logger: warn must be enabled at warn level", name)
		}
	}

	if _, ok := NewSlogJSONLogger("info").l.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("expected JSON handler")
	}
	if _, ok := NewSlogTextLogger("info").l.Handler().(*slog.TextHandler); !ok {
		t.Fatalf("expected text handler")
	}
}

func TestNew_SelectsBackend(t *testing.T) {
	tests := []struct {
		format string
		check  func(Logger) bool
	}{
		{"json", func(l Logger) bool {
			s, ok := l.(*SlogLogger)
			return ok && isJSON(s)
		}},
		{"", func(l Logger) bool {
			s, ok := l.(*SlogLogger)
			return ok && isJSON(s)
		}},
		{"text", func(l Logger) bool {
			s, ok := l.(*SlogLogger)
			if !ok {
				return false
			}
			_, text := s.l.Handler().(*slog.TextHandler)
			return text
		}},
		{"zap", func(l Logger) bool {
			_, ok := l.(*ZapLogger)
			return ok
		}},
	}

	for _, tc := range tests {
		l, err := New(tc.format, "debug")
		if err != nil {
			t.Fatalf("New(%q) error: %v", tc.format, err)
		}
		if !tc.check(l) {
			t.Fatalf("New(%q) returned unexpected logger %T", tc.format, l)
		}
	}
}

func isJSON(s *SlogLogger) bool {
	_, ok := s.l.Handler().(*slog.JSONHandler)
	return ok
}
