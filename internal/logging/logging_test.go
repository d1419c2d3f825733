package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("writes JSON at the configured level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New("warn", &buf)
		logger.Info("dropped")
		logger.Warn("kept", "repository", "acme/app")

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("expected a single JSON entry, got %q: %v", buf.String(), err)
		}
		if entry["msg"] != "kept" || entry["repository"] != "acme/app" {
			t.Fatalf("unexpected entry: %#v", entry)
		}
	})

	t.Run("unknown levels fall back to info", func(t *testing.T) {
		t.Parallel()

		if got := ParseLevel("verbose"); got != slog.LevelInfo {
			t.Fatalf("expected info, got %v", got)
		}
		if got := ParseLevel(" DEBUG "); got != slog.LevelDebug {
			t.Fatalf("expected debug, got %v", got)
		}
	})
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}

	logger := New("info", &bytes.Buffer{})
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected the attached logger")
	}
	if ContextWithLogger(ctx, nil) != ctx {
		t.Fatalf("expected a nil logger to leave the context unchanged")
	}
}
