package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/example/proof-of-ship/internal/logging"
	"github.com/example/proof-of-ship/internal/release"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&base, nil))
	ctxLogger := slog.New(slog.NewJSONHandler(&scoped, nil)).With("request_id", "req-1")
	ctx := logging.ContextWithLogger(context.Background(), ctxLogger)

	serviceLogger(ctx, baseLogger, "EvaluationService", "Evaluate", "windows", 5).Info("done")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay unused, got %s", base.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(scoped.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	for key, want := range map[string]any{"request_id": "req-1", "service": "EvaluationService", "operation": "Evaluate", "windows": float64(5)} {
		if entry[key] != want {
			t.Fatalf("expected %s=%v, got %v", key, want, entry[key])
		}
	}
}

func TestServiceLoggerAddsTraceID(t *testing.T) {
	t.Parallel()

	traceID := trace.TraceID{0x01, 0x02, 0x03}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{0x0a},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var buf bytes.Buffer
	serviceLogger(ctx, slog.New(slog.NewJSONHandler(&buf, nil)), "EvaluationService", "Evaluate").Info("done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log entry: %v", err)
	}
	if entry["trace_id"] != traceID.String() {
		t.Fatalf("expected trace_id %s, got %v", traceID, entry["trace_id"])
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "unauthorized", err: ErrUnauthorized, want: "unauthorized"},
		{name: "no commitment", err: fmt.Errorf("load: %w", ErrNoCommitment), want: "no_commitment"},
		{name: "not found", err: ErrNotFound, want: "not_found"},
		{name: "validation", err: &ValidationError{FieldErrors: map[string]string{"x": "y"}}, want: "validation"},
		{name: "fetch", err: &FetchFailedError{Err: &release.FetchError{Reason: release.ReasonNotFound, Err: release.ErrNotFound}}, want: "fetch_not_found"},
		{name: "unexpected", err: errors.New("boom"), want: "unexpected"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ErrorKind(tc.err); got != tc.want {
				t.Fatalf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
