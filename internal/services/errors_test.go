package services_test

import (
	"errors"
	"strings"
	"testing"

	"storyreel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrFatalRemote, "storyboard", "complete", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrFatalRemote) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"storyboard", "complete", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryableTransientMarker(t *testing.T) {
	err := services.Wrap(services.ErrTransient, "generate", "synthesize", "upstream busy", nil)
	if !services.Retryable(err) {
		t.Fatal("expected transient-tagged error to be retryable")
	}
}

func TestRetryableVocabulary(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"HTTP 429 Too Many Requests", true},
		{"rate limit exceeded", true},
		{"request throttling active", true},
		{"quota exhausted for today", true},
		{"dial tcp: connection refused", true},
		{"context deadline exceeded (timeout)", true},
		{"503 service unavailable", true},
		{"network is unreachable", true},
		{"invalid api key", false},
		{"malformed request body", false},
	}
	for _, tc := range cases {
		if got := services.Retryable(errors.New(tc.text)); got != tc.want {
			t.Fatalf("Retryable(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestRetryableFatalMarkerOverridesText(t *testing.T) {
	// A fatal marker wins even when the message mentions a retryable word.
	err := services.Wrap(services.ErrFatalRemote, "parse", "complete", "timeout parsing response", nil)
	if services.Retryable(err) {
		t.Fatal("fatal-tagged error must not be retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := t.Context()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithStage(ctx, "generate")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "generate" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := services.WithStage(t.Context(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
