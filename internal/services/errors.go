package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks retryable upstream failures (rate limits, timeouts,
	// flaky networks). Retry handling lives in the retry package.
	ErrTransient = errors.New("transient remote failure")
	// ErrFatalRemote marks provider failures that retrying cannot fix:
	// malformed responses, auth rejections, validation errors from the API.
	ErrFatalRemote = errors.New("fatal remote failure")
	// ErrMediaProcessing marks encoding/probing failures. Callers usually
	// degrade to a documented fallback instead of failing the run.
	ErrMediaProcessing = errors.New("media processing failure")
	// ErrAssemblyExhausted marks the case where every concatenation strategy
	// failed. This one is fatal to the run.
	ErrAssemblyExhausted = errors.New("assembly exhausted")
	// ErrConfiguration marks missing credentials or invalid settings detected
	// before any stage executes.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks bad input or inconsistent run state.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapHTTPStatus classifies a non-success HTTP response. Status 429 and the
// 5xx family are transient; every other status is fatal.
func WrapHTTPStatus(operation string, statusCode int, body []byte) error {
	marker := ErrFatalRemote
	if statusCode == 429 || statusCode >= 500 {
		marker = ErrTransient
	}
	detail := fmt.Sprintf("http %d", statusCode)
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		if runes := []rune(trimmed); len(runes) > 200 {
			trimmed = string(runes[:200]) + "..."
		}
		detail += ": " + trimmed
	}
	return Wrap(marker, "", operation, detail, nil)
}

// transientVocabulary mirrors the error strings the upstream providers emit
// when a call is worth retrying.
var transientVocabulary = []string{
	"rate limit",
	"throttling",
	"quota",
	"too many requests",
	"timeout",
	"429",
	"service unavailable",
	"503",
	"connection",
	"network",
}

// Retryable reports whether an error looks like a transient upstream failure.
// Errors tagged ErrTransient are always retryable; errors tagged with any
// other sentinel are never retryable even if their text matches the
// vocabulary. Untagged errors fall back to textual classification.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	for _, marker := range []error{ErrFatalRemote, ErrMediaProcessing, ErrAssemblyExhausted, ErrConfiguration, ErrValidation} {
		if errors.Is(err, marker) {
			return false
		}
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range transientVocabulary {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
