package retry

import (
	"math/rand"
	"strings"
	"time"

	"storyreel/internal/services"
)

// Policy decides whether a failed remote call is worth retrying and how long
// to back off before the next attempt.
type Policy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// jitter returns a multiplier in [0.8, 1.2]. Overridable in tests.
	jitter func() float64
}

// NewPolicy constructs a policy, clamping nonsense values to usable ones.
func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration, backoffFactor float64) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	if backoffFactor < 1 {
		backoffFactor = 2
	}
	return &Policy{
		MaxAttempts:   maxAttempts,
		BaseDelay:     baseDelay,
		MaxDelay:      maxDelay,
		BackoffFactor: backoffFactor,
		jitter:        defaultJitter,
	}
}

func defaultJitter() float64 {
	return 0.8 + rand.Float64()*0.4
}

// ShouldRetry reports whether another attempt is allowed after err on the
// given 1-based attempt number.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	return services.Retryable(err)
}

// Delay computes the jittered exponential backoff before the attempt that
// follows the given 1-based attempt number. The base scales with the error
// category: rate-limit style errors wait twice the configured base,
// network/timeout errors wait the base, everything else half.
func (p *Policy) Delay(attempt int, err error) time.Duration {
	base := p.BaseDelay
	switch classify(err) {
	case categoryRateLimit:
		base *= 2
	case categoryNetwork:
	default:
		base /= 2
	}

	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base)
	for i := 1; i < attempt; i++ {
		delay *= p.BackoffFactor
		if delay > float64(p.MaxDelay) {
			break
		}
	}

	jitter := defaultJitter
	if p.jitter != nil {
		jitter = p.jitter
	}
	delay *= jitter()

	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

type errorCategory int

const (
	categoryOther errorCategory = iota
	categoryRateLimit
	categoryNetwork
)

func classify(err error) errorCategory {
	if err == nil {
		return categoryOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "throttling"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "quota"):
		return categoryRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"):
		return categoryNetwork
	default:
		return categoryOther
	}
}
