package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config bounds calls to one guarded capability.
type Config struct {
	CallsPerSecond int
	CallsPerMinute int
	MinInterval    time.Duration
}

// retryQuantum is how long an acquirer waits before re-checking the buckets.
const retryQuantum = 100 * time.Millisecond

type bucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// Limiter is a two-bucket admission controller shared by every caller of the
// same external capability. All bucket mutation happens under one mutex so
// concurrent acquirers cannot double-spend tokens.
type Limiter struct {
	mu sync.Mutex

	second bucket
	minute bucket

	minInterval time.Duration
	lastCall    time.Time
	callTimes   []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option customizes the limiter, mainly for tests.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper overrides how waits are performed.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New constructs a limiter from the supplied ceilings. Non-positive ceilings
// fall back to one call per window.
func New(cfg Config, opts ...Option) *Limiter {
	perSecond := cfg.CallsPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	perMinute := cfg.CallsPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	l := &Limiter{
		minInterval: cfg.MinInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	start := l.now()
	l.second = bucket{capacity: float64(perSecond), tokens: float64(perSecond), refillRate: float64(perSecond), lastRefill: start}
	l.minute = bucket{capacity: float64(perMinute), tokens: float64(perMinute), refillRate: float64(perMinute) / 60.0, lastRefill: start}
	return l
}

// Acquire blocks until both buckets grant a token or the timeout elapses.
// It returns true when a call may proceed. A context cancellation counts as
// a denial.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	deadline := l.now().Add(timeout)
	for {
		granted, wait := l.tryAcquire()
		if granted {
			return true
		}
		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return false
		}
		if wait > remaining {
			wait = remaining
		}
		if err := l.sleep(ctx, wait); err != nil {
			return false
		}
	}
}

// tryAcquire performs one admission attempt. When denied it returns how long
// the caller should wait before retrying.
func (l *Limiter) tryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.minInterval > 0 && !l.lastCall.IsZero() {
		if since := now.Sub(l.lastCall); since < l.minInterval {
			return false, l.minInterval - since
		}
	}

	l.second.refill(now)
	l.minute.refill(now)
	if l.second.tokens >= 1 && l.minute.tokens >= 1 {
		l.second.tokens--
		l.minute.tokens--
		l.lastCall = now
		l.recordCall(now)
		return true, 0
	}
	return false, retryQuantum
}

func (l *Limiter) recordCall(at time.Time) {
	l.callTimes = append(l.callTimes, at)
	l.pruneCalls(at)
}

func (l *Limiter) pruneCalls(now time.Time) {
	cutoff := now.Add(-time.Minute)
	idx := 0
	for idx < len(l.callTimes) && l.callTimes[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		l.callTimes = append(l.callTimes[:0], l.callTimes[idx:]...)
	}
}

// Stats is an observability snapshot; it plays no part in admission.
type Stats struct {
	CallsLastMinute int
	SecondTokens    float64
	MinuteTokens    float64
	LastCall        time.Time
}

// Stats returns current limiter counters with the sliding window pruned.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneCalls(now)
	l.second.refill(now)
	l.minute.refill(now)
	return Stats{
		CallsLastMinute: len(l.callTimes),
		SecondTokens:    l.second.tokens,
		MinuteTokens:    l.minute.tokens,
		LastCall:        l.lastCall,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
