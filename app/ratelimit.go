// Package app enforces sliding-window admission limits for expensive calls.
package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/IMAYAAGENCY/formswift-ai-sub001/app/models"
)

const (
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 10
)

var errRateLimitInput = errors.New("rate limit subject and resource must be set")

// RateLimiter decides whether one more call is allowed right now for a
// (subject, resource) pair, counting prior calls over a trailing window.
// The limiter itself is stateless; all state lives in the Store.
//
// The count-then-record sequence is not atomic, so concurrent calls from the
// same subject can transiently admit one call over the nominal limit. That
// overshoot is bounded and accepted; inserts are append-only so no lock is
// needed for correctness.
type RateLimiter struct {
	Store    RateStore
	Window   time.Duration // default when a caller passes window <= 0
	MaxCalls int           // default when a caller passes maxCalls < 1
	FailOpen bool          // infra errors admit the call instead of blocking it

	now func() time.Time // for testing
}

// NewRateLimiter builds a limiter with the given store and defaults.
func NewRateLimiter(store RateStore, window time.Duration, maxCalls int, failOpen bool) *RateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if maxCalls < 1 {
		maxCalls = DefaultRateLimitMax
	}
	return &RateLimiter{
		Store:    store,
		Window:   window,
		MaxCalls: maxCalls,
		FailOpen: failOpen,
		now:      time.Now,
	}
}

// CheckAndRecord decides admission for one call and records it when allowed.
// window <= 0 and maxCalls < 1 fall back to the limiter defaults. Denials
// never write. Store failures follow the FailOpen policy: a broken rate
// limiter must never become an outage for the feature it protects.
func (rl *RateLimiter) CheckAndRecord(ctx context.Context, subject, resource string, window time.Duration, maxCalls int) (models.RateLimitResult, error) {
	if subject == "" || resource == "" {
		return models.RateLimitResult{}, errRateLimitInput
	}
	if window <= 0 {
		window = rl.Window
	}
	if maxCalls < 1 {
		maxCalls = rl.MaxCalls
	}

	now := rl.now()
	windowStart := now.Add(-window)

	entries, err := rl.Store.Entries(ctx, subject, resource, windowStart)
	if err != nil {
		return rl.onInfraError(subject, resource, "count", err, now, window, maxCalls), nil
	}

	if len(entries) >= maxCalls {
		resetAt := now.Add(window)
		// entries are newest first; the last one is the oldest still inside
		// the window and determines when the window next admits a call
		if oldest := entries[len(entries)-1]; !oldest.IsZero() {
			resetAt = oldest.Add(window)
		}
		return models.RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
		}, nil
	}

	if err := rl.Store.Record(ctx, subject, resource, now); err != nil {
		return rl.onInfraError(subject, resource, "record", err, now, window, maxCalls), nil
	}

	return models.RateLimitResult{
		Allowed:   true,
		Remaining: maxCalls - len(entries) - 1,
		ResetAt:   now.Add(window),
	}, nil
}

// Peek reports current usage without recording a call.
func (rl *RateLimiter) Peek(ctx context.Context, subject, resource string, window time.Duration, maxCalls int) (models.RateLimitResult, error) {
	if subject == "" || resource == "" {
		return models.RateLimitResult{}, errRateLimitInput
	}
	if window <= 0 {
		window = rl.Window
	}
	if maxCalls < 1 {
		maxCalls = rl.MaxCalls
	}

	now := rl.now()
	entries, err := rl.Store.Entries(ctx, subject, resource, now.Add(-window))
	if err != nil {
		return rl.onInfraError(subject, resource, "peek", err, now, window, maxCalls), nil
	}

	remaining := maxCalls - len(entries)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := now.Add(window)
	if len(entries) > 0 {
		resetAt = entries[len(entries)-1].Add(window)
	}
	return models.RateLimitResult{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (rl *RateLimiter) onInfraError(subject, resource, op string, err error, now time.Time, window time.Duration, maxCalls int) models.RateLimitResult {
	log.Printf("rate limiter %s failed subject=%s resource=%s err=%v (fail_open=%t)", op, subject, resource, err, rl.FailOpen)
	if rl.FailOpen {
		return models.RateLimitResult{
			Allowed:   true,
			Remaining: maxCalls - 1,
			ResetAt:   now.Add(window),
		}
	}
	return models.RateLimitResult{
		Allowed:   false,
		Remaining: 0,
		ResetAt:   now.Add(window),
	}
}
