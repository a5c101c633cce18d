// Package resilience provides retry primitives for long-lived connections.
//
// The central type is [RetryPolicy], a fixed-interval backoff used by the
// ARI event listener to re-establish its websocket after Asterisk drops it.
// The zero value is not useful; construct policies with [NewRetryPolicy] or
// use [DefaultRetryPolicy].
package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy describes how to space reconnection attempts.
//
// All fields are read-only after construction; a single policy may be shared
// by multiple goroutines.
type RetryPolicy struct {
	// Interval is the fixed delay between consecutive attempts.
	Interval time.Duration

	// MaxAttempts caps the number of attempts. Zero means retry forever.
	MaxAttempts int
}

// DefaultRetryPolicy returns the policy used for the ARI event stream:
// a fixed 5 second interval with no attempt cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 5 * time.Second}
}

// NewRetryPolicy creates a policy with the given interval and attempt cap.
// A non-positive interval falls back to the default 5 seconds.
func NewRetryPolicy(interval time.Duration, maxAttempts int) RetryPolicy {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return RetryPolicy{Interval: interval, MaxAttempts: maxAttempts}
}

// Wait blocks for the policy interval before the next attempt. attempt is
// the number of attempts already made (1 for the first retry). It returns
// ctx.Err() if the context is cancelled while waiting, or an error when the
// attempt cap is exhausted.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return fmt.Errorf("retry attempts exhausted after %d tries", attempt)
	}

	timer := time.NewTimer(p.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
