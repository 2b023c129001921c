package providers

import (
	"context"
	"time"
)

// BaseAdapter holds shared retry configuration for provider adapters.
type BaseAdapter struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseAdapter creates a base adapter with sane defaults.
func NewBaseAdapter(name string, maxRetries int, retryDelay time.Duration) BaseAdapter {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return BaseAdapter{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Retry executes op with exponential backoff (retryDelay, then twice that,
// and so on, plus jitter), retrying only while isRetryable returns true for
// the returned error.
func (b *BaseAdapter) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	var lastErr error
	for attempt := 1; attempt <= b.maxRetries+1; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt > b.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.retryDelay*time.Duration(1<<(attempt-1)) + jitter(attempt)):
		}
	}
	return lastErr
}

// jitter adds a small deterministic-per-attempt spread to avoid synchronized
// retries across concurrently fanned-out adapters.
func jitter(attempt int) time.Duration {
	return time.Duration(attempt%3) * 37 * time.Millisecond
}
