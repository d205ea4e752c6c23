package transport

import (
	"math"
	"time"
)

// RetryConfig defines retry behavior for the dispatcher.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// InteractiveRetry is the budget for user-triggered submissions.
var InteractiveRetry = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    1 * time.Second,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// BackgroundRetry is the budget for sync-pass submissions. Sync passes run
// in the background and must not stall the queue drain on one slow entry.
var BackgroundRetry = RetryConfig{
	MaxAttempts:     2,
	InitialDelay:    1 * time.Second,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 2.0,
}

// Delay returns the wait before the next try after the given attempt
// (1-based): min(initial * multiple^(attempt-1), max).
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiple, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}
