package invoker

import (
	"context"
	"math"
	"time"

	"github.com/tharun-extinct/HedgeX-V5-sub000/internal/domain/command"
)

// RetryPolicy controls exponential backoff for retryable calls
type RetryPolicy struct {
	MaxAttempts    int           // total attempts including the first
	BaseDelay      time.Duration // wait before the first retry
	MaxDelay       time.Duration // cap for any single wait
	Multiplier     float64       // growth factor per retry
	RetryableKinds []command.Kind
}

// DefaultRetryPolicy returns default configuration
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		RetryableKinds: []command.Kind{command.KindNetwork},
	}
}

// Delay returns the wait before retry number n (0-based): base * multiplier^n, capped at MaxDelay
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(mult, float64(n))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retryable reports whether failures of kind k may be retried under this policy
func (p RetryPolicy) Retryable(k command.Kind) bool {
	for _, kind := range p.RetryableKinds {
		if kind == k {
			return true
		}
	}
	return false
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
