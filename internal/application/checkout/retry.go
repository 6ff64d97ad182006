package checkout

import (
	"context"
	"math/rand"
	"time"

	apperrors "boutique-backend/pkg/errors"
)

// RetryPolicy bounds retries of the payment-provider call. Classify decides
// whether an error is worth another attempt; delays grow exponentially from
// BaseDelay with a jitter fraction, capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	Classify    func(error) bool
}

// DefaultRetryPolicy matches the provider boundary: three attempts, 200ms
// base delay with 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.2,
		Classify:    apperrors.IsRetryable,
	}
}

// Do runs op until it succeeds, fails terminally, or the attempt ceiling is
// reached. A context deadline is a failure, not a retry trigger.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Classify == nil || !p.Classify(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return apperrors.NewTimeoutError("operation cancelled while waiting to retry")
		}
	}

	return apperrors.NewPaymentProviderError("retries exhausted: "+lastErr.Error(), false)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(delay) * p.Jitter
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
