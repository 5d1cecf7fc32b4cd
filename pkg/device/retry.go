package device

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// Read retry policy: 3 attempts total, exponential backoff starting at 1s
// capped at 10s. Applies to transport failures only; writes are never
// retried (not idempotent on the device).
const (
	readAttempts      = 3
	retryBaseInterval = 1 * time.Second
	retryMaxInterval  = 10 * time.Second
)

// WithRetry runs a read-only session like With, reconnecting and retrying
// on transport failure. Errors other than ErrOffline are permanent and
// surface immediately.
func (s *Slot) WithRetry(ctx context.Context, fn func(Session) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0 // attempt count bounds us, not wall time

	attempt := 0
	op := func() error {
		attempt++
		err := s.With(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrOffline) {
			return backoff.Permanent(err)
		}
		if attempt < readAttempts {
			logger.Warn("Device read failed, retrying",
				"device", s.cfg.Key, "attempt", attempt, "error", err)
		}
		return err
	}

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, readAttempts-1), ctx))
}
