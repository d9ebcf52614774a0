// Package retry implements bounded exponential backoff for remote calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Policy configures retry behavior.
type Policy struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retries exhausted")

// Do runs fn until it succeeds, returns an error retryable rejects, or the
// policy runs out of attempts. A nil retryable retries every error.
func Do[T any](ctx context.Context, p Policy, log *zap.Logger, op string, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if log == nil {
		log = zap.NewNop()
	}
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Debug("retry succeeded", zap.String("op", op), zap.Int("attempt", attempt+1))
			}
			return v, nil
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == p.MaxRetries {
			break
		}

		wait := Backoff(p, attempt)
		log.Debug("retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
	if p.MaxRetries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w for %s: %w", ErrExhausted, op, lastErr)
}

// Backoff returns initial * 2^attempt capped at MaxBackoff.
func Backoff(p Policy, attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	return time.Duration(d)
}
