// Package retry retries mutating store calls that fail with a transient error.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/opdedupe/internal/apperr"
)

const (
	// MaxAttempts is the total number of tries for one call.
	MaxAttempts = 3
	// BaseDelay is multiplied by the attempt number to get the wait before the next try.
	BaseDelay = time.Second
)

// Policy retries transient failures with a linear delay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	logger      *slog.Logger
}

// NewPolicy returns the fixed production policy.
func NewPolicy(logger *slog.Logger) *Policy {
	return &Policy{MaxAttempts: MaxAttempts, BaseDelay: BaseDelay, logger: logger}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperr.ErrTransient) {
		return true
	}
	var ext *apperr.ExternalError
	if errors.As(err, &ext) {
		return false
	}
	return apperr.IsTransientMessage(err.Error())
}

// Do runs fn until it succeeds, fails with a non-transient error, or
// MaxAttempts is reached. It returns the number of attempts made and the
// last error.
func (p *Policy) Do(ctx context.Context, op string, fn func() error) (int, error) {
	attempts := 0
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}

	operation := func() error {
		attempts++
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if p.logger != nil {
			p.logger.Warn("transient failure, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempts),
				slog.Int("max_attempts", limit),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()))
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linear{base: p.BaseDelay}, uint64(limit-1)), ctx)
	err := backoff.RetryNotify(operation, b, notify)
	return attempts, err
}

// linear waits n*base before the n-th retry.
type linear struct {
	base time.Duration
	n    int
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.base
}

func (l *linear) Reset() { l.n = 0 }
