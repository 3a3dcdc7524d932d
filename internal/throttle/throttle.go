// Package throttle counts failed attempts per key inside a fixed window.
package throttle

import (
	"context"
	"errors"
	"time"
)

var ErrTooManyAttempts = errors.New("too many attempts, try again later")

// Store keeps per-key counters that expire window after the first hit.
type Store interface {
	Count(ctx context.Context, key string) (int, error)
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

type Limiter struct {
	store  Store
	max    int
	window time.Duration
	prefix string
}

func NewLimiter(store Store, prefix string, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window, prefix: prefix}
}

// Check returns ErrTooManyAttempts once key has used up its attempts.
func (l *Limiter) Check(ctx context.Context, key string) error {
	n, err := l.store.Count(ctx, l.prefix+key)
	if err != nil {
		return err
	}
	if n >= l.max {
		return ErrTooManyAttempts
	}
	return nil
}

func (l *Limiter) Fail(ctx context.Context, key string) error {
	_, err := l.store.Incr(ctx, l.prefix+key, l.window)
	return err
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, l.prefix+key)
}
