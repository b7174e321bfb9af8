package retry

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

type r struct {
	rand        *rand.Rand
	curInterval time.Duration
	maxInterval time.Duration
	maxJitter   time.Duration
	failAfter   time.Duration
	elapsedTime time.Duration
}

func (r *r) nextInterval() time.Duration {
	var random time.Duration
	if r.maxJitter > 0 {
		if r.rand == nil {
			random = time.Duration(rand.Int63n(int64(r.maxJitter)))
		} else {
			random = time.Duration(r.rand.Int63n(int64(r.maxJitter)))
		}
	}

	curInterval := r.curInterval + random

	r.elapsedTime += curInterval

	r.curInterval *= 2
	if r.curInterval > r.maxInterval {
		r.curInterval = r.maxInterval
	}

	return curInterval
}

func (r *r) finished() bool {
	return r.failAfter < r.elapsedTime
}

func (r *r) wait(ctx context.Context) error {
	timer := time.NewTimer(r.nextInterval())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type Option func(r *r)

func WithInitialInterval(d time.Duration) Option {
	return func(r *r) {
		r.curInterval = d
	}
}

func WithMaxInterval(d time.Duration) Option {
	return func(r *r) {
		r.maxInterval = d
	}
}

func WithMaxJitter(d time.Duration) Option {
	return func(r *r) {
		r.maxJitter = d
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err so that Retry gives up immediately and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func Retry[T any](ctx context.Context, fn func() (T, error), failAfter time.Duration, options ...Option) (T, error) {
	rr := r{
		curInterval: 1 * time.Second,
		maxInterval: 1 * time.Minute,
		maxJitter:   3 * time.Second,
		failAfter:   failAfter,
	}
	for _, opt := range options {
		opt(&rr)
	}

	for {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return *new(T), perm.err
		}

		if rr.finished() {
			return *new(T), err
		}

		slog.Debug("Retrying...", slog.String("error", err.Error()))

		if werr := rr.wait(ctx); werr != nil {
			return *new(T), err
		}
	}
}
