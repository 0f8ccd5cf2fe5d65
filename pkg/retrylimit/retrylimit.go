// Package retrylimit retries calls against a rate-limited API. A shared
// Limiter paces every attempt and slows down when the remote side reports
// overload.
//
//	lim := retrylimit.NewLimiter(2, 0.25, 5)
//	err := retrylimit.Do(ctx, lim, retrylimit.DefaultConfig(), func(ctx context.Context) error {
//	    return publish(ctx)
//	})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrAttemptsExhausted is returned, wrapping the last error, when every
// attempt failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Limiter paces attempts. Its rate halves on overload and climbs back by one
// step per success, within [min, max].
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	min, max rate.Limit
	lastHit  time.Time
}

// NewLimiter returns a limiter starting at initial requests per second.
func NewLimiter(initial, min, max rate.Limit) *Limiter {
	if min <= 0 {
		min = 0.1
	}
	if max < min {
		max = min
	}
	initial = clamp(initial, min, max)
	return &Limiter{
		limiter: rate.NewLimiter(initial, 1),
		min:     min,
		max:     max,
	}
}

func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Limit returns the current rate.
func (l *Limiter) Limit() rate.Limit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter.Limit()
}

func (l *Limiter) success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastHit) > 10*time.Second {
		l.limiter.SetLimit(clamp(l.limiter.Limit()+l.min, l.min, l.max))
	}
}

func (l *Limiter) overloaded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastHit = time.Now()
	l.limiter.SetLimit(clamp(l.limiter.Limit()/2, l.min, l.max))
}

func clamp(v, lo, hi rate.Limit) rate.Limit {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// StatusError is implemented by errors carrying an HTTP status code.
type StatusError interface {
	error
	StatusCode() int
}

// FatalError stops retrying immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Config controls Do.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	Log          zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		Jitter:       true,
		Log:          zerolog.Nop(),
	}
}

// Do calls fn until it succeeds, returns a FatalError or a 4xx status other
// than 429, the context ends, or MaxAttempts is reached. lim may be nil.
func Do(ctx context.Context, lim *Limiter, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}

	delay := cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		if err = fn(ctx); err == nil {
			if lim != nil {
				lim.success()
			}
			if attempt > 1 {
				cfg.Log.Info().Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}
		code := StatusCode(err)
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return err
		}
		if lim != nil && (code == http.StatusTooManyRequests || code >= 500) {
			lim.overloaded()
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.Jitter && wait > 0 {
			wait += time.Duration(rand.Int64N(int64(wait)/4 + 1))
		}
		cfg.Log.Warn().Err(err).Int("attempt", attempt).Int("status", code).Dur("backoff", wait).Msg("attempt failed, retrying")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, cfg.MaxAttempts, err)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return 0
}
