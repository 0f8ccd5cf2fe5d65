package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, fastConfig(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnClientErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"forbidden", statusErr(403)},
		{"wrapped bad request", fmt.Errorf("publish: %w", statusErr(400))},
		{"fatal", Fatal(errors.New("bad token"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), nil, fastConfig(5), func(context.Context) error {
				calls++
				return tt.err
			})
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
			if err == nil || errors.Is(err, ErrAttemptsExhausted) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	cause := statusErr(429)
	calls := 0
	err := Do(context.Background(), nil, fastConfig(3), func(context.Context) error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, ErrAttemptsExhausted) || !errors.Is(err, cause) {
		t.Errorf("err = %v", err)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.InitialDelay = time.Hour

	calls := 0
	err := Do(ctx, nil, cfg, func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestLimiterBacksOff(t *testing.T) {
	lim := NewLimiter(4, 1, 8)
	calls := 0
	_ = Do(context.Background(), lim, fastConfig(2), func(context.Context) error {
		calls++
		return statusErr(429)
	})
	if got := lim.Limit(); got != 1 {
		t.Errorf("limit after two overloads = %v, want 1", got)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(fmt.Errorf("x: %w", statusErr(502))); got != 502 {
		t.Errorf("got %d", got)
	}
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Errorf("got %d", got)
	}
}
