package util

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelRunsEveryInput(t *testing.T) {
	inputs := make([]int, 100)
	for i := range inputs {
		inputs[i] = i + 1
	}

	var sum, active, peak atomic.Int64
	err := Parallel(context.Background(), inputs, 4, func(_ context.Context, n int) error {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		sum.Add(int64(n))
		active.Add(-1)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Load() != 5050 {
		t.Errorf("sum = %d, want 5050", sum.Load())
	}
	if peak.Load() > 4 {
		t.Errorf("peak concurrency %d exceeds limit", peak.Load())
	}
}

func TestParallelReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := Parallel(context.Background(), []int{1, 2, 3}, 1, func(_ context.Context, n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestParallelEmpty(t *testing.T) {
	called := false
	if err := Parallel(context.Background(), nil, 2, func(context.Context, int) error {
		called = true
		return nil
	}); err != nil || called {
		t.Errorf("err=%v called=%v", err, called)
	}
}
