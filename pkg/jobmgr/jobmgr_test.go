package jobmgr

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartStop(t *testing.T) {
	m := NewManager(context.Background(), zerolog.Nop())

	if err := m.Start("sweep", blockUntilDone); err != nil {
		t.Fatal(err)
	}
	if err := m.Start("sweep", blockUntilDone); !errors.Is(err, ErrJobRunning) {
		t.Errorf("duplicate start = %v", err)
	}
	if got := m.List(); !reflect.DeepEqual(got, []string{"sweep"}) {
		t.Errorf("list = %v", got)
	}
	if got := m.Status(); got != "Running jobs: sweep" {
		t.Errorf("status = %q", got)
	}

	if err := m.Stop("sweep"); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop("sweep"); !errors.Is(err, ErrJobNotRunning) {
		t.Errorf("second stop = %v", err)
	}
	if got := m.Status(); got != "No jobs are running." {
		t.Errorf("status = %q", got)
	}
}

func TestFinishedJobIsForgotten(t *testing.T) {
	m := NewManager(context.Background(), zerolog.Nop())
	done := make(chan struct{})
	if err := m.Start("once", func(context.Context) error {
		defer close(done)
		return errors.New("failed")
	}); err != nil {
		t.Fatal(err)
	}
	<-done

	deadline := time.Now().Add(time.Second)
	for len(m.List()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("finished job still listed")
		}
		time.Sleep(time.Millisecond)
	}
	if err := m.Start("once", func(context.Context) error { return nil }); err != nil {
		t.Errorf("restart after finish: %v", err)
	}
}

func TestStopAllAndParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, zerolog.Nop())

	stopped := make(chan string, 2)
	for _, name := range []string{"a", "b"} {
		name := name
		if err := m.Start(name, func(ctx context.Context) error {
			<-ctx.Done()
			stopped <- name
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	cancel()
	m.StopAll()
	if len(stopped) != 2 {
		t.Errorf("%d jobs stopped, want 2", len(stopped))
	}
	if len(m.List()) != 0 {
		t.Errorf("jobs left: %v", m.List())
	}
}
