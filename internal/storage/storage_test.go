package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keshon/commandeer/datastore"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "datastore.json"), datastore.WithAutoSave(0))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommandHistoryIsCapped(t *testing.T) {
	s := newStorage(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < commandHistoryLimit+5; i++ {
		err := s.AppendCommandToHistory("g1", CommandHistoryRecord{
			UserID:   "u1",
			Command:  fmt.Sprintf("cmd%d", i),
			Datetime: start.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	hist, err := s.FetchCommandHistory("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != commandHistoryLimit {
		t.Fatalf("history has %d entries, want %d", len(hist), commandHistoryLimit)
	}
	if hist[0].Command != "cmd5" || hist[len(hist)-1].Command != fmt.Sprintf("cmd%d", commandHistoryLimit+4) {
		t.Errorf("kept the wrong window: first=%s last=%s", hist[0].Command, hist[len(hist)-1].Command)
	}

	other, err := s.FetchCommandHistory("g2")
	if err != nil || len(other) != 0 {
		t.Errorf("unrelated guild history = %v, %v", other, err)
	}
}

func TestConcurrentAppendsKeepEveryEntry(t *testing.T) {
	s := newStorage(t)

	for round := 0; round < 50; round++ {
		guild := fmt.Sprintf("g%d", round)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < commandHistoryLimit; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				if err := s.AppendCommandToHistory(guild, CommandHistoryRecord{
					UserID:  fmt.Sprintf("u%d", i),
					Command: "ping",
				}); err != nil {
					t.Error(err)
				}
			}(i)
		}
		close(start)
		wg.Wait()

		hist, err := s.FetchCommandHistory(guild)
		if err != nil {
			t.Fatal(err)
		}
		if len(hist) != commandHistoryLimit {
			t.Fatalf("round %d: %d of %d entries kept", round, len(hist), commandHistoryLimit)
		}
	}
}

func TestClearCommandHistory(t *testing.T) {
	s := newStorage(t)
	if err := s.AppendCommandToHistory("g1", CommandHistoryRecord{Command: "roll"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendCommandToHistory("g2", CommandHistoryRecord{Command: "ping"}); err != nil {
		t.Fatal(err)
	}

	if err := s.ClearCommandHistory("g1"); err != nil {
		t.Fatal(err)
	}
	if hist, _ := s.FetchCommandHistory("g1"); len(hist) != 0 {
		t.Errorf("cleared history = %v", hist)
	}
	if hist, _ := s.FetchCommandHistory("g2"); len(hist) != 1 {
		t.Errorf("other guild history = %v", hist)
	}
}

func TestPublishedHash(t *testing.T) {
	s := newStorage(t)

	if h, err := s.PublishedHash("global"); err != nil || h != "" {
		t.Fatalf("fresh hash = %q, %v", h, err)
	}
	if err := s.SetPublishedHash("global", "abc"); err != nil {
		t.Fatal(err)
	}
	if h, _ := s.PublishedHash("global"); h != "abc" {
		t.Errorf("hash = %q", h)
	}
	if h, _ := s.PublishedHash("guild:1"); h != "" {
		t.Errorf("scopes must not share hashes, got %q", h)
	}
}
