package cmd

import (
	"sort"
	"sync"
	"time"
)

// TimingEntry is one measured step, e.g. building a command at load time.
type TimingEntry struct {
	Name      string
	TimeTaken time.Duration
}

// ExecStats aggregates executions of one command.
type ExecStats struct {
	Name     string
	Count    uint64
	Failures uint64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	Last     time.Time
}

// Average returns the mean execution time.
func (s ExecStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Timings collects load and execution timings. It is safe for concurrent use.
type Timings struct {
	mu    sync.RWMutex
	loads []TimingEntry
	execs map[string]*ExecStats
}

func NewTimings() *Timings {
	return &Timings{execs: make(map[string]*ExecStats)}
}

func (t *Timings) RecordLoad(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loads = append(t.loads, TimingEntry{Name: name, TimeTaken: d})
}

// Loads returns load timings, slowest first.
func (t *Timings) Loads() []TimingEntry {
	t.mu.RLock()
	out := make([]TimingEntry, len(t.loads))
	copy(out, t.loads)
	t.mu.RUnlock()

	sortByTimeDesc(out)
	return out
}

func (t *Timings) RecordExecution(name string, d time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.execs[name]
	if s == nil {
		s = &ExecStats{Name: name, Min: d, Max: d}
		t.execs[name] = s
	}
	s.Count++
	s.Total += d
	s.Last = time.Now()
	if d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	if failed {
		s.Failures++
	}
}

// Stats returns a copy of the stats for one command.
func (t *Timings) Stats(name string) (ExecStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.execs[name]
	if !ok {
		return ExecStats{}, false
	}
	return *s, true
}

// Slowest returns up to n commands ordered by average execution time,
// slowest first. n <= 0 returns all of them.
func (t *Timings) Slowest(n int) []ExecStats {
	t.mu.RLock()
	out := make([]ExecStats, 0, len(t.execs))
	for _, s := range t.execs {
		out = append(out, *s)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Average() == out[j].Average() {
			return out[i].Name < out[j].Name
		}
		return out[i].Average() > out[j].Average()
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func sortByTimeDesc(entries []TimingEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimeTaken > entries[j].TimeTaken
	})
}
