// Package jobmgr runs named background jobs that can be listed and stopped,
// such as the cooldown sweeper.
//
//	jm := jobmgr.NewManager(ctx, log)
//	_ = jm.Start("sweep", func(ctx context.Context) error {
//	    return cooldown.RunSweeper(ctx, store, time.Minute, log)
//	})
//	defer jm.StopAll()
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrJobRunning    = errors.New("job already running")
	ErrJobNotRunning = errors.New("job not running")
)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks running jobs. It is safe for concurrent use.
type Manager struct {
	parent context.Context
	log    zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// NewManager returns a manager whose jobs are cancelled together with parent.
func NewManager(parent context.Context, log zerolog.Logger) *Manager {
	return &Manager{
		parent: parent,
		log:    log,
		jobs:   make(map[string]*job),
	}
}

// Start runs fn in its own goroutine under name. The job is forgotten once
// fn returns. Context cancellation is not reported as an error.
func (m *Manager) Start(name string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	ctx, cancel := context.WithCancel(m.parent)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j

	go func() {
		defer close(j.done)
		defer cancel()

		m.log.Debug().Str("job", name).Msg("job started")
		err := fn(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			m.log.Error().Err(err).Str("job", name).Msg("job failed")
		default:
			m.log.Debug().Str("job", name).Msg("job finished")
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Stop cancels a job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, name)
	}
	j.cancel()
	<-j.done
	return nil
}

// StopAll cancels every job and waits for all of them.
func (m *Manager) StopAll() {
	m.mu.Lock()
	jobs := m.jobs
	m.jobs = make(map[string]*job)
	m.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		<-j.done
	}
}

// List returns the names of running jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status is a one-line summary for operators.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}
