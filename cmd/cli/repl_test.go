package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/keshon/commandeer/internal/commands"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/jobmgr"
	"github.com/rs/zerolog"
)

func newTestRepl(t *testing.T, guild string) (*repl, *bytes.Buffer) {
	t.Helper()
	registry := cmd.NewRegistry()
	deps := commands.Deps{Log: zerolog.Nop(), Commands: registry.Names, Intn: func(n int) int { return n - 1 }}
	if err := registry.Load(commands.All(deps)...).Err(); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	r := &repl{jobs: jobmgr.NewManager(context.Background(), zerolog.Nop()), guildID: guild, out: &buf}
	r.dispatcher = cmd.NewDispatcher(registry, r.options()...)
	t.Cleanup(r.jobs.StopAll)
	return r, &buf
}

func TestReplInvokesCommands(t *testing.T) {
	r, out := newTestRepl(t, "local")
	ctx := context.Background()

	r.exec(ctx, "alice roll 2d6")
	r.exec(ctx, "alice roll formula=1d4")
	got := out.String()
	if !strings.Contains(got, "**12**") || !strings.Contains(got, "**4**") {
		t.Errorf("output = %q", got)
	}
}

func TestReplCooldownMessage(t *testing.T) {
	r, out := newTestRepl(t, "local")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.exec(ctx, "bob ping")
	}
	if !strings.Contains(out.String(), "This command is on cooldown for 0h 0m 10s") {
		t.Errorf("output = %q", out.String())
	}
}

func TestReplSuggestsCommands(t *testing.T) {
	r, out := newTestRepl(t, "local")
	r.exec(context.Background(), "alice rol 1d6")
	if !strings.Contains(out.String(), `did you mean "roll"?`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestReplBurst(t *testing.T) {
	r, out := newTestRepl(t, "local")
	r.exec(context.Background(), ":burst 20 carol ping")

	got := out.String()
	if !strings.Contains(got, "burst of 20") || !strings.Contains(got, "on_cooldown") {
		t.Errorf("output = %q", got)
	}
	stats, ok := r.dispatcher.Timings().Stats("ping")
	if !ok || stats.Count != 2 {
		t.Errorf("ping ran %d times during the burst, want 2", stats.Count)
	}
}

func TestReplQuitAndStats(t *testing.T) {
	r, out := newTestRepl(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r.run(ctx, strings.NewReader("dave about\n:stats\n:quit\ndave about\n"))
	got := out.String()
	if strings.Count(got, "commandeer") != 1 {
		t.Errorf("lines after :quit were executed: %q", got)
	}
	if !strings.Contains(got, "executions") || !strings.Contains(got, "load timings") {
		t.Errorf("stats missing: %q", got)
	}
}

func TestReplShowsCommandErrors(t *testing.T) {
	r, out := newTestRepl(t, "local")
	r.exec(context.Background(), "erin roll 1/0")

	got := out.String()
	if !strings.Contains(got, "Division by zero is forbidden. Even in games.") {
		t.Errorf("user-facing error missing: %q", got)
	}
	if !strings.Contains(got, "[erin]") {
		t.Errorf("error should name the user: %q", got)
	}
}

func TestReplCooldownState(t *testing.T) {
	r, out := newTestRepl(t, "local")
	ctx := context.Background()

	r.exec(ctx, "frank ping")
	r.exec(ctx, ":cooldown frank ping")
	if got := out.String(); !strings.Contains(got, "ready") || !strings.Contains(got, "1") {
		t.Errorf("after one ping: %q", got)
	}

	out.Reset()
	r.exec(ctx, "frank ping")
	r.exec(ctx, ":cooldown frank ping")
	if got := out.String(); !strings.Contains(got, "cooling down, 0h 0m 10s left") {
		t.Errorf("after two pings: %q", got)
	}
}

func TestReplJobs(t *testing.T) {
	r, out := newTestRepl(t, "local")
	if err := r.jobs.Start("sweeper", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	r.exec(context.Background(), ":jobs")
	r.exec(context.Background(), ":stop sweeper")
	r.exec(context.Background(), ":stop sweeper")
	r.exec(context.Background(), ":jobs")

	got := out.String()
	for _, want := range []string{"Running jobs: sweeper", "stopped sweeper", "job not running", "No jobs are running."} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
