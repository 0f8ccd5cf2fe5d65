// Package commands holds the bot's built-in commands.
package commands

import (
	"time"

	"github.com/keshon/commandeer/internal/hooks"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/rs/zerolog"
)

const (
	categoryInfo = "Information"
	categoryGame = "Gameplay"
)

// Deps is what the built-in commands need from their host. Only Log is
// required; pass zerolog.Nop() to discard.
type Deps struct {
	Log     zerolog.Logger
	History hooks.HistoryStore
	// Records backs /history. Without it the command reports that nothing
	// is recorded.
	Records HistoryReader
	// Latency reports the gateway heartbeat latency, if there is one.
	Latency func() time.Duration
	// Commands lists registered command names for /about.
	Commands func() []string
	// Intn returns a number in [0, n). Defaults to math/rand.
	Intn func(n int) int
}

func (d Deps) pre(extra ...cmd.Hook) []cmd.Hook {
	return append([]cmd.Hook{hooks.Log(d.Log)}, extra...)
}

func (d Deps) post() []cmd.Hook {
	if d.History == nil {
		return nil
	}
	return []cmd.Hook{hooks.History(d.History, d.Log, nil)}
}

// All returns factories for every built-in command.
func All(d Deps) []cmd.Factory {
	return []cmd.Factory{
		func() (cmd.Descriptor, error) { return Ping(d), nil },
		func() (cmd.Descriptor, error) { return Roll(d), nil },
		func() (cmd.Descriptor, error) { return About(d), nil },
		func() (cmd.Descriptor, error) { return History(d), nil },
	}
}
