package cmd

import (
	"context"

	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/rs/zerolog"
)

// CooldownHandler replaces the default "on cooldown" reply.
type CooldownHandler func(ctx context.Context, inv *Invocation, cmd *Descriptor, left cooldown.TimeLeft)

// ErrorHandler receives CommandErrors raised while running a command.
type ErrorHandler func(ctx context.Context, inv *Invocation, err *CommandError)

// Option configures a Registry or a Dispatcher.
type Option func(*options)

type options struct {
	log        zerolog.Logger
	timings    *Timings
	cooldowns  cooldown.Store
	onCooldown CooldownHandler
	onError    ErrorHandler
}

func defaultOptions() options {
	return options{log: zerolog.Nop()}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.timings == nil {
		o.timings = NewTimings()
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithTimings shares a Timings collector, typically between the registry
// and the dispatcher.
func WithTimings(t *Timings) Option {
	return func(o *options) { o.timings = t }
}

// WithCooldownStore sets the cooldown backend. Dispatchers default to a
// MemoryStore.
func WithCooldownStore(s cooldown.Store) Option {
	return func(o *options) { o.cooldowns = s }
}

// WithCooldownHandler sets the handler run instead of the default reply
// when a user is on cooldown.
func WithCooldownHandler(h CooldownHandler) Option {
	return func(o *options) { o.onCooldown = h }
}

// WithErrorHandler sets the handler for CommandErrors. Without one they
// are only logged.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.onError = h }
}
