package cmd

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/rs/zerolog"
)

// Outcome is what HandleEvent did with an event.
type Outcome int

const (
	// OutcomeIgnored: the event was not a command invocation.
	OutcomeIgnored Outcome = iota
	// OutcomeDropped: no command with that name is registered.
	OutcomeDropped
	// OutcomeOnCooldown: the invoker was told to wait; the body did not run.
	OutcomeOnCooldown
	// OutcomeCompleted: hooks and body ran without error.
	OutcomeCompleted
	// OutcomeFailed: the chain or the cooldown store failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDropped:
		return "dropped"
	case OutcomeOnCooldown:
		return "on_cooldown"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Dispatcher routes invocations to registered commands. HandleEvent is
// safe to call from many goroutines at once.
type Dispatcher struct {
	registry   *Registry
	cooldowns  cooldown.Store
	onCooldown CooldownHandler
	onError    ErrorHandler
	log        zerolog.Logger
	timings    *Timings
}

// NewDispatcher returns a dispatcher over a loaded registry.
func NewDispatcher(registry *Registry, opts ...Option) *Dispatcher {
	o := applyOptions(opts)
	if o.cooldowns == nil {
		o.cooldowns = cooldown.NewMemoryStore()
	}
	return &Dispatcher{
		registry:   registry,
		cooldowns:  o.cooldowns,
		onCooldown: o.onCooldown,
		onError:    o.onError,
		log:        o.log,
		timings:    o.timings,
	}
}

func (d *Dispatcher) Registry() *Registry { return d.registry }

func (d *Dispatcher) Cooldowns() cooldown.Store { return d.cooldowns }

func (d *Dispatcher) Timings() *Timings { return d.timings }

// HandleEvent dispatches one inbound event. Failures are contained here:
// they are routed to the error handler or logged, never returned.
func (d *Dispatcher) HandleEvent(ctx context.Context, inv *Invocation) Outcome {
	if inv == nil || inv.Kind != KindCommand {
		return OutcomeIgnored
	}

	c, ok := d.registry.Get(inv.Command)
	if !ok {
		d.log.Debug().Str("command", inv.Command).Msg("unknown command, dropping")
		return OutcomeDropped
	}

	log := d.log.With().
		Str("command", c.Name).
		Str("user", inv.UserID).
		Str("invocation", inv.ID).
		Logger()

	if c.HasCooldown() {
		key := cooldown.Key{Command: c.Name, User: inv.UserID}
		v, err := d.cooldowns.Consume(ctx, key, c.policy())
		if err != nil {
			log.Error().Err(err).Msg("cooldown store failed, dropping invocation")
			return OutcomeFailed
		}
		if v.Blocked {
			d.notifyCooldown(ctx, inv, c, cooldown.Split(v.TimeLeft), log)
			return OutcomeOnCooldown
		}
		if v.Started {
			log.Debug().Int("usage", v.Usage).Dur("window", c.Cooldown).Msg("cooldown started")
		}
	}

	started := time.Now()
	err := d.run(ctx, c, inv)
	d.timings.RecordExecution(c.Name, time.Since(started), err != nil)

	if err != nil {
		d.handleError(ctx, inv, err, log)
		return OutcomeFailed
	}
	return OutcomeCompleted
}

// run executes pre-hooks, the body and post-hooks in order. The first
// error stops the chain.
func (d *Dispatcher) run(ctx context.Context, c *Descriptor, inv *Invocation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	for _, h := range c.PreHooks {
		if err := h(ctx, inv); err != nil {
			return err
		}
	}
	if err := c.Execute(ctx, inv); err != nil {
		return err
	}
	for _, h := range c.PostHooks {
		if err := h(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) notifyCooldown(ctx context.Context, inv *Invocation, c *Descriptor, left cooldown.TimeLeft, log zerolog.Logger) {
	log.Info().Dur("left", left.Total).Msg("command is on cooldown")

	if d.onCooldown != nil {
		guard(log, "cooldown handler", func() { d.onCooldown(ctx, inv, c, left) })
		return
	}
	if err := inv.Replyf(ctx, "This command is on cooldown for %s", left); err != nil {
		log.Warn().Err(err).Msg("failed to send cooldown reply")
	}
}

func (d *Dispatcher) handleError(ctx context.Context, inv *Invocation, err error, log zerolog.Logger) {
	if ce, ok := AsCommandError(err); ok {
		if d.onError != nil {
			guard(log, "error handler", func() { d.onError(ctx, inv, ce) })
			return
		}
		log.Warn().Err(err).Msg("command error")
		return
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		log.Error().Interface("panic", pe.Value).Bytes("stack", pe.Stack).Msg("command panicked")
		return
	}
	log.Error().Err(err).Msg("command failed")
}

// guard runs a user-supplied callback, logging instead of propagating a panic.
func guard(log zerolog.Logger, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msgf("%s panicked", what)
		}
	}()
	fn()
}
