// Package discord connects the command dispatcher to the Discord gateway.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/rs/zerolog"
)

// Options controls how the bot publishes its commands.
type Options struct {
	Scope   cmd.Scope
	Publish bool
	Hashes  HashStore
}

// Bot is a Discord bot
type Bot struct {
	dg  *discordgo.Session
	log zerolog.Logger

	dispatcher *cmd.Dispatcher
	opts       Options
	ctx        context.Context

	publishOnce sync.Once
}

// New creates the gateway session. Nothing connects until Run.
func New(token string, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	return &Bot{dg: dg, log: log}, nil
}

// Latency is the last measured heartbeat round trip.
func (b *Bot) Latency() time.Duration {
	return b.dg.HeartbeatLatency()
}

// Run connects, dispatches interactions through d until ctx is done, then
// disconnects.
func (b *Bot) Run(ctx context.Context, d *cmd.Dispatcher, opts Options) error {
	b.ctx = ctx
	b.dispatcher = d
	b.opts = opts

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")

	if !b.opts.Publish {
		b.log.Info().Msg("publishing slash commands skipped")
		return
	}
	// Ready fires again after every reconnect.
	b.publishOnce.Do(func() {
		t := NewTransport(s, r.User.ID,
			WithHashStore(b.opts.Hashes),
			WithTransportLogger(b.log),
		)
		if err := b.dispatcher.Registry().Publish(b.ctx, t, b.opts.Scope); err != nil {
			b.log.Error().Err(err).Msg("commands stay dispatchable but are not visible to users")
		}
	})
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	inv := newInvocation(s, i)
	inv.Data = Data{Session: s, Interaction: i}

	outcome := b.dispatcher.HandleEvent(b.ctx, inv)
	b.log.Debug().
		Str("command", inv.Command).
		Str("user", inv.UserID).
		Stringer("outcome", outcome).
		Msg("interaction handled")
}

// ErrorHandler shows CommandErrors to the invoker only.
func ErrorHandler(log zerolog.Logger) cmd.ErrorHandler {
	return func(ctx context.Context, inv *cmd.Invocation, err *cmd.CommandError) {
		if rerr := replyPrivately(ctx, inv, "❌ "+err.Error()); rerr != nil {
			log.Warn().Err(rerr).Str("command", inv.Command).Msg("failed to report command error")
		}
	}
}

// CooldownHandler tells the invoker, privately, how long to wait.
func CooldownHandler(log zerolog.Logger) cmd.CooldownHandler {
	return func(ctx context.Context, inv *cmd.Invocation, c *cmd.Descriptor, left cooldown.TimeLeft) {
		msg := fmt.Sprintf("This command is on cooldown for %s", left)
		if err := replyPrivately(ctx, inv, msg); err != nil {
			log.Warn().Err(err).Str("command", c.Name).Msg("failed to send cooldown reply")
		}
	}
}
