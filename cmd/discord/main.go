package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/commandeer/datastore"
	"github.com/keshon/commandeer/internal/commands"
	"github.com/keshon/commandeer/internal/config"
	"github.com/keshon/commandeer/internal/discord"
	"github.com/keshon/commandeer/internal/logging"
	"github.com/keshon/commandeer/internal/storage"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/keshon/commandeer/pkg/jobmgr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("discord bot stopped")
	}
	log.Info().Msg("discord bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.RequireBot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.StoragePath, datastore.WithLogger(log))
	if err != nil {
		return err
	}
	defer store.Close()

	jobs := jobmgr.NewManager(ctx, log)
	defer func() {
		log.Info().Msg(jobs.Status())
		jobs.StopAll()
	}()

	cooldowns, closeCooldowns, err := newCooldownStore(cfg, jobs, log)
	if err != nil {
		return err
	}
	defer closeCooldowns()

	bot, err := discord.New(cfg.DiscordToken, log)
	if err != nil {
		return err
	}

	timings := cmd.NewTimings()
	registry := cmd.NewRegistry(cmd.WithLogger(log), cmd.WithTimings(timings))
	report := registry.Load(commands.All(commands.Deps{
		Log:      log,
		History:  store,
		Records:  store,
		Latency:  bot.Latency,
		Commands: registry.Names,
	})...)
	if err := report.Err(); err != nil {
		log.Warn().Err(err).Msg("some commands failed to load")
	}

	dispatcher := cmd.NewDispatcher(registry,
		cmd.WithLogger(log),
		cmd.WithTimings(timings),
		cmd.WithCooldownStore(cooldowns),
		cmd.WithCooldownHandler(discord.CooldownHandler(log)),
		cmd.WithErrorHandler(discord.ErrorHandler(log)),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bot.Run(ctx, dispatcher, discord.Options{
			Scope:   cmd.Scope{Dev: cfg.DevMode, GuildID: cfg.DevGuildID},
			Publish: cfg.PublishCommands,
			Hashes:  store,
		})
	})
	return g.Wait()
}

func newCooldownStore(cfg *config.Config, jobs *jobmgr.Manager, log zerolog.Logger) (cooldown.Store, func(), error) {
	if cfg.CooldownBackend == config.BackendValkey {
		client, err := cooldown.NewValkeyClient(cfg.ValkeyAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.ValkeyAddr).Msg("using valkey cooldown store")
		return cooldown.NewValkeyStore(client, cooldown.WithIdleTTL(cfg.CooldownIdleTTL)), client.Close, nil
	}

	mem := cooldown.NewMemoryStore(cooldown.WithIdleTTL(cfg.CooldownIdleTTL))
	err := jobs.Start("cooldown-sweeper", func(ctx context.Context) error {
		return cooldown.RunSweeper(ctx, mem, cfg.CooldownSweepInterval, log)
	})
	if err != nil {
		return nil, nil, err
	}
	return mem, func() {}, nil
}
