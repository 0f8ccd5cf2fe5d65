// Command cli drives the command engine from a terminal, one invocation per
// line, without a Discord connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/keshon/commandeer/datastore"
	"github.com/keshon/commandeer/internal/commands"
	"github.com/keshon/commandeer/internal/config"
	"github.com/keshon/commandeer/internal/logging"
	"github.com/keshon/commandeer/internal/storage"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/keshon/commandeer/pkg/cooldown"
	"github.com/keshon/commandeer/pkg/jobmgr"
)

func main() {
	guild := flag.String("guild", "local", "guild id attached to invocations, empty for direct messages")
	history := flag.Bool("history", false, "record command history in STORAGE_PATH")
	flag.Parse()

	if err := run(*guild, *history); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func run(guildID string, withHistory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	jobs := jobmgr.NewManager(ctx, log)
	defer jobs.StopAll()

	var store cooldown.Store
	if cfg.CooldownBackend == config.BackendValkey {
		client, err := cooldown.NewValkeyClient(cfg.ValkeyAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		store = cooldown.NewValkeyStore(client, cooldown.WithIdleTTL(cfg.CooldownIdleTTL))
	} else {
		mem := cooldown.NewMemoryStore(cooldown.WithIdleTTL(cfg.CooldownIdleTTL))
		if err := jobs.Start("cooldown-sweeper", func(ctx context.Context) error {
			return cooldown.RunSweeper(ctx, mem, cfg.CooldownSweepInterval, log)
		}); err != nil {
			return err
		}
		store = mem
	}

	timings := cmd.NewTimings()
	registry := cmd.NewRegistry(cmd.WithLogger(log), cmd.WithTimings(timings))
	deps := commands.Deps{Log: log, Commands: registry.Names}
	if withHistory {
		hist, err := storage.New(cfg.StoragePath, datastore.WithLogger(log))
		if err != nil {
			return err
		}
		defer hist.Close()
		deps.History = hist
		deps.Records = hist
	}

	report := registry.Load(commands.All(deps)...)
	for _, f := range report.Failures {
		fmt.Println(errorStyle.Render(fmt.Sprintf("failed to load #%d %s: %v", f.Index, f.Name, f.Err)))
	}

	r := &repl{jobs: jobs, guildID: guildID, out: os.Stdout}
	r.dispatcher = cmd.NewDispatcher(registry, append(r.options(),
		cmd.WithLogger(log),
		cmd.WithTimings(timings),
		cmd.WithCooldownStore(store),
	)...)

	r.println(titleStyle.Render(fmt.Sprintf("%d commands loaded in %s", len(report.Loaded), report.Total)))
	r.println(mutedStyle.Render("type :help for usage"))
	r.run(ctx, os.Stdin)
	return nil
}
