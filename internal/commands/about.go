package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/keshon/commandeer/pkg/cmd"
)

const (
	appName        = "commandeer"
	appDescription = "slash commands with per-user cooldowns"
)

func About(d Deps) cmd.Descriptor {
	return cmd.Descriptor{
		Name:        "about",
		Description: "Shows info about the bot.",
		Category:    categoryInfo,
		PreHooks:    d.pre(),
		PostHooks:   d.post(),
		Execute: func(ctx context.Context, inv *cmd.Invocation) error {
			return inv.Reply(ctx, aboutMessage(d))
		},
	}
}

func aboutMessage(d Deps) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ℹ️ **%s** - %s\n", appName, appDescription)

	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(&b, "Release: %s (Go %s)\n", info.Main.Version, strings.TrimPrefix(info.GoVersion, "go"))
	}
	if d.Commands != nil {
		names := d.Commands()
		fmt.Fprintf(&b, "Commands (%d): %s", len(names), strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
