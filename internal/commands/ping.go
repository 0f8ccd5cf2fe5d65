package commands

import (
	"context"
	"time"

	"github.com/keshon/commandeer/pkg/cmd"
)

func Ping(d Deps) cmd.Descriptor {
	return cmd.Descriptor{
		Name:                "ping",
		Description:         "Pong!",
		Category:            categoryInfo,
		UsageBeforeCooldown: 2,
		Cooldown:            10 * time.Second,
		PreHooks:            d.pre(),
		PostHooks:           d.post(),
		Execute: func(ctx context.Context, inv *cmd.Invocation) error {
			if d.Latency == nil {
				return inv.Reply(ctx, "🏓 Pong!")
			}
			return inv.Replyf(ctx, "🏓 Pong! Response time: `%dms`", d.Latency().Milliseconds())
		},
	}
}
