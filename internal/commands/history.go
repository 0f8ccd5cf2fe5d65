package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/commandeer/internal/hooks"
	"github.com/keshon/commandeer/internal/storage"
	"github.com/keshon/commandeer/pkg/cmd"
)

const maxContentLength = 2000

// HistoryReader gives read access to recorded command runs.
type HistoryReader interface {
	FetchCommandHistory(guildID string) ([]storage.CommandHistoryRecord, error)
	ClearCommandHistory(guildID string) error
}

func History(d Deps) cmd.Descriptor {
	return cmd.Descriptor{
		Name:        "history",
		Description: "Show the latest commands used in this server",
		Category:    categoryInfo,
		Params: []cmd.Param{{
			Name:        "clear",
			Description: "Forget the recorded commands instead",
			Type:        cmd.ParamBoolean,
		}},
		UsageBeforeCooldown: 3,
		Cooldown:            30 * time.Second,
		PreHooks:            d.pre(hooks.GuildOnly()),
		PostHooks:           d.post(),
		Execute: func(ctx context.Context, inv *cmd.Invocation) error {
			if d.Records == nil {
				return cmd.NewCommandError("Command history is not recorded here.")
			}

			if wipe, _ := inv.Bool("clear"); wipe {
				if err := d.Records.ClearCommandHistory(inv.GuildID); err != nil {
					return &cmd.CommandError{Message: "Failed to clear command history.", Err: err}
				}
				return inv.Reply(ctx, "🧹 Command history cleared.")
			}

			records, err := d.Records.FetchCommandHistory(inv.GuildID)
			if err != nil {
				return &cmd.CommandError{Message: "Failed to fetch command history.", Err: err}
			}
			if len(records) == 0 {
				return inv.Reply(ctx, "No commands recorded yet.")
			}
			return inv.Reply(ctx, historyTable(records))
		},
	}
}

// historyTable renders records newest first inside a code block, cut to
// fit one message.
func historyTable(records []storage.CommandHistoryRecord) string {
	const fence = "```"

	var b strings.Builder
	fmt.Fprintf(&b, "%-19s  %-20s  %-12s  %s\n", "# Datetime", "# User", "# Channel", "# Command")
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		line := fmt.Sprintf("%-19s  %-20s  %-12s  /%s",
			r.Datetime.Format("2006-01-02 15:04:05"), r.UserID, r.ChannelID, r.Command)
		if r.Param != "" {
			line += " " + r.Param
		}
		line += "\n"
		if 2*len(fence)+1+b.Len()+len(line) > maxContentLength {
			break
		}
		b.WriteString(line)
	}
	return fence + "\n" + b.String() + fence
}
