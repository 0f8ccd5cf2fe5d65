// Package hooks holds reusable pre- and post-hooks for command descriptors.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/keshon/commandeer/internal/storage"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/rs/zerolog"
)

// GuildOnly rejects invocations that did not come from a guild.
func GuildOnly() cmd.Hook {
	return func(_ context.Context, inv *cmd.Invocation) error {
		if inv.GuildID == "" {
			return cmd.NewCommandError("This command can only be used in a server.")
		}
		return nil
	}
}

// Log writes a debug line for every invocation that reaches it.
func Log(log zerolog.Logger) cmd.Hook {
	return func(_ context.Context, inv *cmd.Invocation) error {
		log.Debug().
			Str("command", inv.Command).
			Str("user", inv.UserID).
			Str("guild", inv.GuildID).
			Str("args", FormatArgs(inv.Args)).
			Msg("invoking command")
		return nil
	}
}

// HistoryStore is where History records command runs.
type HistoryStore interface {
	AppendCommandToHistory(guildID string, entry storage.CommandHistoryRecord) error
}

// History appends the invocation to the guild's command history. Direct
// messages are not recorded. A storage failure is logged, not returned:
// the command itself already succeeded.
func History(store HistoryStore, log zerolog.Logger, now func() time.Time) cmd.Hook {
	if now == nil {
		now = time.Now
	}
	return func(_ context.Context, inv *cmd.Invocation) error {
		if inv.GuildID == "" {
			return nil
		}
		err := store.AppendCommandToHistory(inv.GuildID, storage.CommandHistoryRecord{
			ChannelID: inv.ChannelID,
			UserID:    inv.UserID,
			Command:   inv.Command,
			Param:     FormatArgs(inv.Args),
			Datetime:  now().UTC(),
		})
		if err != nil {
			log.Warn().Err(err).Str("command", inv.Command).Msg("failed to record command history")
		}
		return nil
	}
}

// FormatArgs renders args as "k=v" pairs sorted by key.
func FormatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return strings.Join(parts, " ")
}
