package hooks

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keshon/commandeer/internal/storage"
	"github.com/keshon/commandeer/pkg/cmd"
	"github.com/rs/zerolog"
)

type historyStub struct {
	guilds  []string
	entries []storage.CommandHistoryRecord
	err     error
}

func (h *historyStub) AppendCommandToHistory(guildID string, entry storage.CommandHistoryRecord) error {
	h.guilds = append(h.guilds, guildID)
	h.entries = append(h.entries, entry)
	return h.err
}

func TestGuildOnly(t *testing.T) {
	hook := GuildOnly()
	ctx := context.Background()

	if err := hook(ctx, &cmd.Invocation{GuildID: "g1"}); err != nil {
		t.Errorf("guild invocation rejected: %v", err)
	}

	err := hook(ctx, &cmd.Invocation{})
	ce, ok := cmd.AsCommandError(err)
	if !ok {
		t.Fatalf("expected a CommandError, got %v", err)
	}
	if !strings.Contains(ce.Message, "server") {
		t.Errorf("message = %q", ce.Message)
	}
}

func TestHistory(t *testing.T) {
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &historyStub{}
	hook := History(store, zerolog.Nop(), func() time.Time { return at })

	inv := &cmd.Invocation{
		Command:   "roll",
		UserID:    "u1",
		GuildID:   "g1",
		ChannelID: "c1",
		Args:      map[string]any{"formula": "2d6", "a": 1},
	}
	if err := hook(context.Background(), inv); err != nil {
		t.Fatal(err)
	}
	if len(store.entries) != 1 || store.guilds[0] != "g1" {
		t.Fatalf("recorded %v", store.guilds)
	}
	want := storage.CommandHistoryRecord{ChannelID: "c1", UserID: "u1", Command: "roll", Param: "a=1 formula=2d6", Datetime: at}
	if store.entries[0] != want {
		t.Errorf("entry = %+v, want %+v", store.entries[0], want)
	}

	if err := hook(context.Background(), &cmd.Invocation{Command: "roll", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if len(store.entries) != 1 {
		t.Error("direct messages must not be recorded")
	}
}

func TestHistoryStorageFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	store := &historyStub{err: errors.New("disk full")}
	hook := History(store, zerolog.New(&buf), nil)

	if err := hook(context.Background(), &cmd.Invocation{Command: "ping", GuildID: "g1"}); err != nil {
		t.Errorf("storage failure must not fail the command: %v", err)
	}
	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	hook := Log(zerolog.New(&buf).Level(zerolog.DebugLevel))
	if err := hook(context.Background(), &cmd.Invocation{Command: "ping", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"command":"ping"`) {
		t.Errorf("log = %q", buf.String())
	}
}
