// Package cmd is a transport-agnostic command core: descriptors, a
// registry, and a dispatcher that enforces per-user cooldowns and runs the
// pre-hook, body, post-hook chain. How commands reach users (Discord
// slash commands, a local CLI) is defined by adapters that build
// Invocations and call Dispatcher.HandleEvent.
package cmd

import (
	"context"
	"fmt"
	"strconv"
)

// Kind classifies inbound events. Only KindCommand is dispatched.
type Kind int

const (
	KindCommand Kind = iota
	KindComponent
	KindAutocomplete
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindComponent:
		return "component"
	case KindAutocomplete:
		return "autocomplete"
	default:
		return "other"
	}
}

// Replier sends a message back to whoever triggered an invocation.
type Replier interface {
	Reply(ctx context.Context, content string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, content string) error

func (f ReplierFunc) Reply(ctx context.Context, content string) error { return f(ctx, content) }

// Invocation is one inbound event. Adapters set Data to their own context
// (e.g. the discordgo session and interaction) for commands that need it.
type Invocation struct {
	ID        string
	Kind      Kind
	Command   string
	UserID    string
	GuildID   string
	ChannelID string
	Args      map[string]any
	Replier   Replier
	Data      any
}

// Reply answers the invoker through the adapter's reply channel.
func (inv *Invocation) Reply(ctx context.Context, content string) error {
	if inv.Replier == nil {
		return ErrNoReplier
	}
	return inv.Replier.Reply(ctx, content)
}

// Replyf is Reply with formatting.
func (inv *Invocation) Replyf(ctx context.Context, format string, args ...any) error {
	return inv.Reply(ctx, fmt.Sprintf(format, args...))
}

// String returns a string argument.
func (inv *Invocation) String(name string) (string, bool) {
	v, ok := inv.Args[name]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Int returns an integer argument. Platforms deliver numbers as float64
// and text adapters as strings; both are accepted.
func (inv *Invocation) Int(name string) (int64, bool) {
	switch v := inv.Args[name].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Bool returns a boolean argument, accepting "true"/"false" style text.
func (inv *Invocation) Bool(name string) (bool, bool) {
	switch v := inv.Args[name].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	default:
		return false, false
	}
}
