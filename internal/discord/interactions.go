package discord

import (
	"context"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/keshon/commandeer/pkg/cmd"
)

// Data is attached to every Invocation built from an interaction.
type Data struct {
	Session     *discordgo.Session
	Interaction *discordgo.InteractionCreate
}

// responder is the part of *discordgo.Session replies go through.
type responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// replier answers an interaction. The first message is the interaction
// response; later ones are sent as followups.
type replier struct {
	api         responder
	interaction *discordgo.Interaction
	responded   atomic.Bool
}

func newReplier(api responder, i *discordgo.Interaction) *replier {
	return &replier{api: api, interaction: i}
}

func (r *replier) Reply(ctx context.Context, content string) error {
	return r.send(ctx, content, 0)
}

// ReplyEphemeral replies so that only the invoker sees the message.
func (r *replier) ReplyEphemeral(ctx context.Context, content string) error {
	return r.send(ctx, content, discordgo.MessageFlagsEphemeral)
}

func (r *replier) send(ctx context.Context, content string, flags discordgo.MessageFlags) error {
	if r.responded.CompareAndSwap(false, true) {
		return r.api.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
		}, discordgo.WithContext(ctx))
	}
	_, err := r.api.FollowupMessageCreate(r.interaction, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   flags,
	}, discordgo.WithContext(ctx))
	return err
}

type ephemeralReplier interface {
	ReplyEphemeral(ctx context.Context, content string) error
}

// replyPrivately uses an ephemeral reply when the invocation supports one.
func replyPrivately(ctx context.Context, inv *cmd.Invocation, content string) error {
	if er, ok := inv.Replier.(ephemeralReplier); ok {
		return er.ReplyEphemeral(ctx, content)
	}
	return inv.Reply(ctx, content)
}

func kindOf(t discordgo.InteractionType) cmd.Kind {
	switch t {
	case discordgo.InteractionApplicationCommand:
		return cmd.KindCommand
	case discordgo.InteractionMessageComponent:
		return cmd.KindComponent
	case discordgo.InteractionApplicationCommandAutocomplete:
		return cmd.KindAutocomplete
	default:
		return cmd.KindOther
	}
}

// newInvocation maps an interaction onto the transport-neutral Invocation.
func newInvocation(api responder, i *discordgo.InteractionCreate) *cmd.Invocation {
	inv := &cmd.Invocation{
		ID:        i.ID,
		Kind:      kindOf(i.Type),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    userID(i),
		Replier:   newReplier(api, i.Interaction),
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Kind == cmd.KindCommand {
		data := i.ApplicationCommandData()
		inv.Command = data.Name
		inv.Args = optionArgs(data.Options)
	}
	return inv
}

// userID prefers the guild member, falling back to the DM user.
func userID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	if len(opts) == 0 {
		return nil
	}
	args := make(map[string]any, len(opts))
	for _, o := range opts {
		args[o.Name] = o.Value
	}
	return args
}
