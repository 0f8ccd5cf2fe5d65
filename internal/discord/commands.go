package discord

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/commandeer/pkg/cmd"
)

var optionTypes = map[cmd.ParamType]discordgo.ApplicationCommandOptionType{
	cmd.ParamString:  discordgo.ApplicationCommandOptionString,
	cmd.ParamInteger: discordgo.ApplicationCommandOptionInteger,
	cmd.ParamNumber:  discordgo.ApplicationCommandOptionNumber,
	cmd.ParamBoolean: discordgo.ApplicationCommandOptionBoolean,
	cmd.ParamUser:    discordgo.ApplicationCommandOptionUser,
}

// commandDefinitions converts registry metadata into slash command
// definitions, sorted by name.
func commandDefinitions(commands []cmd.Metadata) []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(commands))
	for _, c := range commands {
		defs = append(defs, commandDefinition(c))
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func commandDefinition(c cmd.Metadata) *discordgo.ApplicationCommand {
	def := &discordgo.ApplicationCommand{
		Type:        discordgo.ChatApplicationCommand,
		Name:        c.Name,
		Description: c.Description,
	}
	if def.Description == "" {
		def.Description = c.Name
	}

	for _, p := range c.Params {
		opt := &discordgo.ApplicationCommandOption{
			Type:        optionType(p.Type),
			Name:        p.Name,
			Description: p.Description,
			Required:    p.Required,
		}
		if opt.Description == "" {
			opt.Description = p.Name
		}
		for _, ch := range p.Choices {
			opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
		}
		def.Options = append(def.Options, opt)
	}

	// Discord rejects optional options listed before required ones.
	sort.SliceStable(def.Options, func(i, j int) bool {
		return def.Options[i].Required && !def.Options[j].Required
	})
	return def
}

func optionType(t cmd.ParamType) discordgo.ApplicationCommandOptionType {
	if ot, ok := optionTypes[t]; ok {
		return ot
	}
	return discordgo.ApplicationCommandOptionString
}
