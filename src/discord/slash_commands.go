package discord

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/govproposals/src/commands"
)

// Slash command option names.
const (
	OptionText = "text"
	OptionID   = "id"
)

// SlashCommands builds one application command per entry in
// commands.Definitions, in the same order.
func SlashCommands() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(commands.Definitions))
	for _, def := range commands.Definitions {
		cmd := &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
		}
		switch def.Name {
		case commands.CommandSubmit:
			cmd.Options = []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        OptionText,
					Description: "Proposal text",
					Required:    false,
				},
			}
		case commands.CommandVote:
			cmd.Options = []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        OptionID,
					Description: "Proposal ID",
					Required:    true,
				},
			}
		}
		out = append(out, cmd)
	}
	return out
}

// RegisterSlashCommands registers the command set for appID. An empty
// guildID registers the commands globally.
func RegisterSlashCommands(s *discordgo.Session, appID, guildID string) error {
	if appID == "" {
		return fmt.Errorf("discord: application id is required to register slash commands")
	}

	var failures []string
	for _, definition := range SlashCommands() {
		_, err := s.ApplicationCommandCreate(appID, guildID, definition)
		if err != nil {
			if isDuplicateCommandError(err) {
				log.Printf("discord: slash command %q already registered", definition.Name)
				continue
			}
			failures = append(failures, fmt.Sprintf("%s: %v", definition.Name, err))
			log.Printf("discord: failed to register command %q: %v", definition.Name, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discord: slash command registration errors: %s", strings.Join(failures, "; "))
	}
	return nil
}

// DeleteSlashCommands removes every command registered for appID in guildID
// (or globally when guildID is empty) and returns how many were removed.
func DeleteSlashCommands(s *discordgo.Session, appID, guildID string) (int, error) {
	registered, err := s.ApplicationCommands(appID, guildID)
	if err != nil {
		return 0, fmt.Errorf("discord: list slash commands: %w", err)
	}

	removed := 0
	for _, cmd := range registered {
		if err := s.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			return removed, fmt.Errorf("discord: delete slash command %q: %w", cmd.Name, err)
		}
		removed++
	}
	return removed, nil
}

func isDuplicateCommandError(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		if strings.Contains(strings.ToLower(restErr.Message.Message), "already exists") {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "50035") && strings.Contains(msg, "already exists")
}

// interactionText rebuilds the raw command text for a slash invocation so
// it follows the same parse path as a prefixed message.
func interactionText(data discordgo.ApplicationCommandInteractionData) string {
	switch data.Name {
	case commands.CommandSubmit:
		for _, opt := range data.Options {
			if opt.Name == OptionText && opt.Type == discordgo.ApplicationCommandOptionString {
				return commands.CommandSubmit + " " + opt.StringValue()
			}
		}
		return commands.CommandSubmit
	case commands.CommandVote:
		for _, opt := range data.Options {
			if opt.Name == OptionID && opt.Type == discordgo.ApplicationCommandOptionInteger {
				return fmt.Sprintf("%s %d", commands.CommandVote, opt.IntValue())
			}
		}
		return commands.CommandVote
	default:
		return data.Name
	}
}
