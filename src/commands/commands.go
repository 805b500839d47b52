package commands

import (
	"fmt"
	"strings"
)

const (
	CommandSubmit = "submit"
	CommandView   = "view"
	CommandVote   = "vote"
	CommandHelp   = "help"
)

// DefaultPrefix is used when no command prefix is configured.
const DefaultPrefix = "!"

const helpHeader = "These are the available commands:"

// Definition describes a recognized command token.
type Definition struct {
	Name        string
	Usage       string // argument placeholder, empty when the command takes none
	Description string
}

// Definitions is the ordered table every help and unknown-command reply is
// rendered from. Slash command registration reads it too.
var Definitions = []Definition{
	{Name: CommandSubmit, Usage: "<text>", Description: "Submit a new proposal"},
	{Name: CommandView, Description: "View all proposals"},
	{Name: CommandVote, Usage: "<id>", Description: "Vote for a proposal"},
	{Name: CommandHelp, Description: "Show help"},
}

// Lookup returns the definition for a lowercase token.
func Lookup(name string) (Definition, bool) {
	for _, def := range Definitions {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// Command is one parsed unit of user intent.
type Command interface {
	Name() string
}

// Submit creates a proposal. Text is stored verbatim and may be empty.
type Submit struct {
	Text string
}

// View lists proposals ordered by votes.
type View struct{}

// Vote increments the vote counter of a proposal.
type Vote struct {
	ID int64
}

// Help lists the available commands.
type Help struct{}

func (Submit) Name() string { return CommandSubmit }
func (View) Name() string   { return CommandView }
func (Vote) Name() string   { return CommandVote }
func (Help) Name() string   { return CommandHelp }

// UsageLine renders "{prefix}{name} {usage}" for a definition.
func UsageLine(prefix string, def Definition) string {
	if def.Usage == "" {
		return prefix + def.Name
	}
	return prefix + def.Name + " " + def.Usage
}

// HelpText enumerates every definition with its description.
func HelpText(prefix string) string {
	var b strings.Builder
	b.WriteString(helpHeader)
	b.WriteString("\n\n")
	for i, def := range Definitions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s - %s", UsageLine(prefix, def), def.Description)
	}
	return b.String()
}

// UnknownCommandText is the reply for a token that matches no definition.
func UnknownCommandText(prefix, token string) string {
	if token == "" {
		return "Missing command.\n\n" + HelpText(prefix)
	}
	return fmt.Sprintf("Unknown command: %s\n\n%s", token, HelpText(prefix))
}

// BadArgumentText is the reply for a recognized command whose argument
// failed to parse.
func BadArgumentText(prefix string, perr *ParseError) string {
	def, _ := Lookup(perr.Token)
	return fmt.Sprintf("Invalid argument %q for %s.\nUsage: %s\n\n%s",
		perr.Arg, perr.Token, UsageLine(prefix, def), HelpText(prefix))
}
