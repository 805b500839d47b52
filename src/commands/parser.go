package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadArgument    = errors.New("bad argument")
)

// ParseError reports raw text that does not form a valid command.
type ParseError struct {
	Kind  error // ErrUnknownCommand or ErrBadArgument
	Token string
	Arg   string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Kind == ErrBadArgument {
		return fmt.Sprintf("commands: %s: %v: %q", e.Token, e.Kind, e.Arg)
	}
	return fmt.Sprintf("commands: %v: %q", e.Kind, e.Token)
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Parser turns raw message text into a Command.
type Parser struct {
	Prefix string
}

// NewParser returns a parser for the given prefix, falling back to
// DefaultPrefix when empty.
func NewParser(prefix string) *Parser {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	return &Parser{Prefix: prefix}
}

// IsCommand reports whether raw starts with the command prefix.
func (p *Parser) IsCommand(raw string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(raw, unicode.IsSpace), p.Prefix)
}

// Parse splits raw into a lowercase token and its remainder and maps the
// token to a Command. The prefix is optional so transports that already
// stripped it can pass bare text.
func (p *Parser) Parse(raw string) (Command, error) {
	text := strings.TrimLeftFunc(raw, unicode.IsSpace)
	text = strings.TrimPrefix(text, p.Prefix)

	token, rest := splitToken(text)
	token = strings.ToLower(token)
	// "vote@proposalbot 3" addresses the bot explicitly.
	if at := strings.IndexByte(token, '@'); at >= 0 {
		token = token[:at]
	}

	switch token {
	case CommandSubmit:
		return Submit{Text: rest}, nil
	case CommandView:
		return View{}, nil
	case CommandHelp:
		return Help{}, nil
	case CommandVote:
		arg := strings.TrimSpace(rest)
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, &ParseError{Kind: ErrBadArgument, Token: token, Arg: arg, Err: err}
		}
		return Vote{ID: id}, nil
	default:
		return nil, &ParseError{Kind: ErrUnknownCommand, Token: token}
	}
}

// splitToken returns the text up to the first whitespace and the remainder
// after exactly one separating whitespace rune.
func splitToken(text string) (string, string) {
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return text, ""
	}
	_, size := utf8.DecodeRuneInString(text[idx:])
	return text[:idx], text[idx+size:]
}
