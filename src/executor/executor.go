package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/events"
	"github.com/stake-plus/govproposals/src/metrics"
	"github.com/stake-plus/govproposals/src/proposals"
)

const (
	// InvalidProposalReply answers a vote for an id that does not exist.
	InvalidProposalReply = "Invalid proposal ID"
	// GenericFailureReply answers any command whose store call failed.
	GenericFailureReply = "Sorry, something went wrong while processing your command. Please try again later."

	viewHeader = "Proposals:\n"
)

// Gateway is the subset of proposals.Store the executor needs.
type Gateway interface {
	CreateProposal(ctx context.Context, authorID int64, authorName, text string) (int64, error)
	ListProposals(ctx context.Context) ([]proposals.Proposal, error)
	IncrementVote(ctx context.Context, id int64) (string, error)
}

// Identity is the sender captured from the inbound message.
type Identity struct {
	ID   int64
	Name string
}

// ResolveIdentity substitutes defaults for missing sender fields: an empty
// or non-numeric id becomes 0 and a missing name stays "".
func ResolveIdentity(rawID, name string) Identity {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		id = 0
	}
	return Identity{ID: id, Name: name}
}

// Executor runs one command against the gateway and formats its reply. It
// keeps no state between calls.
type Executor struct {
	gateway   Gateway
	publisher events.Publisher
	metrics   *metrics.Metrics
	prefix    string
}

type Option func(*Executor)

func WithPublisher(p events.Publisher) Option {
	return func(e *Executor) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithPrefix sets the prefix shown in help text.
func WithPrefix(prefix string) Option {
	return func(e *Executor) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

func New(gateway Gateway, opts ...Option) *Executor {
	e := &Executor{
		gateway:   gateway,
		publisher: events.Nop{},
		prefix:    commands.DefaultPrefix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute performs at most one gateway call and always returns a reply.
func (e *Executor) Execute(ctx context.Context, cmd commands.Command, who Identity) string {
	start := time.Now()
	reply, outcome := e.execute(ctx, cmd, who)
	e.metrics.ObserveCommand(cmd.Name(), outcome, time.Since(start))
	return reply
}

func (e *Executor) execute(ctx context.Context, cmd commands.Command, who Identity) (string, string) {
	switch c := cmd.(type) {
	case commands.Submit:
		return e.submit(ctx, c, who)
	case commands.View:
		return e.view(ctx)
	case commands.Vote:
		return e.vote(ctx, c, who)
	case commands.Help:
		return commands.HelpText(e.prefix), metrics.OutcomeOK
	default:
		return commands.UnknownCommandText(e.prefix, cmd.Name()), metrics.OutcomeParseError
	}
}

func (e *Executor) submit(ctx context.Context, c commands.Submit, who Identity) (string, string) {
	id, err := e.gateway.CreateProposal(ctx, who.ID, who.Name, c.Text)
	if err != nil {
		return e.failure(commands.CommandSubmit, err)
	}
	e.publish(ctx, events.Event{
		Type:       events.TypeSubmitted,
		ProposalID: id,
		AuthorID:   who.ID,
		AuthorName: who.Name,
		Text:       c.Text,
	})
	return fmt.Sprintf("Proposal submitted: %s", c.Text), metrics.OutcomeOK
}

func (e *Executor) view(ctx context.Context) (string, string) {
	list, err := e.gateway.ListProposals(ctx)
	if err != nil {
		return e.failure(commands.CommandView, err)
	}
	return FormatProposals(list), metrics.OutcomeOK
}

func (e *Executor) vote(ctx context.Context, c commands.Vote, who Identity) (string, string) {
	text, err := e.gateway.IncrementVote(ctx, c.ID)
	if errors.Is(err, proposals.ErrNotFound) {
		return InvalidProposalReply, metrics.OutcomeNotFound
	}
	if err != nil {
		return e.failure(commands.CommandVote, err)
	}
	e.publish(ctx, events.Event{
		Type:       events.TypeVoted,
		ProposalID: c.ID,
		AuthorID:   who.ID,
		AuthorName: who.Name,
		Text:       text,
	})
	return fmt.Sprintf("You voted for proposal: %s", text), metrics.OutcomeOK
}

func (e *Executor) failure(command string, err error) (string, string) {
	var se *proposals.StorageError
	if !errors.As(err, &se) {
		log.Printf("executor: %s failed outside the store: %v", command, err)
		return GenericFailureReply, metrics.OutcomeStorageError
	}
	switch {
	case se.Constraint():
		log.Printf("executor: %s rejected by a store constraint: %v", command, err)
		return GenericFailureReply, metrics.OutcomeConstraint
	case se.Timeout():
		log.Printf("executor: %s timed out: %v", command, err)
	default:
		log.Printf("executor: %s failed: %v", command, err)
	}
	return GenericFailureReply, metrics.OutcomeStorageError
}

// publish runs after the store commit. A failure is logged and the command
// still succeeds; re-running it would apply the change twice.
func (e *Executor) publish(ctx context.Context, ev events.Event) {
	ev.At = time.Now()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		log.Printf("executor: %v", err)
	}
}

// ReplyForParseError renders the reply for a parser failure.
func (e *Executor) ReplyForParseError(err error) string {
	var perr *commands.ParseError
	if !errors.As(err, &perr) {
		return commands.HelpText(e.prefix)
	}
	command := perr.Token
	if errors.Is(err, commands.ErrUnknownCommand) {
		command = "unknown"
	}
	e.metrics.ObserveCommand(command, metrics.OutcomeParseError, 0)
	if errors.Is(err, commands.ErrBadArgument) {
		return commands.BadArgumentText(e.prefix, perr)
	}
	return commands.UnknownCommandText(e.prefix, perr.Token)
}

// FormatProposals renders the view reply: a header, then one block per
// proposal in the given order.
func FormatProposals(list []proposals.Proposal) string {
	var b strings.Builder
	b.WriteString(viewHeader)
	for _, p := range list {
		fmt.Fprintf(&b, "ID: %d | By: %s | Votes: %d\n%s\n\n", p.ID, p.AuthorName, p.Votes, p.Text)
	}
	return b.String()
}
