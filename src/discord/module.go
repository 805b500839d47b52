package discord

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/govproposals/src/actions/core"
	"github.com/stake-plus/govproposals/src/commands"
	"github.com/stake-plus/govproposals/src/dispatch"
	"github.com/stake-plus/govproposals/src/logging"
)

// Transport labels Discord traffic in logs and metrics.
const Transport = "discord"

var _ core.Module = (*Module)(nil)

// Submitter is implemented by *dispatch.Dispatcher.
type Submitter interface {
	Submit(item dispatch.Inbound) error
	Parser() *commands.Parser
}

// messageSender is the slice of *discordgo.Session used to deliver replies.
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Config struct {
	Token   string
	GuildID string
	// SlashCommands registers the application commands on ready.
	SlashCommands bool
}

// Module connects the Discord gateway to the dispatcher. Prefixed channel
// messages and slash commands both become dispatch.Inbound items.
type Module struct {
	config    Config
	session   *discordgo.Session
	submitter Submitter
}

func NewModule(cfg Config, submitter Submitter) (*Module, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	// Handlers run in gateway order so a sender's messages reach the
	// dispatcher in the order they were sent.
	session.SyncEvents = true

	m := &Module{
		config:    cfg,
		session:   session,
		submitter: submitter,
	}
	m.initHandlers()
	return m, nil
}

// Name implements core.Module.
func (m *Module) Name() string { return Transport }

func (m *Module) initHandlers() {
	m.session.AddHandler(m.onReady)
	m.session.AddHandler(m.onMessageCreate)
	m.session.AddHandler(m.onInteractionCreate)
}

func (m *Module) Start(ctx context.Context) error {
	if err := m.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (m *Module) Stop(ctx context.Context) {
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			log.Printf("discord: close session: %v", err)
		}
	}
}

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	username := formatDiscordUsername(r.User.Username, r.User.Discriminator)
	log.Printf("discord: logged in as %s", username)

	if !m.config.SlashCommands {
		return
	}
	if err := RegisterSlashCommands(s, r.User.ID, m.config.GuildID); err != nil {
		log.Printf("discord: failed to register slash commands: %v", err)
	} else {
		log.Printf("discord: slash commands registered")
	}
}

func (m *Module) onMessageCreate(s *discordgo.Session, mc *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	item, ok := inboundFromMessage(s, m.submitter.Parser(), mc, selfID)
	if !ok {
		return
	}
	if err := m.submitter.Submit(item); err != nil {
		log.Printf("discord: submit message %s: %v", mc.ID, err)
	}
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if _, known := commands.Lookup(data.Name); !known {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		log.Printf("discord: slash ack failed: %v", err)
		return
	}

	item := inboundFromInteraction(s, i.Interaction)
	if err := m.submitter.Submit(item); err != nil {
		log.Printf("discord: submit interaction %s: %v", i.ID, err)
	}
}

// inboundFromMessage maps a channel message to a dispatch item. Messages
// from bots, from the bot itself, or without the command prefix are skipped.
func inboundFromMessage(s messageSender, parser *commands.Parser, mc *discordgo.MessageCreate, selfID string) (dispatch.Inbound, bool) {
	if mc == nil || mc.Message == nil || mc.Author == nil {
		return dispatch.Inbound{}, false
	}
	if mc.Author.Bot || mc.Author.ID == selfID {
		return dispatch.Inbound{}, false
	}
	if !parser.IsCommand(mc.Content) {
		return dispatch.Inbound{}, false
	}

	channelID := mc.ChannelID
	return dispatch.Inbound{
		Transport:      Transport,
		ConversationID: channelID,
		SenderID:       mc.Author.ID,
		SenderName:     mc.Author.Username,
		Text:           mc.Content,
		Respond: func(ctx context.Context, reply string) error {
			return sendChunks(ctx, s, channelID, reply)
		},
	}, true
}

// inboundFromInteraction maps a deferred slash command to a dispatch item
// whose reply edits the deferred response.
func inboundFromInteraction(s messageSender, interaction *discordgo.Interaction) dispatch.Inbound {
	user := interaction.User
	if interaction.Member != nil && interaction.Member.User != nil {
		user = interaction.Member.User
	}
	var senderID, senderName string
	if user != nil {
		senderID, senderName = user.ID, user.Username
	}

	return dispatch.Inbound{
		Transport:      Transport,
		ConversationID: interaction.ChannelID,
		SenderID:       senderID,
		SenderName:     senderName,
		Text:           interactionText(interaction.ApplicationCommandData()),
		Respond: func(ctx context.Context, reply string) error {
			return editInteraction(ctx, s, interaction, reply)
		},
	}
}

func sendChunks(ctx context.Context, s messageSender, channelID, reply string) error {
	chunks := BuildLongMessages(reply)
	if len(chunks) == 0 {
		return errors.New("discord: empty reply")
	}
	for _, chunk := range chunks {
		msg := &discordgo.MessageSend{Content: chunk, AllowedMentions: noMentions()}
		if _, err := s.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
			return sendError(channelID, err)
		}
	}
	return nil
}

func editInteraction(ctx context.Context, s messageSender, interaction *discordgo.Interaction, reply string) error {
	chunks := BuildLongMessages(reply)
	if len(chunks) == 0 {
		return errors.New("discord: empty reply")
	}

	first := chunks[0]
	edit := &discordgo.WebhookEdit{Content: &first, AllowedMentions: noMentions()}
	if _, err := s.InteractionResponseEdit(interaction, edit, discordgo.WithContext(ctx)); err != nil {
		return sendError(interaction.ChannelID, err)
	}
	for _, chunk := range chunks[1:] {
		params := &discordgo.WebhookParams{Content: chunk, AllowedMentions: noMentions()}
		if _, err := s.FollowupMessageCreate(interaction, true, params, discordgo.WithContext(ctx)); err != nil {
			return sendError(interaction.ChannelID, err)
		}
	}
	return nil
}

// noMentions keeps echoed proposal text such as @everyone from pinging.
func noMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}}
}

func sendError(channelID string, err error) error {
	if logging.IsRateLimit(err) {
		return fmt.Errorf("discord: rate limited sending to %s: %w", channelID, err)
	}
	return fmt.Errorf("discord: send to %s: %w", channelID, err)
}

func formatDiscordUsername(username, discriminator string) string {
	if discriminator == "" || discriminator == "0" {
		return username
	}
	return fmt.Sprintf("%s#%s", username, discriminator)
}
