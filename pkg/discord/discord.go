// Package discord wraps the Discord API behind the narrow surface the bot
// core needs, so the relay and unfurl paths stay testable with fakes.
package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Webhook is a channel-scoped posting credential. Possession of (ID, Token)
// is sufficient to post as the webhook, so handles must never be logged or
// echoed into command output.
type Webhook struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// File is an attachment carried by a payload.
type File struct {
	Name string
	Data []byte
}

// Payload is the rendered content of one relay or unfurl delivery.
// Username and AvatarURL borrow the original author's display identity.
type Payload struct {
	Content   string
	Username  string
	AvatarURL string
	Embeds    []*discordgo.MessageEmbed
	Files     []File
}

// Client is the subset of the platform API consumed by the core.
type Client interface {
	CreateWebhook(ctx context.Context, channelID, name string) (Webhook, error)
	ExecuteWebhook(ctx context.Context, hook Webhook, p Payload) error
	SendMessage(ctx context.Context, channelID string, p Payload) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Typing(ctx context.Context, channelID string) error
	ChannelNSFW(ctx context.Context, channelID string) (bool, error)
	MemberHasRole(ctx context.Context, guildID, userID, roleName string) (bool, error)
}

// Session is the production Client backed by a discordgo gateway session.
type Session struct {
	s *discordgo.Session
}

func NewSession(token string) (*Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentMessageContent
	return &Session{s: s}, nil
}

// Open connects to the gateway.
func (c *Session) Open() error { return c.s.Open() }

// Close disconnects without reconnecting.
func (c *Session) Close() error { return c.s.Close() }

// AddHandler registers a gateway event handler and returns its remover.
func (c *Session) AddHandler(handler any) func() { return c.s.AddHandler(handler) }

// BotUserID returns the connected bot account's user ID.
func (c *Session) BotUserID() string {
	if c.s.State != nil && c.s.State.User != nil {
		return c.s.State.User.ID
	}
	return ""
}

func (c *Session) CreateWebhook(ctx context.Context, channelID, name string) (Webhook, error) {
	wh, err := c.s.WebhookCreate(channelID, name, "", discordgo.WithContext(ctx))
	if err != nil {
		return Webhook{}, fmt.Errorf("creating webhook for channel %s: %w", channelID, err)
	}
	return Webhook{ID: wh.ID, Token: wh.Token}, nil
}

func (c *Session) ExecuteWebhook(ctx context.Context, hook Webhook, p Payload) error {
	params := &discordgo.WebhookParams{
		Content:   p.Content,
		Username:  p.Username,
		AvatarURL: p.AvatarURL,
		Embeds:    p.Embeds,
		Files:     toDiscordFiles(p.Files),
	}
	_, err := c.s.WebhookExecute(hook.ID, hook.Token, true, params, discordgo.WithContext(ctx))
	return err
}

func (c *Session) SendMessage(ctx context.Context, channelID string, p Payload) (string, error) {
	send := &discordgo.MessageSend{
		Content: p.Content,
		Embeds:  p.Embeds,
		Files:   toDiscordFiles(p.Files),
	}
	msg, err := c.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (c *Session) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (c *Session) Typing(ctx context.Context, channelID string) error {
	return c.s.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

func (c *Session) ChannelNSFW(ctx context.Context, channelID string) (bool, error) {
	ch, err := c.s.State.Channel(channelID)
	if err == nil {
		return ch.NSFW, nil
	}
	ch, err = c.s.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, err
	}
	return ch.NSFW, nil
}

// MemberHasRole reports whether the guild member carries a role with the
// given name. Unknown role names simply test false.
func (c *Session) MemberHasRole(ctx context.Context, guildID, userID, roleName string) (bool, error) {
	member, err := c.s.State.Member(guildID, userID)
	if err != nil {
		member, err = c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("looking up member %s: %w", userID, err)
		}
	}

	roles, err := c.s.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("listing roles for guild %s: %w", guildID, err)
	}

	var roleID string
	for _, r := range roles {
		if r.Name == roleName {
			roleID = r.ID
			break
		}
	}
	if roleID == "" {
		return false, nil
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true, nil
		}
	}
	return false, nil
}

func toDiscordFiles(files []File) []*discordgo.File {
	if len(files) == 0 {
		return nil
	}
	out := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		out = append(out, &discordgo.File{
			Name:   f.Name,
			Reader: bytes.NewReader(f.Data),
		})
	}
	return out
}

var _ Client = (*Session)(nil)
