// Package bot is the event loop: it classifies inbound messages into
// unfurl candidates, commands and plain relay traffic, and routes each to
// the right subsystem.
package bot

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/config"
	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/logger"
	"github.com/prismbot/prism/pkg/notice"
	"github.com/prismbot/prism/pkg/providers/airkorea"
	"github.com/prismbot/prism/pkg/providers/kakao"
	"github.com/prismbot/prism/pkg/relay"
	"github.com/prismbot/prism/pkg/unfurl"
)

// Options wires the bot's collaborators together. Kakao and Air may be nil;
// the air-quality command is disabled without them.
type Options struct {
	Config     *config.Config
	Client     discord.Client
	Store      *bridge.Store
	State      *bridge.State
	Relay      *relay.Executor
	Dispatcher *unfurl.Dispatcher
	Notices    *notice.Runner

	PrivateKey   *rsa.PrivateKey
	PublicKeyPEM string

	Illust *unfurl.PixivIllustHandler
	User   *unfurl.PixivUserHandler

	Kakao *kakao.Client
	Air   *airkorea.Client

	// BotUserID resolves the connected account lazily; it is unknown until
	// the gateway session is ready.
	BotUserID func() string
}

type Bot struct {
	opts Options

	// download fetches relayed attachments; swapped out in tests.
	download func(ctx context.Context, rawURL string) ([]byte, error)
}

func New(opts Options) *Bot {
	return &Bot{opts: opts, download: httpDownload}
}

// HandleReady drains pending notices once the gateway session is up.
func (b *Bot) HandleReady(ctx context.Context) {
	channelID := b.opts.State.NoticeChannel()
	if channelID == "" {
		return
	}
	if err := b.opts.Notices.RunAll(ctx, channelID, b.opts.BotUserID()); err != nil {
		logger.ErrorCF("bot", "Notice run failed", map[string]any{"error": err.Error()})
	}
}

// HandleMessage classifies and processes one inbound message. Order
// matters: an exact two-token "<prefix> <url>" message is an unfurl
// candidate first, then prefixed messages are tried as commands, and
// whatever remains is relayed when the channel has outgoing links.
func (b *Bot) HandleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.ID == b.opts.BotUserID() || msg.Author.Bot {
		return
	}

	prefix := b.opts.Config.Discord.CommandPrefix
	words := strings.Fields(msg.Content)
	eventID := uuid.NewString()

	if len(words) == 2 && words[0] == prefix {
		if u, err := url.Parse(words[1]); err == nil && u.Host != "" {
			ev := unfurl.Event{State: b.opts.State, Msg: msg}
			matched, err := b.opts.Dispatcher.TryUnfurl(ctx, ev, u)
			if matched {
				if err != nil {
					logger.ErrorCF("bot", "Unfurl failed", map[string]any{
						"event_id":   eventID,
						"channel_id": msg.ChannelID,
						"error":      err.Error(),
					})
					b.apologize(ctx, msg.ChannelID, err)
					return
				}
				// The preview replaces the bare link. Deletion can fail on
				// missing permissions; the preview already landed, so only
				// log it.
				if err := b.opts.Client.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
					logger.WarnCF("bot", "Could not delete trigger message", map[string]any{
						"event_id":   eventID,
						"channel_id": msg.ChannelID,
						"error":      err.Error(),
					})
				}
				return
			}
		}
	}

	if len(words) >= 2 && words[0] == prefix {
		if b.handleCommand(ctx, msg, words[1:]) {
			return
		}
	}

	b.relayMessage(ctx, eventID, msg)
}

func (b *Bot) relayMessage(ctx context.Context, eventID string, msg *discordgo.Message) {
	if len(b.opts.State.LinkedTargets(msg.ChannelID)) == 0 {
		return
	}

	files := make([]discord.File, 0, len(msg.Attachments))
	for _, attach := range msg.Attachments {
		data, err := b.download(ctx, attach.URL)
		if err != nil {
			logger.ErrorCF("bot", "Attachment download failed", map[string]any{
				"event_id":   eventID,
				"channel_id": msg.ChannelID,
				"error":      err.Error(),
			})
			return
		}
		files = append(files, discord.File{Name: attach.Filename, Data: data})
	}

	name, avatarURL := relay.Speaker(msg)
	payload := discord.Payload{
		Content:   msg.ContentWithMentionsReplaced(),
		Username:  name,
		AvatarURL: avatarURL,
		Embeds:    msg.Embeds,
		Files:     files,
	}

	destinations := relay.EchoDestinations(b.opts.State, msg.ChannelID)
	if err := b.opts.Relay.Relay(ctx, b.opts.State, destinations, payload); err != nil {
		logger.ErrorCF("bot", "Relay failed", map[string]any{
			"event_id":   eventID,
			"channel_id": msg.ChannelID,
			"error":      err.Error(),
		})
	}
}

func (b *Bot) say(ctx context.Context, channelID, content string) {
	if _, err := b.opts.Client.SendMessage(ctx, channelID, discord.Payload{Content: content}); err != nil {
		logger.ErrorCF("bot", "Could not send message", map[string]any{
			"channel_id": channelID,
			"error":      err.Error(),
		})
	}
}

func httpDownload(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching attachment: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
