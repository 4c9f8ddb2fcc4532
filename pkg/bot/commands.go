package bot

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/logger"
	"github.com/prismbot/prism/pkg/providers/kakao"
	"github.com/prismbot/prism/pkg/providers/pixiv"
	"github.com/prismbot/prism/pkg/providers/syosetu"
	"github.com/prismbot/prism/pkg/unfurl"
)

const serverErrorReply = ":dizzy_face: Something went wrong on my end..."

var digitsOnly = regexp.MustCompile(`^\d+$`)

// handleCommand runs a prefixed command. It reports whether the message was
// recognized as a command; unrecognized words fall through to the relay
// path so prefixed chatter still crosses the bridge.
func (b *Bot) handleCommand(ctx context.Context, msg *discordgo.Message, args []string) bool {
	switch args[0] {
	case "sudo":
		b.handleSudo(ctx, msg, args[1:])
		return true
	case "pubkey":
		b.say(ctx, msg.ChannelID, "```\n"+b.opts.PublicKeyPEM+"```")
		return true
	case "air":
		if b.opts.Kakao == nil {
			return false
		}
		b.handleAir(ctx, msg, strings.Join(args[1:], " "))
		return true
	case "pixiv":
		b.handlePixiv(ctx, msg, args[1:])
		return true
	}
	return false
}

func (b *Bot) handleSudo(ctx context.Context, msg *discordgo.Message, args []string) {
	operator, err := b.opts.Client.MemberHasRole(ctx, msg.GuildID, msg.Author.ID,
		b.opts.Config.Discord.OperatorRole)
	if err != nil {
		logger.ErrorCF("bot", "Role check failed", map[string]any{"error": err.Error()})
		return
	}
	if !operator {
		logger.WarnCF("bot", "Ignoring sudo from non-operator", map[string]any{
			"user_id": msg.Author.ID,
		})
		return
	}

	if len(args) == 0 || args[0] != "set-notice-channel" {
		return
	}

	b.opts.State.SetNoticeChannel(msg.ChannelID)
	if err := b.opts.Store.Save(b.opts.State); err != nil {
		logger.ErrorCF("bot", "Persisting notice channel failed", map[string]any{"error": err.Error()})
		b.say(ctx, msg.ChannelID, serverErrorReply)
		return
	}
	logger.InfoCF("bot", "Notice channel set", map[string]any{"channel_id": msg.ChannelID})

	if err := b.opts.Notices.RunAll(ctx, msg.ChannelID, b.opts.BotUserID()); err != nil {
		logger.ErrorCF("bot", "Notice run failed", map[string]any{"error": err.Error()})
	}
	if err := b.opts.Client.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		logger.WarnCF("bot", "Could not delete sudo command", map[string]any{"error": err.Error()})
	}
}

func (b *Bot) handlePixiv(ctx context.Context, msg *discordgo.Message, args []string) {
	if len(args) == 0 {
		if _, err := os.Stat(b.opts.Config.PixivSessionPath()); err == nil {
			b.say(ctx, msg.ChannelID, ":white_check_mark: An account is registered on the server.")
		} else {
			b.say(ctx, msg.ChannelID, ":x: No account is registered yet.")
		}
		return
	}

	switch args[0] {
	case "login":
		b.handlePixivLogin(ctx, msg, args[1:])
	case "user":
		if len(args) != 2 || !digitsOnly.MatchString(args[1]) {
			b.say(ctx, msg.ChannelID, ":x: Give me a single numeric user ID.")
			return
		}
		ev := unfurl.Event{State: b.opts.State, Msg: msg}
		if err := b.opts.User.Handle(ctx, ev, args[1]); err != nil {
			b.apologize(ctx, msg.ChannelID, err)
		}
	case "illust":
		if len(args) != 2 || !digitsOnly.MatchString(args[1]) {
			b.say(ctx, msg.ChannelID, ":x: Give me a single numeric illustration ID.")
			return
		}
		ev := unfurl.Event{State: b.opts.State, Msg: msg}
		if err := b.opts.Illust.Handle(ctx, ev, args[1]); err != nil {
			b.apologize(ctx, msg.ChannelID, err)
		}
	default:
		b.say(ctx, msg.ChannelID, ":x: I know `login`, `user` and `illust`.")
	}
}

func (b *Bot) handlePixivLogin(ctx context.Context, msg *discordgo.Message, args []string) {
	if len(args) != 1 {
		b.say(ctx, msg.ChannelID, ":x: I need the Base64 credential blob.")
		return
	}

	blob, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(args[0], "`", ""))
	if err != nil {
		b.say(ctx, msg.ChannelID, ":x: That doesn't look like Base64.")
		return
	}

	session, err := pixiv.NewSession()
	if err != nil {
		logger.ErrorCF("bot", "Pixiv session setup failed", map[string]any{"error": err.Error()})
		b.say(ctx, msg.ChannelID, serverErrorReply)
		return
	}
	if err := session.LoginWithEncrypted(ctx, b.opts.PrivateKey, blob); err != nil {
		switch {
		case errors.Is(err, pixiv.ErrDecrypt):
			b.say(ctx, msg.ChannelID, ":x: Decryption failed. Did you use the right key?")
		case errors.Is(err, pixiv.ErrCredentialFormat):
			b.say(ctx, msg.ChannelID, ":x: I can't see a username and password in there.")
		case errors.Is(err, pixiv.ErrLoginFailed):
			b.say(ctx, msg.ChannelID, ":x: Login failed.")
		default:
			logger.ErrorCF("bot", "Pixiv login failed", map[string]any{"error": err.Error()})
			b.say(ctx, msg.ChannelID, serverErrorReply)
		}
		return
	}

	if err := session.SaveTo(b.opts.Config.PixivSessionPath()); err != nil {
		logger.ErrorCF("bot", "Persisting pixiv session failed", map[string]any{"error": err.Error()})
		b.say(ctx, msg.ChannelID, serverErrorReply)
		return
	}
	b.say(ctx, msg.ChannelID, ":white_check_mark: Logged in!")
}

// apologize maps a handler failure to a user-facing reply. Provider "not
// found" and "not logged in" conditions get specific wording; everything
// else is a generic failure with the detail kept in the log.
func (b *Bot) apologize(ctx context.Context, channelID string, err error) {
	switch {
	case errors.Is(err, pixiv.ErrNotAuthenticated):
		b.say(ctx, channelID, ":x: You have to log in first!")
	case errors.Is(err, pixiv.ErrNotFound):
		b.say(ctx, channelID, ":x: I couldn't find that one.")
	case errors.Is(err, syosetu.ErrNotFound):
		b.say(ctx, channelID, ":x: I couldn't find that novel.")
	case errors.Is(err, kakao.ErrLocationNotFound):
		b.say(ctx, channelID, ":x: I couldn't find that address.")
	default:
		b.say(ctx, channelID, serverErrorReply)
	}
}
