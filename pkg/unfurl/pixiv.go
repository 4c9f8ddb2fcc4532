package unfurl

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/logger"
	"github.com/prismbot/prism/pkg/media"
	"github.com/prismbot/prism/pkg/providers/pixiv"
)

const pixivColor = 0x0096fa

var (
	illustPathPattern = regexp.MustCompile(`^/i/(\d+)$`)
	userPathPattern   = regexp.MustCompile(`^/u/(\d+)$`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
)

// PixivSource is the slice of the pixiv session the handlers need.
type PixivSource interface {
	IllustInfo(ctx context.Context, id string) (pixiv.Illust, error)
	UserProfile(ctx context.Context, id string) (pixiv.User, error)
	Download(ctx context.Context, rawURL, referer string) ([]byte, error)
}

func pixivHost(u *url.URL) bool {
	return u.Host == "www.pixiv.net" || u.Host == "pixiv.net"
}

// PixivIllustHandler previews illustration links, downloading the original
// asset and re-encoding it under the upload ceiling.
type PixivIllustHandler struct {
	Client  discord.Client
	Source  PixivSource
	Ceiling int
}

func (h *PixivIllustHandler) Match(u *url.URL) (string, bool) {
	if !pixivHost(u) {
		return "", false
	}
	if u.Path == "/member_illust.php" {
		if id := u.Query().Get("illust_id"); digitsPattern.MatchString(id) {
			return id, true
		}
		return "", false
	}
	if m := illustPathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

func (h *PixivIllustHandler) Handle(ctx context.Context, ev Event, id string) error {
	illust, err := h.Source.IllustInfo(ctx, id)
	if err != nil {
		return err
	}

	embed := illustEmbed(illust, ev.Msg)
	channelID := ev.Msg.ChannelID

	warning := ""
	if illust.Restricted() {
		warning = ":underage: "

		nsfw, err := h.Client.ChannelNSFW(ctx, channelID)
		if err != nil {
			return err
		}
		if !nsfw {
			_, err := h.Client.SendMessage(ctx, channelID, discord.Payload{
				Content: ":underage: This work can only be shown in age-restricted channels.",
				Embeds:  []*discordgo.MessageEmbed{embed},
			})
			return err
		}
	}

	progressID, err := h.Client.SendMessage(ctx, channelID, discord.Payload{
		Content: fmt.Sprintf("%sDownloading **%s** by **%s**, hold on!",
			warning, illust.Title, illust.UserName),
	})
	if err != nil {
		return err
	}
	h.Client.Typing(ctx, channelID)

	referer := fmt.Sprintf("https://www.pixiv.net/member_illust.php?mode=medium&illust_id=%s", id)
	data, err := h.Source.Download(ctx, illust.URLs.Original, referer)
	if err != nil {
		return err
	}

	if len(data) > h.Ceiling {
		resizingID, err := h.Client.SendMessage(ctx, channelID, discord.Payload{
			Content: fmt.Sprintf("%s**%s** is too large, shrinking it first.", warning, illust.Title),
		})
		if err != nil {
			return err
		}
		h.deleteQuietly(ctx, channelID, progressID)
		progressID = resizingID
		h.Client.Typing(ctx, channelID)
	}

	fitted, err := media.Fit(data, h.Ceiling)
	if err != nil {
		return err
	}

	content := ""
	if illust.Restricted() {
		content = ":underage: This illustration is rated R-18."
	}
	_, err = h.Client.SendMessage(ctx, channelID, discord.Payload{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files: []discord.File{{
			Name: fmt.Sprintf("%s.%s", id, fitted.Format),
			Data: fitted.Data,
		}},
	})
	if err != nil {
		return err
	}

	h.deleteQuietly(ctx, channelID, progressID)
	return nil
}

func (h *PixivIllustHandler) deleteQuietly(ctx context.Context, channelID, messageID string) {
	if err := h.Client.DeleteMessage(ctx, channelID, messageID); err != nil {
		logger.WarnCF("unfurl", "Could not delete progress message", map[string]any{
			"channel_id": channelID,
			"error":      err.Error(),
		})
	}
}

func illustEmbed(illust pixiv.Illust, msg *discordgo.Message) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "Kind", Value: illust.TypeString(), Inline: true},
	}
	if illust.PageCount > 1 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Pages",
			Value:  fmt.Sprintf("%d pages", illust.PageCount),
			Inline: true,
		})
	}
	if illust.SeriesNav != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Series",
			Value: illust.SeriesNav.Title,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       illust.Title,
		Description: renderDescription(illust.Description),
		URL:         "https://www.pixiv.net/i/" + illust.ID,
		Color:       pixivColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name: illust.UserName,
			URL:  "https://www.pixiv.net/u/" + illust.UserID,
		},
		Fields: fields,
	}
	if created := illust.CreatedAt(); !created.IsZero() {
		embed.Timestamp = created.Format(time.RFC3339)
	}
	if msg != nil && msg.Author != nil {
		name := msg.Author.Username
		if msg.Member != nil && msg.Member.Nick != "" {
			name = msg.Member.Nick
		}
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + name,
			IconURL: msg.Author.AvatarURL(""),
		}
	}
	return embed
}

// renderDescription converts pixiv's HTML description to markdown; the raw
// HTML is kept when conversion fails.
func renderDescription(htmlText string) string {
	if htmlText == "" {
		return ""
	}
	md, err := htmltomarkdown.ConvertString(htmlText)
	if err != nil {
		return htmlText
	}
	return md
}

// PixivUserHandler previews creator profile links.
type PixivUserHandler struct {
	Client discord.Client
	Source PixivSource
}

func (h *PixivUserHandler) Match(u *url.URL) (string, bool) {
	if !pixivHost(u) {
		return "", false
	}
	if u.Path == "/member.php" {
		if id := u.Query().Get("id"); digitsPattern.MatchString(id) {
			return id, true
		}
		return "", false
	}
	if m := userPathPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	return "", false
}

func (h *PixivUserHandler) Handle(ctx context.Context, ev Event, id string) error {
	user, err := h.Source.UserProfile(ctx, id)
	if err != nil {
		return err
	}

	embed := &discordgo.MessageEmbed{
		Title:       user.Name,
		Description: user.Comment,
		URL:         "https://www.pixiv.net/u/" + user.UserID,
		Color:       pixivColor,
	}
	if user.ImageBig != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.ImageBig}
	}

	_, err = h.Client.SendMessage(ctx, ev.Msg.ChannelID, discord.Payload{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	return err
}
