package unfurl

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/providers/syosetu"
	"github.com/prismbot/prism/pkg/relay"
)

var ncodePattern = regexp.MustCompile(`n\d{4}[a-z]{2}`)

// NovelSource resolves an ncode to novel metadata.
type NovelSource interface {
	Lookup(ctx context.Context, ncode string) (syosetu.Novel, error)
}

// SyosetuHandler previews novel links. Unlike the pixiv handlers it fans
// the embed out to the linked channels under the requester's identity, so
// every side of a bridge sees the preview.
type SyosetuHandler struct {
	Relay  *relay.Executor
	Source NovelSource
}

func (h *SyosetuHandler) Match(u *url.URL) (string, bool) {
	if u.Host != "ncode.syosetu.com" {
		return "", false
	}
	if m := ncodePattern.FindString(u.Path); m != "" {
		return m, true
	}
	return "", false
}

func (h *SyosetuHandler) Handle(ctx context.Context, ev Event, ncode string) error {
	novel, err := h.Source.Lookup(ctx, ncode)
	if err != nil {
		return err
	}

	status := "one-shot"
	if novel.Serial() {
		if novel.Finished() {
			status = "completed"
		} else {
			status = "ongoing"
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       novel.Title,
		Description: novel.Story,
		URL:         novel.PageURL(),
		Author: &discordgo.MessageEmbedAuthor{
			Name: novel.Writer,
			URL:  fmt.Sprintf("https://mypage.syosetu.com/%d/", novel.UserID),
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Parts", Value: fmt.Sprintf("%d parts", novel.GeneralAll), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Shousetsuka ni Narou"},
	}

	name, avatarURL := relay.Speaker(ev.Msg)
	destinations := relay.EchoDestinations(ev.State, ev.Msg.ChannelID)
	return h.Relay.Relay(ctx, ev.State, destinations, discord.Payload{
		Username:  name,
		AvatarURL: avatarURL,
		Embeds:    []*discordgo.MessageEmbed{embed},
	})
}
