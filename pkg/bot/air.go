package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/logger"
	"github.com/prismbot/prism/pkg/providers/kakao"
)

// Banded thresholds for the particulate readings, upper bound exclusive.
var (
	pm10Stops = []int{30, 80, 150}
	pm25Stops = []int{15, 35, 75}

	bandNames = []string{"good", "moderate", "bad", "very bad"}
)

func (b *Bot) handleAir(ctx context.Context, msg *discordgo.Message, query string) {
	if query == "" {
		b.say(ctx, msg.ChannelID, ":x: Tell me a location.")
		return
	}

	location, err := b.opts.Kakao.SearchLocation(ctx, query)
	if err != nil {
		if errors.Is(err, kakao.ErrLocationNotFound) {
			b.say(ctx, msg.ChannelID, ":x: I couldn't find that address.")
			return
		}
		logger.ErrorCF("bot", "Geocoding failed", map[string]any{"error": err.Error()})
		b.say(ctx, msg.ChannelID, serverErrorReply)
		return
	}

	status, err := b.opts.Air.Fetch(ctx, location.Lat, location.Lng)
	if err != nil {
		logger.ErrorCF("bot", "Air quality fetch failed", map[string]any{"error": err.Error()})
		b.say(ctx, msg.ChannelID, serverErrorReply)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Readings from **%s**, the station nearest **%s**. (%s)\n\n",
		status.StationName, location.Name, status.Time)
	fmt.Fprintf(&sb, "PM10 (㎍/㎥): %s\n", formatParticulate(status.Data["pm10"], pm10Stops))
	fmt.Fprintf(&sb, "PM2.5 (㎍/㎥): %s", formatParticulate(status.Data["pm2.5"], pm25Stops))
	b.say(ctx, msg.ChannelID, sb.String())
}

// formatParticulate renders the recent trail of readings with the current
// value bolded and banded: "12 → 14 → **18** (good)".
func formatParticulate(values []string, stops []int) string {
	if len(values) == 0 {
		return "(no data)"
	}

	current, err := strconv.Atoi(values[len(values)-1])
	if err != nil {
		return "(no data)"
	}

	band := 0
	for band < len(stops) && stops[band] <= current {
		band++
	}

	start := len(values) - 6
	if start < 0 {
		start = 0
	}
	var parts []string
	for _, v := range values[start : len(values)-1] {
		parts = append(parts, v+" →")
	}
	parts = append(parts, fmt.Sprintf("**%d** (%s)", current, bandNames[band]))
	return strings.Join(parts, " ")
}
