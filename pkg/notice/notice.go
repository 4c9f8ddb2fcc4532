// Package notice drains queued announcement files into the configured
// notice channel. Operators drop plain-text files into the notice
// directory; each file becomes one message and is deleted after posting.
package notice

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/logger"
)

// Runner posts pending notices on startup.
type Runner struct {
	client discord.Client
	dir    string
}

func NewRunner(client discord.Client, dir string) *Runner {
	return &Runner{client: client, dir: dir}
}

// RunAll posts every notice file in lexicographic name order, substituting
// @me with a mention of the bot, and removes each file once delivered. A
// delivery failure stops the run and leaves the remaining files queued.
func (r *Runner) RunAll(ctx context.Context, channelID, botUserID string) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(r.dir, name)
		logger.InfoCF("notice", "Posting notice", map[string]any{"file": name})

		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text := strings.ReplaceAll(string(content), "@me", "<@!"+botUserID+">")
		if _, err := r.client.SendMessage(ctx, channelID, discord.Payload{Content: text}); err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
