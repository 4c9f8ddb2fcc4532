// Package relay fans one rendered payload out to a set of destination
// channels through their provisioned webhooks.
package relay

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/logger"
)

type Executor struct {
	client      discord.Client
	provisioner *bridge.Provisioner
}

func NewExecutor(client discord.Client, provisioner *bridge.Provisioner) *Executor {
	return &Executor{client: client, provisioner: provisioner}
}

// EchoDestinations is the target set when a message echoes back into its
// own channel: the source first, then its linked channels.
func EchoDestinations(state *bridge.State, source string) []string {
	return append([]string{source}, state.LinkedTargets(source)...)
}

// Relay delivers p to every destination concurrently, provisioning webhooks
// as needed. The join reports the first failure; deliveries that already
// succeeded are not rolled back and in-flight siblings are not cancelled.
// Nothing is retried.
func (e *Executor) Relay(ctx context.Context, state *bridge.State, destinations []string, p discord.Payload) error {
	var g errgroup.Group
	for _, dest := range destinations {
		g.Go(func() error {
			hook, err := e.provisioner.GetOrCreate(ctx, state, dest)
			if err != nil {
				return fmt.Errorf("channel %s: %w", dest, err)
			}
			if err := e.client.ExecuteWebhook(ctx, hook, p); err != nil {
				return fmt.Errorf("delivering to channel %s: %w", dest, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.ErrorCF("relay", "Fan-out failed", map[string]any{
			"destinations": len(destinations),
			"error":        err.Error(),
		})
		return err
	}

	logger.DebugCF("relay", "Fan-out delivered", map[string]any{
		"destinations": len(destinations),
	})
	return nil
}

// Speaker resolves the borrowed display identity for a relayed message:
// the member's guild nickname when set, the account username otherwise.
func Speaker(msg *discordgo.Message) (name, avatarURL string) {
	name = msg.Author.Username
	if msg.Member != nil && msg.Member.Nick != "" {
		name = msg.Member.Nick
	}
	return name, msg.Author.AvatarURL("")
}
