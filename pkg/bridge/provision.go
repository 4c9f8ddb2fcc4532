package bridge

import (
	"context"
	"fmt"

	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/logger"
)

// Provisioner hands out the webhook for a channel, lazily creating one on
// the platform the first time a channel is targeted.
//
// GetOrCreate is intentionally not serialized across callers: two in-flight
// relays targeting the same unprovisioned channel can both observe "absent"
// and both create a webhook; the second registry write wins and the first
// webhook is orphaned on the platform but stays valid. Last-write-wins
// matches the persisted-registry semantics everywhere else. The individual
// registry reads and writes go through State's lock; only the window
// between them is open.
type Provisioner struct {
	client discord.Client
	store  *Store
	name   string
}

func NewProvisioner(client discord.Client, store *Store, webhookName string) *Provisioner {
	return &Provisioner{client: client, store: store, name: webhookName}
}

// GetOrCreate returns the cached webhook for channelID, or creates one,
// records it in state and persists the whole registry.
func (p *Provisioner) GetOrCreate(ctx context.Context, state *State, channelID string) (discord.Webhook, error) {
	if hook, ok := state.Webhook(channelID); ok {
		return hook, nil
	}

	hook, err := p.client.CreateWebhook(ctx, channelID, p.name)
	if err != nil {
		return discord.Webhook{}, fmt.Errorf("provisioning webhook: %w", err)
	}

	state.SetWebhook(channelID, hook)
	if err := p.store.Save(state); err != nil {
		return discord.Webhook{}, fmt.Errorf("persisting webhook for channel %s: %w", channelID, err)
	}

	logger.InfoCF("bridge", "Webhook provisioned", map[string]any{
		"channel_id": channelID,
	})
	return hook, nil
}
