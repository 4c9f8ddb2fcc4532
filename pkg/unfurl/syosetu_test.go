package unfurl

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/discord"
	"github.com/prismbot/prism/pkg/providers/syosetu"
	"github.com/prismbot/prism/pkg/relay"
)

type fakeWebhookClient struct {
	discord.Client

	mu        sync.Mutex
	delivered map[string][]discord.Payload
}

func (f *fakeWebhookClient) CreateWebhook(_ context.Context, channelID, _ string) (discord.Webhook, error) {
	return discord.Webhook{ID: "wh-" + channelID, Token: "tok"}, nil
}

func (f *fakeWebhookClient) ExecuteWebhook(_ context.Context, hook discord.Webhook, p discord.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[hook.ID[len("wh-"):]] = append(f.delivered[hook.ID[len("wh-"):]], p)
	return nil
}

type fakeNovelSource struct {
	novel syosetu.Novel
}

func (f *fakeNovelSource) Lookup(context.Context, string) (syosetu.Novel, error) {
	return f.novel, nil
}

func TestSyosetuHandler_FansOutWithBorrowedIdentity(t *testing.T) {
	client := &fakeWebhookClient{delivered: map[string][]discord.Payload{}}
	store := bridge.NewStore(filepath.Join(t.TempDir(), "registry.json"))
	exec := relay.NewExecutor(client, bridge.NewProvisioner(client, store, "prism bridge"))

	state := bridge.NewState()
	state.AddLink("ch1", "ch2")

	h := &SyosetuHandler{
		Relay: exec,
		Source: &fakeNovelSource{novel: syosetu.Novel{
			Title:      "novel",
			Ncode:      "n4830bu",
			Writer:     "writer",
			Story:      "story",
			GeneralAll: 12,
			NovelType:  1,
			End:        1,
		}},
	}

	ev := Event{
		State: state,
		Msg: &discordgo.Message{
			ChannelID: "ch1",
			Author:    &discordgo.User{ID: "u1", Username: "someone"},
			Member:    &discordgo.Member{Nick: "nick"},
		},
	}
	if err := h.Handle(context.Background(), ev, "n4830bu"); err != nil {
		t.Fatalf("handle: %v", err)
	}

	for _, ch := range []string{"ch1", "ch2"} {
		got := client.delivered[ch]
		if len(got) != 1 {
			t.Fatalf("channel %s got %d deliveries", ch, len(got))
		}
		p := got[0]
		if p.Username != "nick" {
			t.Errorf("username = %q, want borrowed nickname", p.Username)
		}
		if len(p.Embeds) != 1 || p.Embeds[0].Title != "novel" {
			t.Errorf("embeds = %+v", p.Embeds)
		}
		if p.Embeds[0].Fields[0].Value != "ongoing" {
			t.Errorf("status = %q, want ongoing", p.Embeds[0].Fields[0].Value)
		}
	}
}
