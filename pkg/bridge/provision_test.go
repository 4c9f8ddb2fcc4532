package bridge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prismbot/prism/pkg/discord"
)

// fakeClient counts webhook creations and fails on demand.
type fakeClient struct {
	discord.Client

	mu        sync.Mutex
	creates   int
	createErr error
}

func (f *fakeClient) CreateWebhook(_ context.Context, channelID, name string) (discord.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return discord.Webhook{}, f.createErr
	}
	return discord.Webhook{
		ID:    fmt.Sprintf("wh-%s-%d", channelID, f.creates),
		Token: "tok-" + channelID,
	}, nil
}

func (f *fakeClient) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func newTestProvisioner(t *testing.T, client discord.Client) (*Provisioner, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "registry.json"))
	return NewProvisioner(client, store, "prism bridge"), store
}

func TestGetOrCreate_CachedHandleSkipsPlatform(t *testing.T) {
	client := &fakeClient{}
	p, _ := newTestProvisioner(t, client)

	state := NewState()
	cached := discord.Webhook{ID: "existing", Token: "secret"}
	state.Webhooks["c1"] = cached

	got, err := p.GetOrCreate(context.Background(), state, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != cached {
		t.Errorf("hook = %+v, want cached handle unchanged", got)
	}
	if client.creates != 0 {
		t.Errorf("creates = %d, want 0", client.creates)
	}
}

func TestGetOrCreate_SequentialIdempotence(t *testing.T) {
	client := &fakeClient{}
	p, store := newTestProvisioner(t, client)

	state := NewState()
	first, err := p.GetOrCreate(context.Background(), state, "c1")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := p.GetOrCreate(context.Background(), state, "c1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first != second {
		t.Errorf("handles differ: %+v vs %+v", first, second)
	}
	if client.creates != 1 {
		t.Errorf("creates = %d, want exactly 1", client.creates)
	}

	// The registry on disk carries the handle.
	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Webhooks["c1"] != first {
		t.Errorf("persisted hook = %+v, want %+v", reloaded.Webhooks["c1"], first)
	}
}

func TestGetOrCreate_PlatformFailureSurfaces(t *testing.T) {
	client := &fakeClient{createErr: errors.New("missing permission")}
	p, store := newTestProvisioner(t, client)

	state := NewState()
	_, err := p.GetOrCreate(context.Background(), state, "c1")
	if err == nil {
		t.Fatal("expected error")
	}

	// Nothing gets persisted on failure.
	reloaded, loadErr := store.Load()
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if len(reloaded.Webhooks) != 0 {
		t.Errorf("unexpected persisted webhooks: %+v", reloaded.Webhooks)
	}
}

func TestGetOrCreate_ConcurrentCallersConvergeOnOneHandle(t *testing.T) {
	client := &fakeClient{}
	p, store := newTestProvisioner(t, client)
	state := NewState()

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.GetOrCreate(context.Background(), state, "c1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	// Callers in the check-then-create window may each create a webhook;
	// the registry still ends up with exactly one entry for the channel.
	if client.createCount() < 1 || client.createCount() > callers {
		t.Errorf("creates = %d, want between 1 and %d", client.createCount(), callers)
	}
	if _, ok := state.Webhook("c1"); !ok {
		t.Fatal("no webhook recorded for c1")
	}
	if len(state.Webhooks) != 1 {
		t.Errorf("registry has %d entries, want 1", len(state.Webhooks))
	}

	// Saves interleave too, so the persisted handle may be any of the
	// created ones. It is still exactly one valid handle for the channel.
	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Webhooks) != 1 {
		t.Fatalf("persisted registry has %d entries, want 1", len(reloaded.Webhooks))
	}
	if got := reloaded.Webhooks["c1"]; got.Token != "tok-c1" {
		t.Errorf("persisted hook = %+v, want a handle for c1", got)
	}
}
