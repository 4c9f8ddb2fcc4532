package link

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/discord"
)

func runLink(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewLinkCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestLinkAddAndList(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("PRISM_DATA_DIR", dataDir)

	out := runLink(t, "add", "chan-a", "chan-b", "chan-c")
	assert.Contains(t, out, "chan-a")
	assert.Contains(t, out, "2 new")

	// Duplicate targets are not re-added.
	out = runLink(t, "add", "chan-a", "chan-b")
	assert.Contains(t, out, "0 new")

	out = runLink(t, "list")
	assert.Contains(t, out, "chan-a -> [chan-b chan-c]")
	assert.Contains(t, out, "0 webhook(s) provisioned")

	state, err := bridge.NewStore(filepath.Join(dataDir, "registry.json")).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"chan-b", "chan-c"}, state.LinkedTargets("chan-a"))
}

func TestLinkList_Empty(t *testing.T) {
	t.Setenv("PRISM_DATA_DIR", t.TempDir())

	out := runLink(t, "list")
	assert.Contains(t, out, "No channel links configured.")
}

func TestLinkList_NeverPrintsWebhookSecrets(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("PRISM_DATA_DIR", dataDir)

	store := bridge.NewStore(filepath.Join(dataDir, "registry.json"))
	state := bridge.NewState()
	state.AddLink("chan-a", "chan-b")
	state.Webhooks["chan-b"] = discord.Webhook{ID: "hook-id-123", Token: "hook-token-456"}
	require.NoError(t, store.Save(state))

	out := runLink(t, "list")
	assert.Contains(t, out, "1 webhook(s) provisioned")
	assert.NotContains(t, out, "hook-id-123")
	assert.NotContains(t, out, "hook-token-456")
}
