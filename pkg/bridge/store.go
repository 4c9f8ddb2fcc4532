package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prismbot/prism/pkg/discord"
)

// StorageError marks the registry file as present but unusable. It is fatal
// at startup: replacing a corrupt registry silently would drop every
// existing link and orphan every provisioned webhook.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("registry %s unusable: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store persists the registry as a single JSON document.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the registry, returning a fresh empty state on first run.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, &StorageError{Path: st.path, Err: err}
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, &StorageError{Path: st.path, Err: err}
	}
	if state.LinkedChannels == nil {
		state.LinkedChannels = map[string][]string{}
	}
	if state.Webhooks == nil {
		state.Webhooks = map[string]discord.Webhook{}
	}
	return state, nil
}

// Save overwrites the registry document with owner-only permissions.
// Failures surface to the caller; the in-memory state already changed and
// claiming success would lie about durability.
func (st *Store) Save(state *State) error {
	state.mu.Lock()
	data, err := json.Marshal(state)
	state.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(st.path, data, 0o600)
}
