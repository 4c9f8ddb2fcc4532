// Package bridge owns the persisted relay registry: which channels feed
// which, the cached webhook handle per channel, and the optional notice
// channel. The in-memory State is the single source of truth; every
// mutation is followed by a whole-document save.
//
// Relay fan-out touches the registry from one goroutine per destination,
// so State serializes its map access internally. The provisioner's
// check-then-create window stays unsynchronized on purpose; see
// Provisioner.
package bridge

import (
	"sync"

	"github.com/prismbot/prism/pkg/discord"
)

type State struct {
	mu sync.Mutex

	NoticeChannelID string                     `json:"noticeChannelId,omitempty"`
	LinkedChannels  map[string][]string        `json:"linkedChannels"`
	Webhooks        map[string]discord.Webhook `json:"webhooks"`
}

func NewState() *State {
	return &State{
		LinkedChannels: map[string][]string{},
		Webhooks:       map[string]discord.Webhook{},
	}
}

// LinkedTargets returns a copy of the destination list for channelID.
// Channels without links yield an empty slice, never nil.
func (s *State) LinkedTargets(channelID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := s.LinkedChannels[channelID]
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// AddLink records a source → destination edge. Duplicate edges are ignored
// so repeated admin commands stay harmless. There is no removal path.
func (s *State) AddLink(from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.LinkedChannels[from] {
		if existing == to {
			return false
		}
	}
	s.LinkedChannels[from] = append(s.LinkedChannels[from], to)
	return true
}

// Webhook returns the cached handle for channelID.
func (s *State) Webhook(channelID string) (discord.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook, ok := s.Webhooks[channelID]
	return hook, ok
}

// SetWebhook records the handle for channelID, replacing any existing
// entry. Provisioners racing on the same channel all land here; the last
// write wins.
func (s *State) SetWebhook(channelID string, hook discord.Webhook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Webhooks[channelID] = hook
}

// NoticeChannel returns the configured notice channel, empty when unset.
func (s *State) NoticeChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NoticeChannelID
}

// SetNoticeChannel points startup notices at channelID.
func (s *State) SetNoticeChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NoticeChannelID = channelID
}
