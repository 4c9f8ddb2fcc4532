package unfurl

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/bridge"
)

type stubHandler struct {
	claims string
	calls  int
	err    error
}

func (s *stubHandler) Match(u *url.URL) (string, bool) {
	if u.Host == s.claims {
		return "arg", true
	}
	return "", false
}

func (s *stubHandler) Handle(context.Context, Event, string) error {
	s.calls++
	return s.err
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func testEvent() Event {
	return Event{
		State: bridge.NewState(),
		Msg: &discordgo.Message{
			ChannelID: "ch1",
			Author:    &discordgo.User{ID: "u1", Username: "someone"},
		},
	}
}

func TestTryUnfurl_FirstMatchWins(t *testing.T) {
	first := &stubHandler{claims: "both.example"}
	second := &stubHandler{claims: "both.example"}

	d := NewDispatcher()
	d.Register(first)
	d.Register(second)

	matched, err := d.TryUnfurl(context.Background(), testEvent(), mustURL(t, "https://both.example/x"))
	if err != nil || !matched {
		t.Fatalf("matched = %v, err = %v", matched, err)
	}
	if first.calls != 1 || second.calls != 0 {
		t.Errorf("calls = %d/%d, want only the earlier registration to run", first.calls, second.calls)
	}
}

func TestTryUnfurl_NoMatch(t *testing.T) {
	d := NewDispatcher()
	d.Register(&stubHandler{claims: "a.example"})

	matched, err := d.TryUnfurl(context.Background(), testEvent(), mustURL(t, "https://b.example/x"))
	if matched || err != nil {
		t.Fatalf("matched = %v, err = %v, want clean no-match", matched, err)
	}
}

func TestTryUnfurl_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	d := NewDispatcher()
	d.Register(&stubHandler{claims: "a.example", err: boom})

	matched, err := d.TryUnfurl(context.Background(), testEvent(), mustURL(t, "https://a.example/x"))
	if !matched || !errors.Is(err, boom) {
		t.Fatalf("matched = %v, err = %v", matched, err)
	}
}

func TestPixivIllustHandler_Match(t *testing.T) {
	h := &PixivIllustHandler{}
	cases := []struct {
		url  string
		arg  string
		ok   bool
	}{
		{"https://www.pixiv.net/i/92339056", "92339056", true},
		{"https://pixiv.net/i/1", "1", true},
		{"https://www.pixiv.net/member_illust.php?mode=medium&illust_id=123", "123", true},
		{"https://www.pixiv.net/member_illust.php?illust_id=abc", "", false},
		{"https://www.pixiv.net/i/12/extra", "", false},
		{"https://www.pixiv.net/u/11", "", false},
		{"https://example.com/i/1", "", false},
	}
	for _, tc := range cases {
		arg, ok := h.Match(mustURL(t, tc.url))
		if arg != tc.arg || ok != tc.ok {
			t.Errorf("Match(%s) = (%q, %v), want (%q, %v)", tc.url, arg, ok, tc.arg, tc.ok)
		}
	}
}

func TestPixivUserHandler_Match(t *testing.T) {
	h := &PixivUserHandler{}
	cases := []struct {
		url string
		arg string
		ok  bool
	}{
		{"https://www.pixiv.net/u/11", "11", true},
		{"https://www.pixiv.net/member.php?id=42", "42", true},
		{"https://www.pixiv.net/i/11", "", false},
		{"https://ncode.syosetu.com/u/11", "", false},
	}
	for _, tc := range cases {
		arg, ok := h.Match(mustURL(t, tc.url))
		if arg != tc.arg || ok != tc.ok {
			t.Errorf("Match(%s) = (%q, %v), want (%q, %v)", tc.url, arg, ok, tc.arg, tc.ok)
		}
	}
}

func TestSyosetuHandler_Match(t *testing.T) {
	h := &SyosetuHandler{}
	cases := []struct {
		url string
		arg string
		ok  bool
	}{
		{"https://ncode.syosetu.com/n4830bu/", "n4830bu", true},
		{"https://ncode.syosetu.com/n4830bu/12/", "n4830bu", true},
		{"https://ncode.syosetu.com/about/", "", false},
		{"https://www.pixiv.net/n4830bu/", "", false},
	}
	for _, tc := range cases {
		arg, ok := h.Match(mustURL(t, tc.url))
		if arg != tc.arg || ok != tc.ok {
			t.Errorf("Match(%s) = (%q, %v), want (%q, %v)", tc.url, arg, ok, tc.arg, tc.ok)
		}
	}
}
