// Package unfurl expands provider URLs into rich previews.
//
// Handlers are consulted in registration order; the first whose matcher
// claims a URL runs, and no later handler sees it. Registration order is a
// deployment decision, not a property of the URLs.
package unfurl

import (
	"context"
	"net/url"

	"github.com/bwmarrin/discordgo"

	"github.com/prismbot/prism/pkg/bridge"
	"github.com/prismbot/prism/pkg/logger"
)

// Event is the triggering message together with the registry state a
// handler may fan out through.
type Event struct {
	State *bridge.State
	Msg   *discordgo.Message
}

// Handler recognizes URLs of one provider route and renders previews for
// them. Match extracts the provider-native identifier (an illust ID, a
// novel code); a foreign URL is simply no match, never an error.
type Handler interface {
	Match(u *url.URL) (arg string, ok bool)
	Handle(ctx context.Context, ev Event, arg string) error
}

// Dispatcher holds the ordered handler list.
type Dispatcher struct {
	handlers []Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends h to the matching order.
func (d *Dispatcher) Register(h Handler) {
	d.handlers = append(d.handlers, h)
}

// TryUnfurl invokes the first handler claiming u. It reports whether any
// handler matched; handler errors propagate untouched to the caller, which
// owns user-facing failure reporting.
func (d *Dispatcher) TryUnfurl(ctx context.Context, ev Event, u *url.URL) (bool, error) {
	for _, h := range d.handlers {
		arg, ok := h.Match(u)
		if !ok {
			continue
		}
		logger.DebugCF("unfurl", "Handler matched", map[string]any{
			"host": u.Host,
			"arg":  arg,
		})
		return true, h.Handle(ctx, ev, arg)
	}
	return false, nil
}
