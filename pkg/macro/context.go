package macro

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"

	"github.com/tidwall/gjson"
)

// ErrHelixUnavailable is returned by Context.Helix when no app credentials were configured.
var ErrHelixUnavailable = errors.New("helix client is not configured")

// Publisher is the part of the event bus macros may use.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) bool
}

// HelixClient is the metadata API capability handed to macros.
type HelixClient interface {
	Get(ctx context.Context, endpoint string, query url.Values) (gjson.Result, error)
}

// Context is what every macro receives alongside the message.
type Context struct {
	publisher Publisher
	helix     HelixClient
	author    string
	log       *slog.Logger
}

// NewContext builds a dispatcher context. helix may be nil; author is used as
// the sender of replies.
func NewContext(publisher Publisher, helix HelixClient, author string, log *slog.Logger) *Context {
	if log == nil {
		log = slog.Default()
	}

	return &Context{
		publisher: publisher,
		helix:     helix,
		author:    author,
		log:       log.With("component", "macro"),
	}
}

func (c *Context) Publish(ctx context.Context, topic string, payload any) bool {
	if c.publisher == nil {
		return false
	}

	return c.publisher.Publish(ctx, topic, payload)
}

// Reply publishes a chat message to the channel msg arrived on.
func (c *Context) Reply(ctx context.Context, msg twitch.Message, body string) bool {
	return c.Publish(ctx, bus.TopicSend, twitch.FromLocal(msg.Channel, c.author, body))
}

func (c *Context) Helix() (HelixClient, error) {
	if c.helix == nil {
		return nil, ErrHelixUnavailable
	}

	return c.helix, nil
}

func (c *Context) Log() *slog.Logger {
	return c.log
}
