// Package macro routes inbound chat messages to independently registered handlers.
package macro

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"
)

// Handler reacts to one inbound message.
type Handler func(ctx context.Context, dc *Context, msg twitch.Message) error

// Registrar is the capability extension units receive at load time.
type Registrar interface {
	Register(action twitch.Action, handler Handler)
}

// Extension installs its handlers through the given registrar.
type Extension func(Registrar)

// Stats summarizes one dispatch.
type Stats struct {
	Ran    int
	Failed int
}

// Registry maps actions to ordered handler lists.
type Registry struct {
	dc  *Context
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[twitch.Action][]Handler
}

func NewRegistry(dc *Context, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if dc == nil {
		dc = NewContext(nil, nil, "", log)
	}

	return &Registry{
		dc:       dc,
		log:      log.With("component", "macro.registry"),
		handlers: make(map[twitch.Action][]Handler),
	}
}

// Register appends handler to action's list. Handlers run in registration order.
func (r *Registry) Register(action twitch.Action, handler Handler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = append(r.handlers[action], handler)
}

// Load hands the registry to each extension in turn.
func (r *Registry) Load(extensions ...Extension) *Registry {
	for _, ext := range extensions {
		if ext != nil {
			ext(r)
		}
	}

	return r
}

func (r *Registry) Handlers(action twitch.Action) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[action])
}

// Dispatch runs every handler registered for msg.Action. A failing or
// panicking handler is logged and the next one still runs.
func (r *Registry) Dispatch(ctx context.Context, msg twitch.Message) Stats {
	r.mu.RLock()
	handlers := r.handlers[msg.Action]
	r.mu.RUnlock()

	var stats Stats
	for i, handler := range handlers {
		stats.Ran++
		err := bus.Guard(func() error { return handler(ctx, r.dc, msg) })
		if err != nil {
			stats.Failed++
			r.log.Error("Macro failed", "action", msg.Action.String(), "index", i, "channel", msg.Channel.Name(), "error", err)
		}
	}

	return stats
}

// Install subscribes the registry to inbound messages on b.
func (r *Registry) Install(b *bus.Bus) bus.Subscription {
	return b.Subscribe(bus.TopicMessage, func(ctx context.Context, payload any) error {
		msg, ok := payload.(twitch.Message)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", bus.TopicMessage, payload)
		}

		r.Dispatch(ctx, msg)
		return nil
	})
}
