package bus

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Handler reacts to one published payload. Returned errors are logged by the
// bus and never reach the publisher or sibling subscribers.
type Handler func(ctx context.Context, payload any) error

type Subscription struct {
	Topic string
	id    uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

type Bus struct {
	subscribers map[string][]subscriber
	nextID      uint64
	log         *slog.Logger

	done      chan struct{}
	closeOnce sync.Once

	mu sync.RWMutex
}

func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}

	return &Bus{
		subscribers: make(map[string][]subscriber),
		log:         log.With("component", "bus"),
		done:        make(chan struct{}),
	}
}

// Subscribe appends handler to the topic's ordered subscriber list. Publishes
// already in flight do not see the new subscriber.
func (b *Bus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscriber{id: b.nextID, handler: handler}
	b.subscribers[topic] = append(slices.Clip(b.subscribers[topic]), sub)

	return Subscription{Topic: topic, id: sub.id}
}

func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.subscribers[sub.Topic]
	idx := slices.IndexFunc(current, func(s subscriber) bool { return s.id == sub.id })
	if idx < 0 {
		return false
	}

	next := slices.Delete(slices.Clone(current), idx, idx+1)
	if len(next) == 0 {
		delete(b.subscribers, sub.Topic)
		return true
	}
	b.subscribers[sub.Topic] = next
	return true
}

// Publish runs every current subscriber of topic in subscription order on the
// caller's goroutine. It returns false when the bus is closed or ctx is done.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-b.done:
		return false
	default:
	}

	b.mu.RLock()
	subs := b.subscribers[topic]
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := Guard(func() error { return sub.handler(ctx, payload) }); err != nil {
			b.log.Error("Subscriber failed", "topic", topic, "subscriber", sub.id, "error", err)
		}
	}

	return true
}

func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

func (b *Bus) Done() <-chan struct{} {
	return b.done
}

func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
	})
}
