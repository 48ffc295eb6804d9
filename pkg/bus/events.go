package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 100

// Watch exposes a topic as a buffered channel for consumers that run on their
// own goroutine. Payloads are dropped instead of blocking the publisher when
// the buffer is full. The channel is closed on unsubscribe, ctx cancel or Close.
func (b *Bus) Watch(ctx context.Context, topic string, buffer int) (<-chan any, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan any, buffer)

	select {
	case <-b.done:
		close(ch)
		return ch, func() {}
	default:
	}

	var (
		mu      sync.Mutex
		closed  bool
		dropped atomic.Uint64
	)

	sub := b.Subscribe(topic, func(_ context.Context, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}

		select {
		case ch <- payload:
		default:
			if n := dropped.Add(1); n%100 == 1 {
				b.log.Warn("Watcher is slow, dropping payloads", "topic", topic, "dropped", n)
			}
		}
		return nil
	})

	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			b.Unsubscribe(sub)

			mu.Lock()
			closed = true
			close(ch)
			mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		case <-stop:
			return
		}
		unsubscribe()
	}()

	return ch, unsubscribe
}
