package chatlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"
)

type stubSender struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
	err     error
}

type stubBatchResults struct{ err error }

func (s *stubSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, append([]*pgx.QueuedQuery(nil), b.QueuedQueries...))
	return &stubBatchResults{err: s.err}
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *stubSender) rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, batch := range s.batches {
		n += len(batch)
	}
	return n
}

func (s *stubBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, s.err }
func (s *stubBatchResults) Query() (pgx.Rows, error)         { return nil, s.err }
func (s *stubBatchResults) QueryRow() pgx.Row                { return nil }
func (s *stubBatchResults) Close() error                     { return s.err }

var channels = twitch.NewRegistry()

func chatMessage(body string) twitch.Message {
	return twitch.FromRaw("alice", "alice@alice.tmi.twitch.tv", twitch.ActionPrivmsg, channels.Intern("bob"), body)
}

func startSink(t *testing.T, sender *stubSender, cfg Config) (*Sink, func()) {
	t.Helper()

	sink, err := newSink(sender, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sink.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	return sink, stop
}

func TestNewSinkValidatesConfig(t *testing.T) {
	_, err := newSink(nil, Config{MaxBatch: 1, FlushEvery: time.Second, ChanBuffer: 1, FlushTimeout: time.Second}, nil)
	require.Error(t, err)

	_, err = newSink(&stubSender{}, Config{}, nil)
	require.Error(t, err)
}

func TestSinkFlushesOnMaxBatch(t *testing.T) {
	sender := &stubSender{}
	sink, _ := startSink(t, sender, Config{MaxBatch: 2, FlushEvery: time.Hour, ChanBuffer: 10, FlushTimeout: time.Second})

	require.True(t, sink.Enqueue(chatMessage("one")))
	require.True(t, sink.Enqueue(chatMessage("two")))

	require.Eventually(t, func() bool { return sender.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	sender.mu.Lock()
	args := sender.batches[0][1].Arguments
	sender.mu.Unlock()
	require.Equal(t, "bob", args[1])
	require.Equal(t, "alice", args[2])
	require.Equal(t, "PRIVMSG", args[4])
	require.Equal(t, "two", args[5])
}

func TestSinkFlushesOnTimer(t *testing.T) {
	sender := &stubSender{}
	sink, _ := startSink(t, sender, Config{MaxBatch: 10, FlushEvery: 20 * time.Millisecond, ChanBuffer: 10, FlushTimeout: time.Second})

	sink.Enqueue(chatMessage("hello"))

	require.Eventually(t, func() bool { return sender.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.EqualValues(t, 1, sink.Written())
}

func TestSinkDrainsOnStop(t *testing.T) {
	sender := &stubSender{}
	sink, err := newSink(sender, Config{MaxBatch: 100, FlushEvery: time.Hour, ChanBuffer: 10, FlushTimeout: time.Second}, nil)
	require.NoError(t, err)

	for range 3 {
		sink.Enqueue(chatMessage("queued"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sink.Run(ctx))

	require.Equal(t, 1, sender.count())
	require.Equal(t, 3, sender.rows())
}

func TestSinkDropsWhenFull(t *testing.T) {
	sink, err := newSink(&stubSender{}, Config{MaxBatch: 10, FlushEvery: time.Hour, ChanBuffer: 1, FlushTimeout: time.Second}, nil)
	require.NoError(t, err)

	require.True(t, sink.Enqueue(chatMessage("kept")))
	require.False(t, sink.Enqueue(chatMessage("dropped")))
	require.EqualValues(t, 1, sink.Dropped())
}

func TestSinkSurvivesFlushErrors(t *testing.T) {
	sender := &stubSender{err: errors.New("connection reset")}
	sink, stop := startSink(t, sender, Config{MaxBatch: 1, FlushEvery: time.Hour, ChanBuffer: 10, FlushTimeout: time.Second})

	sink.Enqueue(chatMessage("a"))
	sink.Enqueue(chatMessage("b"))
	require.Eventually(t, func() bool { return sender.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	stop()
	require.EqualValues(t, 2, sink.Written())
}

func TestInstallLogsBusMessages(t *testing.T) {
	b := bus.New(nil)
	defer b.Close()

	sender := &stubSender{}
	sink, stop := startSink(t, sender, Config{MaxBatch: 100, FlushEvery: time.Hour, ChanBuffer: 10, FlushTimeout: time.Second})
	sink.Install(b)

	b.Publish(context.Background(), bus.TopicMessage, chatMessage("via bus"))
	b.Publish(context.Background(), bus.TopicMessage, "not a message")
	stop()

	require.Equal(t, 1, sender.rows())
}

func TestNewRow(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	row := NewRow(chatMessage("hi"), at)

	require.NotEqual(t, row.ID, NewRow(chatMessage("hi"), at).ID)
	require.Equal(t, time.UTC, row.ReceivedAt.Location())
	require.Equal(t, "alice@alice.tmi.twitch.tv", row.Host)
}
