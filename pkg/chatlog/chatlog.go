// Package chatlog persists chat traffic to Postgres in batches.
package chatlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chatat/pkg/bus"
	"chatat/pkg/twitch"
)

const dropLogEvery = 100

const insertRow = `
insert into chat_messages (id, channel, author, host, action, body, received_at)
values ($1, $2, $3, $4, $5, $6, $7)
on conflict (id) do nothing`

// Config controls batching.
type Config struct {
	MaxBatch     int
	FlushEvery   time.Duration
	ChanBuffer   int
	FlushTimeout time.Duration
}

// Row is one logged chat line.
type Row struct {
	ID         uuid.UUID
	Channel    string
	Author     string
	Host       string
	Action     string
	Body       string
	ReceivedAt time.Time
}

// NewRow stamps msg with a fresh id and the receive time.
func NewRow(msg twitch.Message, at time.Time) Row {
	return Row{
		ID:         uuid.New(),
		Channel:    msg.Channel.Name(),
		Author:     msg.Author,
		Host:       msg.Host,
		Action:     msg.Action.String(),
		Body:       msg.Body,
		ReceivedAt: at.UTC(),
	}
}

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Sink queues rows without blocking the publisher and writes them with
// pgx.Batch from Run.
type Sink struct {
	input   chan Row
	cfg     Config
	sender  batchSender
	log     *slog.Logger
	now     func() time.Time
	dropped atomic.Uint64
	written atomic.Uint64
}

func newSink(sender batchSender, cfg Config, log *slog.Logger) (*Sink, error) {
	if sender == nil {
		return nil, errors.New("batch sender is required")
	}
	if cfg.MaxBatch <= 0 || cfg.FlushEvery <= 0 || cfg.ChanBuffer <= 0 || cfg.FlushTimeout <= 0 {
		return nil, fmt.Errorf("invalid chat log batching %+v", cfg)
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sink{
		input:  make(chan Row, cfg.ChanBuffer),
		cfg:    cfg,
		sender: sender,
		log:    log.With("component", "chatlog"),
		now:    time.Now,
	}, nil
}

// Install subscribes the sink to inbound chat messages.
func (s *Sink) Install(b *bus.Bus) bus.Subscription {
	return b.Subscribe(bus.TopicMessage, func(_ context.Context, payload any) error {
		msg, ok := payload.(twitch.Message)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", bus.TopicMessage, payload)
		}
		s.Enqueue(msg)
		return nil
	})
}

// Enqueue reports false when the buffer is full and the message was dropped.
func (s *Sink) Enqueue(msg twitch.Message) bool {
	select {
	case s.input <- NewRow(msg, s.now()):
		return true
	default:
		dropped := s.dropped.Add(1)
		if dropped%dropLogEvery == 0 {
			s.log.Warn("Chat log queue full", "dropped", dropped)
		}
		return false
	}
}

func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Written counts rows handed to the database, successful or not.
func (s *Sink) Written() uint64 {
	return s.written.Load()
}

// Run flushes on size or interval until ctx is done, then drains what is
// queued and flushes once more.
func (s *Sink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FlushEvery)
	defer ticker.Stop()

	batch := &pgx.Batch{}
	flush := func() {
		if batch.Len() == 0 {
			return
		}
		s.flush(batch)
		batch = &pgx.Batch{}
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row := <-s.input:
					queueRow(batch, row)
				default:
					flush()
					s.log.Info("Chat log stopped", "written", s.Written(), "dropped", s.Dropped())
					return nil
				}
			}
		case <-ticker.C:
			flush()
		case row := <-s.input:
			queueRow(batch, row)
			if batch.Len() >= s.cfg.MaxBatch {
				flush()
			}
		}
	}
}

func (s *Sink) flush(batch *pgx.Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
	defer cancel()

	results := s.sender.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		s.log.Error("Chat log flush failed", "rows", batch.Len(), "error", err)
	}
	s.written.Add(uint64(batch.Len()))
}

func queueRow(batch *pgx.Batch, row Row) {
	batch.Queue(insertRow, row.ID, row.Channel, row.Author, row.Host, row.Action, row.Body, row.ReceivedAt)
}
