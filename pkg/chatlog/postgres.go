package chatlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
create table if not exists chat_messages (
  id          uuid primary key,
  channel     text not null,
  author      text not null,
  host        text not null,
  action      text not null,
  body        text not null,
  received_at timestamptz not null
);
create index if not exists chat_messages_channel_received_at on chat_messages (channel, received_at);`

// Open connects to dsn, makes sure the table exists and returns a Sink
// writing through the pool. The caller closes the pool after Run returns.
func Open(ctx context.Context, dsn string, cfg Config, log *slog.Logger) (*Sink, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open chat log pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping chat log database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create chat log schema: %w", err)
	}

	sink, err := newSink(pool, cfg, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	return sink, pool, nil
}
