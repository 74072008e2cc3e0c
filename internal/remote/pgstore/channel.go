package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// notifyChannel is the Postgres NOTIFY channel raised by the
// sync_documents trigger. Its payload is the sync_id that changed.
const notifyChannel = "sync_documents"

// reconnectDelay is how long a listener waits before re-establishing a
// dropped LISTEN connection.
const reconnectDelay = 2 * time.Second

// Channel implements remote.Channel with LISTEN/NOTIFY. Each subscription
// holds one pooled connection for its lifetime and resolves notifications by
// fetching the changed row.
type Channel struct {
	pool  *pgxpool.Pool
	store *Store
	log   *slog.Logger
}

var _ remote.Channel = (*Channel)(nil)

// NewChannel constructs a Channel. The pool must allow at least one more
// connection than the Store needs.
func NewChannel(pool *pgxpool.Pool, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{pool: pool, store: New(pool), log: log}
}

type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts listening. The first LISTEN is established synchronously so
// that configuration errors surface to the caller.
func (c *Channel) Subscribe(ctx context.Context, syncID string, fn func(domain.Envelope)) (remote.Subscription, error) {
	conn, err := c.listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore.Channel.Subscribe: %w", classify(err))
	}

	subCtx, cancel := context.WithCancel(context.Background())
	l := &listener{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(l.done)
		c.run(subCtx, conn, syncID, fn)
	}()
	return l, nil
}

// listen acquires a dedicated connection and issues LISTEN on it.
func (c *Channel) listen(ctx context.Context) (*pgx.Conn, error) {
	pooled, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	// The connection carries LISTEN state for its whole life, so it is taken
	// out of the pool rather than returned to it.
	conn := pooled.Hijack()
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, err
	}
	return conn, nil
}

func (c *Channel) run(ctx context.Context, conn *pgx.Conn, syncID string, fn func(domain.Envelope)) {
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.Warn("change listener dropped, reconnecting", "sync_id", syncID, "error", err)
			conn.Close(context.Background())
			conn = c.reconnect(ctx)
			if conn == nil {
				return
			}
			// Writes made while disconnected were not announced to us.
			c.deliver(ctx, syncID, fn)
			continue
		}
		if n.Payload != syncID {
			continue
		}
		c.deliver(ctx, syncID, fn)
	}
}

func (c *Channel) reconnect(ctx context.Context) *pgx.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
		conn, err := c.listen(ctx)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("change listener reconnect failed", "error", err)
	}
}

func (c *Channel) deliver(ctx context.Context, syncID string, fn func(domain.Envelope)) {
	env, err := c.store.Fetch(ctx, syncID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && ctx.Err() == nil {
			c.log.Warn("change fetch failed", "sync_id", syncID, "error", err)
		}
		return
	}
	fn(env)
}

// Unsubscribe stops the listener and closes its connection.
func (l *listener) Unsubscribe() {
	l.once.Do(func() {
		l.cancel()
		<-l.done
	})
}
