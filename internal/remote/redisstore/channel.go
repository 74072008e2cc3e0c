package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// Channel implements remote.Channel over Redis pub/sub.
type Channel struct {
	client *redis.Client
	log    *slog.Logger
}

var _ remote.Channel = (*Channel)(nil)

// NewChannel constructs a Channel on client.
func NewChannel(client *redis.Client, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	return &Channel{client: client, log: log}
}

type subscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

// Subscribe waits for the server to confirm the subscription before
// returning, so nothing published afterwards is missed. go-redis
// resubscribes on its own after a dropped connection.
func (c *Channel) Subscribe(ctx context.Context, syncID string, fn func(domain.Envelope)) (remote.Subscription, error) {
	ps := c.client.Subscribe(ctx, changesKey(syncID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("redisstore.Channel.Subscribe: %w", classify(err))
	}

	s := &subscription{ps: ps, done: make(chan struct{})}
	msgs := ps.Channel()
	go func() {
		defer close(s.done)
		for msg := range msgs {
			env, err := domain.DecodeEnvelope([]byte(msg.Payload))
			if err != nil {
				c.log.Warn("undecodable change message", "sync_id", syncID, "error", err)
				continue
			}
			fn(env)
		}
	}()
	return s, nil
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.ps.Close()
		<-s.done
	})
}
