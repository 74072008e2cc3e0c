// Package redisstore is the Redis remote backend. Each sync identity owns one
// string key holding the envelope JSON, and writes are announced on a pub/sub
// channel named after the identity.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

const keyPrefix = "missionmap:"

func docKey(syncID string) string     { return keyPrefix + "doc:" + syncID }
func changesKey(syncID string) string { return keyPrefix + "changes:" + syncID }

// Connect parses redisURL, opens a client and checks it with PING.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redisstore.Connect: parse url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore.Connect: %w", classify(err))
	}
	return client, nil
}

// Store implements remote.Store and remote.Publisher.
type Store struct {
	client *redis.Client
}

var (
	_ remote.Store     = (*Store)(nil)
	_ remote.Publisher = (*Store)(nil)
)

// New wraps an existing client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Upsert(ctx context.Context, syncID string, env domain.Envelope) error {
	b, err := encode(env)
	if err != nil {
		return fmt.Errorf("redisstore.Store.Upsert: %w", err)
	}
	if err := s.client.Set(ctx, docKey(syncID), b, 0).Err(); err != nil {
		return fmt.Errorf("redisstore.Store.Upsert: %w", classify(err))
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, syncID string) (domain.Envelope, error) {
	b, err := s.client.Get(ctx, docKey(syncID)).Bytes()
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("redisstore.Store.Fetch: %w", classify(err))
	}
	env, err := domain.DecodeEnvelope(b)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("redisstore.Store.Fetch: %w", err)
	}
	return env, nil
}

// Publish sends the whole envelope, so subscribers need no follow-up read.
func (s *Store) Publish(ctx context.Context, syncID string, env domain.Envelope) error {
	b, err := encode(env)
	if err != nil {
		return fmt.Errorf("redisstore.Store.Publish: %w", err)
	}
	if err := s.client.Publish(ctx, changesKey(syncID), b).Err(); err != nil {
		return fmt.Errorf("redisstore.Store.Publish: %w", classify(err))
	}
	return nil
}

func encode(env domain.Envelope) ([]byte, error) {
	if env.UpdatedAt.IsZero() {
		env.UpdatedAt = time.Now().UTC()
	}
	return json.Marshal(env)
}

// classify maps client errors onto the remote error taxonomy.
func classify(err error) error {
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") || strings.HasPrefix(msg, "NOPERM") {
		return fmt.Errorf("%w: %w", remote.ErrAuth, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded) ||
		strings.HasPrefix(msg, "LOADING") {
		return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
	}
	return err
}
