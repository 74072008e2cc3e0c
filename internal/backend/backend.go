// Package backend turns configuration into the remote store and change
// channel the sync controller runs against. It owns the connections it opens
// and releases them on Close.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pkordes/missionmap/internal/config"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/remote"
	"github.com/pkordes/missionmap/internal/remote/pgstore"
	"github.com/pkordes/missionmap/internal/remote/redisstore"
	"github.com/pkordes/missionmap/internal/remote/s3store"
)

// Backend is the opened remote side. Store and Channel are nil when the
// corresponding part is not configured.
type Backend struct {
	Store   remote.Store
	Channel remote.Channel

	pool  *pgxpool.Pool
	redis *redis.Client
}

// Open connects the configured backend and channel. A redis channel also
// announces every successful upsert, whatever store it is paired with.
//
// local supplies the remote credential when the configuration carries none.
func Open(ctx context.Context, cfg config.Config, local localstore.Store, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{}
	if err := b.open(ctx, cfg, local, log); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) open(ctx context.Context, cfg config.Config, local localstore.Store, log *slog.Logger) error {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := b.postgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		b.Store = pgstore.New(pool)

	case config.BackendRedis:
		client, err := b.redisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		b.Store = redisstore.New(client)

	case config.BackendS3:
		secret, err := s3Secret(ctx, cfg.S3, local)
		if err != nil {
			return err
		}
		st, err := s3store.New(s3store.Options{
			Endpoint:  cfg.S3.Endpoint,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: secret,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return fmt.Errorf("backend.Open: %w", err)
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("backend.Open: %w", err)
		}
		b.Store = st
	}

	switch cfg.Channel {
	case config.ChannelPostgres:
		pool, err := b.postgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		b.Channel = pgstore.NewChannel(pool, log)

	case config.ChannelRedis:
		client, err := b.redisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		b.Channel = redisstore.NewChannel(client, log)
		if b.Store != nil {
			b.Store = remote.Notifying(b.Store, redisstore.New(client), log)
		}
	}

	log.InfoContext(ctx, "remote backend ready", "backend", cfg.Backend, "channel", cfg.Channel)
	return nil
}

// postgres migrates the schema and opens the pool once.
func (b *Backend) postgres(ctx context.Context, databaseURL string, log *slog.Logger) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	if err := pgstore.Migrate(ctx, databaseURL, log); err != nil {
		return nil, fmt.Errorf("backend.Open: %w", err)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("backend.Open: postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("backend.Open: postgres ping: %w", err)
	}
	b.pool = pool
	return pool, nil
}

func (b *Backend) redisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := redisstore.Connect(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("backend.Open: %w", err)
	}
	b.redis = client
	return client, nil
}

// s3Secret prefers the configured secret and falls back to the credential
// stored on this device.
func s3Secret(ctx context.Context, cfg config.S3Config, local localstore.Store) (string, error) {
	if cfg.SecretKey != "" {
		return cfg.SecretKey, nil
	}
	if local != nil {
		stored, err := local.Get(ctx, localstore.KeyCredential)
		if err != nil {
			return "", fmt.Errorf("backend.Open: read stored credential: %w", err)
		}
		if stored = strings.TrimSpace(stored); stored != "" {
			return stored, nil
		}
	}
	return "", fmt.Errorf("backend.Open: %w: set S3_SECRET_KEY or store one with `missionctl credential set`", remote.ErrAuth)
}

// Close releases every connection Open made. It is safe on a nil Backend.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
		b.redis = nil
	}
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	return errors.Join(errs...)
}
