package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/pkordes/missionmap/internal/domain"
)

// SQLite stores every key in a single table of an on-device SQLite file.
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path.
// The parent directory is created when missing.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLite, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("localstore.OpenSQLite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("localstore.OpenSQLite: %w", err)
	}
	// One writer at a time; the snapshot is always rewritten whole.
	db.SetMaxOpenConns(1)

	const schema = `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore.OpenSQLite: schema: %w", err)
	}
	return &SQLite{db: db, log: log}, nil
}

// LoadSnapshot reads and decodes the snapshot key.
func (s *SQLite) LoadSnapshot(ctx context.Context) (domain.Envelope, bool) {
	raw, err := s.Get(ctx, KeySnapshot)
	if err != nil {
		s.log.WarnContext(ctx, "local snapshot unreadable", "error", err)
		return domain.Envelope{}, false
	}
	if raw == "" {
		return domain.Envelope{}, false
	}
	env, err := domain.DecodeEnvelope([]byte(raw))
	if err != nil {
		s.log.WarnContext(ctx, "local snapshot corrupt, ignoring", "error", err)
		return domain.Envelope{}, false
	}
	return env, true
}

// SaveSnapshot writes the whole envelope under the snapshot key.
func (s *SQLite) SaveSnapshot(ctx context.Context, env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("localstore.SQLite.SaveSnapshot: %w", err)
	}
	if err := s.Set(ctx, KeySnapshot, string(b)); err != nil {
		return fmt.Errorf("localstore.SQLite.SaveSnapshot: %w", err)
	}
	return nil
}

// Get returns the value under key, or "" when the key was never written.
func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("localstore.SQLite.Get %s: %w: %w", key, ErrUnavailable, err)
	}
	return v, nil
}

// Set upserts key.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("localstore.SQLite.Set %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
