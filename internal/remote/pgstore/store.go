// Package pgstore is the Postgres remote backend: one row per sync identity in
// sync_documents, with a trigger that NOTIFYs listeners on every write.
// It holds SQL, type mapping and error classification, and no sync logic.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting it instead of *pgxpool.Pool lets integration tests pass a
// transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements remote.Store on the sync_documents table.
type Store struct {
	db db
}

var _ remote.Store = (*Store)(nil)

// New constructs a Store backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func New(db db) *Store {
	return &Store{db: db}
}

// Upsert creates or replaces the row for syncID.
func (s *Store) Upsert(ctx context.Context, syncID string, env domain.Envelope) error {
	const q = `
		INSERT INTO sync_documents (sync_id, payload, revision, writer, updated_at)
		VALUES (@sync_id, @payload, @revision, @writer, @updated_at)
		ON CONFLICT (sync_id) DO UPDATE
		SET payload    = EXCLUDED.payload,
		    revision   = EXCLUDED.revision,
		    writer     = EXCLUDED.writer,
		    updated_at = EXCLUDED.updated_at`

	payload, err := json.Marshal(env.Document)
	if err != nil {
		return fmt.Errorf("pgstore.Store.Upsert: marshal: %w", err)
	}
	updatedAt := env.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	args := pgx.NamedArgs{
		"sync_id":    syncID,
		"payload":    json.RawMessage(payload),
		"revision":   env.Stamp.Revision,
		"writer":     env.Stamp.Writer,
		"updated_at": updatedAt,
	}
	if _, err := s.db.Exec(ctx, q, args); err != nil {
		return fmt.Errorf("pgstore.Store.Upsert: %w", classify(err))
	}
	return nil
}

// Fetch reads the row for syncID.
// Returns domain.ErrNotFound if the identity has never been written.
func (s *Store) Fetch(ctx context.Context, syncID string) (domain.Envelope, error) {
	const q = `
		SELECT payload, revision, writer, updated_at
		FROM sync_documents
		WHERE sync_id = @sync_id`

	row := s.db.QueryRow(ctx, q, pgx.NamedArgs{"sync_id": syncID})
	env, err := scanEnvelope(row)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("pgstore.Store.Fetch: %w", classify(err))
	}
	return env, nil
}

// scanEnvelope maps a sync_documents row into a domain.Envelope.
func scanEnvelope(row pgx.Row) (domain.Envelope, error) {
	var (
		env       domain.Envelope
		payload   []byte
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&payload, &env.Stamp.Revision, &env.Stamp.Writer, &updatedAt); err != nil {
		return domain.Envelope{}, err
	}
	if err := json.Unmarshal(payload, &env.Document); err != nil {
		return domain.Envelope{}, fmt.Errorf("decode payload: %w", err)
	}
	if updatedAt.Valid {
		env.UpdatedAt = updatedAt.Time.UTC()
	}
	return env, nil
}

// classify maps driver errors onto the remote error taxonomy.
func classify(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "28000", pgErr.Code == "28P01", pgErr.Code == "42501":
			return fmt.Errorf("%w: %w", remote.ErrAuth, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "53"), strings.HasPrefix(pgErr.Code, "57"):
			return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
	}
	return err
}
