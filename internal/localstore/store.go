// Package localstore persists the current document snapshot and the small
// amount of per-install state (sync identity, remote credential, device ID)
// on the device running the agent.
//
// Local storage is the durable safety net under the remote mirror: every
// document change is written here before any remote interaction.
package localstore

import (
	"context"
	"errors"

	"github.com/pkordes/missionmap/internal/domain"
)

// Keys under which values are stored. Each holds one string value.
const (
	KeySnapshot   = "snapshot"
	KeyCredential = "remote_credential"
	KeySyncID     = "sync_id"
	KeyDeviceID   = "device_id"
)

// ErrUnavailable is returned when the underlying storage cannot be read or
// written (disk full, file locked, store closed).
var ErrUnavailable = errors.New("local storage unavailable")

// Store is the on-device key-value persistence used by the sync controller.
type Store interface {
	// LoadSnapshot returns the last saved envelope. It fails soft: a missing key,
	// a read error, or an unparseable blob all report ok=false.
	LoadSnapshot(ctx context.Context) (env domain.Envelope, ok bool)

	// SaveSnapshot overwrites the stored snapshot in full.
	SaveSnapshot(ctx context.Context, env domain.Envelope) error

	// Get returns the value stored under key, or "" when absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	Close() error
}
