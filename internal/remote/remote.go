// Package remote defines the contracts for the remote document mirror and the
// live change channel, plus helpers shared by the concrete backends in its
// subpackages (pgstore, redisstore, s3store, memory).
//
// Backend-specific response unwrapping stays inside each backend; the sync
// controller only ever sees domain.Envelope values and the errors below.
package remote

import (
	"context"
	"errors"

	"github.com/pkordes/missionmap/internal/domain"
)

// ErrAuth is returned when the remote credential is missing or rejected.
// Retrying will not help; the operator has to fix configuration.
var ErrAuth = errors.New("remote authentication failed")

// ErrNetwork is returned for transient failures (timeouts, refused
// connections, 5xx responses). Callers may retry.
var ErrNetwork = errors.New("remote unreachable")

// Store is a keyed whole-document store. Keys are sync identities.
type Store interface {
	// Upsert writes env under syncID, creating or replacing the slot.
	// Repeated calls with the same envelope are idempotent.
	Upsert(ctx context.Context, syncID string, env domain.Envelope) error

	// Fetch reads the envelope stored under syncID. A slot that was never
	// written yields domain.ErrNotFound, which is distinct from ErrAuth and
	// ErrNetwork.
	Fetch(ctx context.Context, syncID string) (domain.Envelope, error)
}

// Channel delivers documents written by other sessions under the same sync
// identity. Delivery is at-least-once and unordered across reconnects; a
// session may also receive its own writes. Consumers must tolerate all three.
type Channel interface {
	Subscribe(ctx context.Context, syncID string, fn func(domain.Envelope)) (Subscription, error)
}

// Subscription is a live feed returned by Channel.Subscribe.
type Subscription interface {
	// Unsubscribe tears the feed down and waits for in-flight callbacks to
	// return. It is idempotent and safe after the transport has dropped.
	Unsubscribe()
}

// Publisher announces a freshly written envelope to subscribers. Backends whose
// storage has no native change feed pair with a Publisher via Notifying.
type Publisher interface {
	Publish(ctx context.Context, syncID string, env domain.Envelope) error
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
