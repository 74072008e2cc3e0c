package remote

import (
	"context"
	"log/slog"

	"github.com/pkordes/missionmap/internal/domain"
)

// notifying decorates a Store so that every successful Upsert is followed by
// a Publish. A failed publish is logged, not returned: the document is already
// durable remotely and peers will pick it up on their next fetch.
type notifying struct {
	Store
	pub Publisher
	log *slog.Logger
}

// Notifying wraps s so that successful upserts are announced through pub.
func Notifying(s Store, pub Publisher, log *slog.Logger) Store {
	if log == nil {
		log = slog.Default()
	}
	return &notifying{Store: s, pub: pub, log: log}
}

func (n *notifying) Upsert(ctx context.Context, syncID string, env domain.Envelope) error {
	if err := n.Store.Upsert(ctx, syncID, env); err != nil {
		return err
	}
	if err := n.pub.Publish(ctx, syncID, env); err != nil {
		n.log.WarnContext(ctx, "change publish failed", "sync_id", syncID, "revision", env.Stamp.Revision, "error", err)
	}
	return nil
}
