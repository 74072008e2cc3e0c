package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/remote"
)

// Source says where the initial document came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceEmpty  Source = "empty"
)

// Init runs the bootstrap sequence once: resolve the device and sync
// identities, settle the initial document (remote first, then the local
// snapshot, then empty) and subscribe to the change channel. Mutations are
// rejected until Init returns.
//
// Remote failures do not fail Init; they fall through to local data and show
// up in State.
func (c *Controller) Init(ctx context.Context) (Source, error) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.ready || c.closed {
		c.mu.Unlock()
		return "", errors.New("syncer.Controller.Init: already initialized")
	}
	c.mu.Unlock()

	deviceID := c.resolve(ctx, localstore.KeyDeviceID, uuid.NewString)
	syncID := c.resolve(ctx, localstore.KeySyncID, domain.NewSyncID)

	c.mu.Lock()
	c.deviceID = deviceID
	c.syncID = syncID
	c.mu.Unlock()

	fetched, found, fetchErr := c.fetch(ctx, syncID)

	c.mu.Lock()
	var source Source
	switch {
	case found:
		source = SourceRemote
		c.env = fetched
		c.markRemoteLocked(fetched.Stamp)
		c.saveLocked(ctx)
	default:
		if env, ok := c.local.LoadSnapshot(ctx); ok {
			source = SourceLocal
			c.env = env
		} else {
			source = SourceEmpty
			c.env = domain.Envelope{Document: domain.Empty()}
		}
	}
	c.recordFetchLocked(fetchErr, found)
	c.needFetch = c.remote != nil && fetchErr != nil
	c.ready = true
	// An absent slot is seeded with whatever we have. After a failed fetch the
	// slot may hold newer data, so nothing is pushed until the next local edit.
	if c.remote != nil && fetchErr == nil && !found && !c.env.Document.IsEmpty() {
		c.debounce.Trigger()
	}
	gen := c.gen
	c.mu.Unlock()

	c.subscribe(ctx, gen, syncID)

	c.log.InfoContext(ctx, "sync controller ready",
		"sync_id", syncID, "device_id", deviceID, "source", source, "revision", c.State().Revision)
	return source, nil
}

// LinkIdentity pairs this install with another device's sync identity. The
// new slot is fetched first; when that fails nothing changes and the error is
// returned. Otherwise pending edits are flushed to the old slot, the document
// is replaced from the new slot and the channel is resubscribed. When the new
// slot is empty the current document is kept and pushed there.
func (c *Controller) LinkIdentity(ctx context.Context, raw string) error {
	id, err := domain.NormalizeSyncID(raw)
	if err != nil {
		return fmt.Errorf("syncer.Controller.LinkIdentity: %w", err)
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if !c.ready || c.closed {
		c.mu.Unlock()
		return domain.ErrNotReady
	}
	if id == c.syncID {
		c.mu.Unlock()
		return nil
	}
	previous := c.syncID
	c.mu.Unlock()

	fetched, found, fetchErr := c.fetch(ctx, id)
	if fetchErr != nil {
		c.mu.Lock()
		c.recordFetchLocked(fetchErr, false)
		ev := c.eventLocked(EventStatus, "")
		c.mu.Unlock()
		c.emit(ev)
		return fmt.Errorf("syncer.Controller.LinkIdentity: %w", fetchErr)
	}

	// Edits made under the old identity belong to the old slot.
	c.debounce.Flush()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.sub
	c.sub = nil
	c.debounce.Cancel()
	c.syncID = id
	c.remoteKnown = false
	c.remoteStamp = domain.Stamp{}
	c.needFetch = false
	if found {
		c.env = fetched
		c.markRemoteLocked(fetched.Stamp)
		c.saveLocked(ctx)
	}
	c.recordFetchLocked(nil, found)
	if c.remote != nil && !found {
		c.debounce.Trigger()
	}
	docEv := c.eventLocked(EventDocument, domain.OriginRemote)
	idEv := c.eventLocked(EventIdentity, "")
	c.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	if err := c.local.Set(ctx, localstore.KeySyncID, id); err != nil {
		c.log.WarnContext(ctx, "sync identity not persisted", "sync_id", id, "error", err)
	}
	c.subscribe(ctx, gen, id)

	c.log.InfoContext(ctx, "sync identity linked", "from", previous, "to", id, "found", found)
	if found {
		c.emit(docEv)
	}
	c.emit(idEv)
	return nil
}

// reconcile runs before a push while the remote slot is unknown because an
// earlier fetch failed. It fetches the slot and moves the local stamp past
// whatever the slot holds, so the pushed revision is newer for every peer.
// While the slot stays unreachable it returns the error and nothing is pushed.
func (c *Controller) reconcile(ctx context.Context) error {
	c.mu.Lock()
	need, syncID := c.needFetch, c.syncID
	c.mu.Unlock()
	if !need {
		return nil
	}

	fetched, found, err := c.fetch(ctx, syncID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.recordFetchLocked(err, false)
		return err
	}
	if syncID != c.syncID || !c.needFetch {
		return nil
	}
	c.needFetch = false
	if !found {
		return nil
	}
	c.markRemoteLocked(fetched.Stamp)
	if !fetched.Stamp.Less(c.env.Stamp) {
		c.env.Stamp = domain.Stamp{Revision: fetched.Stamp.Revision + 1, Writer: c.deviceID}
		c.env.UpdatedAt = c.now().UTC()
		c.saveLocked(ctx)
	}
	return nil
}

// resolve returns the value stored under key, generating and persisting one
// when absent. Storage failures fall back to a fresh in-memory value.
func (c *Controller) resolve(ctx context.Context, key string, generate func() string) string {
	v, err := c.local.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "local read failed", "key", key, "error", err)
	}
	if v != "" {
		return v
	}
	v = generate()
	if err := c.local.Set(ctx, key, v); err != nil {
		c.log.WarnContext(ctx, "local write failed", "key", key, "error", err)
	}
	return v
}

// fetch reads the remote slot. found is false both for an absent slot
// (err == nil) and for a failure (err != nil).
func (c *Controller) fetch(ctx context.Context, syncID string) (env domain.Envelope, found bool, err error) {
	if c.remote == nil {
		return domain.Envelope{}, false, nil
	}
	err = c.withRetry(ctx, func(ctx context.Context) error {
		var ferr error
		env, ferr = c.remote.Fetch(ctx, syncID)
		return ferr
	})
	switch {
	case err == nil:
		return env, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.Envelope{}, false, nil
	default:
		c.logRemoteError("remote fetch failed", syncID, err)
		return domain.Envelope{}, false, fmt.Errorf("syncer.Controller.fetch: %w", err)
	}
}

func (c *Controller) recordFetchLocked(err error, found bool) {
	switch {
	case c.remote == nil:
		c.status = domain.StatusIdle
	case err != nil:
		c.status = domain.StatusError
		c.lastErr = err
	case found:
		c.status = domain.StatusSuccess
		c.lastErr = nil
		c.lastSync = c.now().UTC()
	default:
		c.status = domain.StatusIdle
		c.lastErr = nil
	}
}

// subscribe attaches the change channel for generation gen. A subscription
// that arrives after gen was superseded is torn down again.
func (c *Controller) subscribe(ctx context.Context, gen uint64, syncID string) {
	if c.channel == nil {
		return
	}
	sub, err := c.channel.Subscribe(ctx, syncID, func(env domain.Envelope) {
		c.applyRemote(gen, env)
	})
	if err != nil {
		c.logRemoteError("change channel subscribe failed", syncID, err)
		return
	}

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	c.sub = sub
	c.mu.Unlock()
}

// withRetry runs fn, retrying transient network failures with exponential
// backoff up to the configured number of extra attempts.
func (c *Controller) withRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && remote.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
