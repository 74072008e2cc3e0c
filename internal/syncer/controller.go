// Package syncer owns the in-memory document and keeps it consistent with
// local storage, the remote mirror and the live change channel.
//
// Every change carries an origin. Local changes are saved to the local store
// at once and pushed to the remote store after a debounce quiet period.
// Remote deliveries are saved locally but never pushed back. Each document
// revision is stamped, and a delivery is applied only when its stamp is newer
// than the current one, which drops self-echoes, duplicates and stale
// out-of-order payloads without any timing window.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkordes/missionmap/internal/debounce"
	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/remote"
)

// DefaultDebounce is the quiet period before a burst of local edits is pushed.
const DefaultDebounce = 800 * time.Millisecond

// ErrNoRemote is returned by operations that need a remote backend when the
// controller runs local-only.
var ErrNoRemote = errors.New("no remote backend configured")

// pushTimeout bounds a debounced push, including its retries.
const pushTimeout = 30 * time.Second

// Options wires a Controller. Local is required. Without Remote the controller
// runs local-only; without Channel it never receives live deliveries.
type Options struct {
	Local    localstore.Store
	Remote   remote.Store
	Channel  remote.Channel
	Debounce time.Duration
	// Retries is how many extra attempts a push or fetch gets after a
	// transient network failure.
	Retries uint64
	// Backoff is the first retry delay; later delays double.
	Backoff time.Duration
	Log     *slog.Logger
	Now     func() time.Time
}

// State is the observable sync status.
type State struct {
	Status       domain.Status `json:"status"`
	SyncID       string        `json:"syncId"`
	DeviceID     string        `json:"deviceId"`
	Revision     int64         `json:"revision"`
	Pending      bool          `json:"pending"`
	LastSyncedAt *time.Time    `json:"lastSyncedAt,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	LocalError   string        `json:"localError,omitempty"`
	RemoteMode   bool          `json:"remote"`
}

// EventKind says what an Event reports.
type EventKind string

const (
	EventDocument EventKind = "document"
	EventStatus   EventKind = "status"
	EventIdentity EventKind = "identity"
)

// Event is sent to watchers after every document, status or identity change.
type Event struct {
	Kind   EventKind     `json:"kind"`
	Origin domain.Origin `json:"origin,omitempty"`
	State  State         `json:"state"`
}

// Controller is the single owner of the in-memory document.
// The zero value is not usable; construct with New and call Init once.
type Controller struct {
	local    localstore.Store
	remote   remote.Store
	channel  remote.Channel
	retries  uint64
	backoff  time.Duration
	log      *slog.Logger
	now      func() time.Time
	debounce *debounce.Debouncer

	// lifecycle serializes Init, LinkIdentity and Close.
	lifecycle sync.Mutex
	// writeMu serializes remote writes so pushes never interleave.
	writeMu sync.Mutex

	mu       sync.Mutex
	ready    bool
	closed   bool
	env      domain.Envelope
	syncID   string
	deviceID string
	// gen changes whenever the subscription is replaced; callbacks carrying an
	// older generation are ignored.
	gen uint64
	sub remote.Subscription
	// remoteStamp is the newest stamp known to be in the remote slot.
	// remoteKnown is false until a fetch or push has established it.
	remoteStamp domain.Stamp
	remoteKnown bool
	// needFetch is set when the slot could not be read; the next push
	// fetches it first.
	needFetch bool
	status      domain.Status
	lastErr     error
	localErr    error
	lastSync    time.Time
	watchers    map[int]func(Event)
	nextWatch   int
}

// New constructs a Controller. It does no I/O.
func New(opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Controller{
		local:    opts.Local,
		remote:   opts.Remote,
		channel:  opts.Channel,
		retries:  opts.Retries,
		backoff:  opts.Backoff,
		log:      opts.Log,
		now:      opts.Now,
		env:      domain.Envelope{Document: domain.Empty()},
		status:   domain.StatusIdle,
		watchers: map[int]func(Event){},
	}
	c.debounce = debounce.New(opts.Debounce, c.debouncedPush)
	return c
}

// Snapshot returns a private copy of the current document.
func (c *Controller) Snapshot() domain.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.env.Document.Clone()
}

// SyncID returns the active sync identity, or "" before Init.
func (c *Controller) SyncID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncID
}

// State returns the current sync status.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	s := State{
		Status:     c.status,
		SyncID:     c.syncID,
		DeviceID:   c.deviceID,
		Revision:   c.env.Stamp.Revision,
		Pending:    c.debounce.Pending(),
		RemoteMode: c.remote != nil,
	}
	if !c.lastSync.IsZero() {
		t := c.lastSync
		s.LastSyncedAt = &t
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	if c.localErr != nil {
		s.LocalError = c.localErr.Error()
	}
	return s
}

// Mutate applies fn to a copy of the current document and makes the result
// current. The new document is saved locally before Mutate returns and pushed
// remotely after the debounce period. Remote failures never fail a mutation;
// they only show up in State.
//
// fn runs while the Controller is locked, so it must not call back into it,
// and it must not retain the document it is given. Returning an error leaves
// the current document unchanged.
func (c *Controller) Mutate(ctx context.Context, fn func(domain.Document) (domain.Document, error)) (domain.Document, error) {
	c.mu.Lock()
	if !c.ready || c.closed {
		c.mu.Unlock()
		return domain.Document{}, domain.ErrNotReady
	}
	next, err := fn(c.env.Document.Clone())
	if err != nil {
		c.mu.Unlock()
		return domain.Document{}, err
	}
	c.env = domain.Envelope{
		Stamp:     c.env.Stamp.Next(c.deviceID),
		UpdatedAt: c.now().UTC(),
		Document:  next,
	}
	c.saveLocked(ctx)
	if c.remote != nil {
		c.debounce.Trigger()
	}
	out := next.Clone()
	ev := c.eventLocked(EventDocument, domain.OriginLocal)
	c.mu.Unlock()

	c.emit(ev)
	return out, nil
}

// applyRemote handles one channel delivery for subscription generation gen.
func (c *Controller) applyRemote(gen uint64, env domain.Envelope) {
	c.mu.Lock()
	if c.closed || !c.ready || gen != c.gen {
		c.mu.Unlock()
		return
	}
	syncID := c.syncID
	if !c.env.Stamp.Less(env.Stamp) {
		c.mu.Unlock()
		c.log.Debug("remote delivery ignored", "sync_id", syncID, "revision", env.Stamp.Revision, "writer", env.Stamp.Writer)
		return
	}
	c.env = env
	c.markRemoteLocked(env.Stamp)
	c.needFetch = false
	// Unpushed local edits are older than what just arrived; last write wins.
	c.debounce.Cancel()
	c.saveLocked(context.Background())
	ev := c.eventLocked(EventDocument, domain.OriginRemote)
	c.mu.Unlock()

	c.log.Info("remote change applied", "sync_id", syncID, "revision", env.Stamp.Revision, "writer", env.Stamp.Writer)
	c.emit(ev)
}

// SyncNow pushes the current document immediately, cancelling any pending
// debounced push. Unlike Mutate it reports the remote error to the caller.
func (c *Controller) SyncNow(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready && !c.closed
	c.mu.Unlock()
	if !ready {
		return domain.ErrNotReady
	}
	if c.remote == nil {
		return fmt.Errorf("syncer.Controller.SyncNow: %w", ErrNoRemote)
	}
	c.debounce.Cancel()
	return c.push(ctx, true)
}

func (c *Controller) debouncedPush() {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	_ = c.push(ctx, false)
}

// push writes the current envelope to the remote slot. Unless force is set it
// skips envelopes the slot is already known to hold.
func (c *Controller) push(ctx context.Context, force bool) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.reconcile(ctx); err != nil {
		c.mu.Lock()
		ev := c.eventLocked(EventStatus, "")
		c.mu.Unlock()
		c.emit(ev)
		return fmt.Errorf("syncer.Controller.push: %w", err)
	}

	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return domain.ErrNotReady
	}
	env := c.env
	syncID := c.syncID
	if !force && c.remoteKnown && env.Stamp == c.remoteStamp {
		c.mu.Unlock()
		return nil
	}
	c.status = domain.StatusSyncing
	ev := c.eventLocked(EventStatus, "")
	c.mu.Unlock()
	c.emit(ev)

	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.remote.Upsert(ctx, syncID, env)
	})

	c.mu.Lock()
	if err != nil {
		c.status = domain.StatusError
		c.lastErr = err
	} else {
		c.status = domain.StatusSuccess
		c.lastErr = nil
		c.lastSync = c.now().UTC()
		if syncID == c.syncID {
			c.markRemoteLocked(env.Stamp)
		}
	}
	ev = c.eventLocked(EventStatus, "")
	c.mu.Unlock()
	c.emit(ev)

	if err != nil {
		c.logRemoteError("remote push failed", syncID, err)
		return fmt.Errorf("syncer.Controller.push: %w", err)
	}
	c.log.Info("remote push", "sync_id", syncID, "revision", env.Stamp.Revision)
	return nil
}

// markRemoteLocked records that the remote slot holds at least stamp.
func (c *Controller) markRemoteLocked(stamp domain.Stamp) {
	if !c.remoteKnown || c.remoteStamp.Less(stamp) {
		c.remoteStamp = stamp
	}
	c.remoteKnown = true
}

// saveLocked writes the current envelope to local storage. Failures are
// recorded and logged; they never fail the caller.
func (c *Controller) saveLocked(ctx context.Context) {
	if err := c.local.SaveSnapshot(ctx, c.env); err != nil {
		c.localErr = err
		c.log.Warn("local save failed", "revision", c.env.Stamp.Revision, "error", err)
		return
	}
	c.localErr = nil
}

func (c *Controller) logRemoteError(msg, syncID string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, remote.ErrAuth) {
		level = slog.LevelError
	}
	c.log.Log(context.Background(), level, msg, "sync_id", syncID, "error", err)
}

// Watch registers fn to receive every Event. fn runs on the goroutine that
// caused the change and must not block or call back into the Controller's
// lifecycle methods. The returned func removes the watcher.
func (c *Controller) Watch(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextWatch
	c.nextWatch++
	c.watchers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

type pendingEvent struct {
	ev  Event
	fns []func(Event)
}

func (c *Controller) eventLocked(kind EventKind, origin domain.Origin) pendingEvent {
	fns := make([]func(Event), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	return pendingEvent{ev: Event{Kind: kind, Origin: origin, State: c.stateLocked()}, fns: fns}
}

func (c *Controller) emit(p pendingEvent) {
	for _, fn := range p.fns {
		fn(p.ev)
	}
}

// Close pushes any pending edit, then tears down the subscription and the
// debounce timer. The Controller rejects mutations afterwards.
func (c *Controller) Close() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	// Mutations are rejected from here on, so the flush sees the last edit.
	c.debounce.Flush()
	c.debounce.Stop()
	if sub != nil {
		sub.Unsubscribe()
	}
	// Wait out a push that was already running.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return nil
}
