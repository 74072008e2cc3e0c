// Package memory is an in-process remote backend: a Store plus a Hub that acts
// as both Channel and Publisher. Several sync controllers sharing one Store and
// one Hub behave like devices sharing a real backend.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// Call records one Upsert.
type Call struct {
	SyncID   string
	Envelope domain.Envelope
}

// Store keeps serialized envelopes in a map so callers can never share
// memory with what is "remote".
type Store struct {
	mu    sync.Mutex
	slots map[string][]byte
	calls []Call
	err   error
}

var _ remote.Store = (*Store)(nil)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{slots: map[string][]byte{}}
}

func (s *Store) Upsert(_ context.Context, syncID string, env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("memory.Store.Upsert: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.slots[syncID] = b
	s.calls = append(s.calls, Call{SyncID: syncID, Envelope: env})
	return nil
}

func (s *Store) Fetch(_ context.Context, syncID string) (domain.Envelope, error) {
	s.mu.Lock()
	b, ok := s.slots[syncID]
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return domain.Envelope{}, err
	}
	if !ok {
		return domain.Envelope{}, fmt.Errorf("memory.Store.Fetch: %w", domain.ErrNotFound)
	}
	return domain.DecodeEnvelope(b)
}

// Put seeds a slot without recording an Upsert call.
func (s *Store) Put(syncID string, env domain.Envelope) {
	b, _ := json.Marshal(env)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[syncID] = b
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Upserts returns the successful Upsert calls so far, oldest first.
func (s *Store) Upserts() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// UpsertsFor returns the successful Upsert calls for one sync identity.
func (s *Store) UpsertsFor(syncID string) []Call {
	var out []Call
	for _, c := range s.Upserts() {
		if c.SyncID == syncID {
			out = append(out, c)
		}
	}
	return out
}
