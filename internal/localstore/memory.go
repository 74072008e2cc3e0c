package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkordes/missionmap/internal/domain"
)

// Memory is a Store that keeps values in a map. Values are serialized exactly
// as SQLite would store them, so decoding behaves the same.
// Used by tests and by the CLI's dry runs.
type Memory struct {
	mu     sync.Mutex
	values map[string]string
	saves  int
	broken bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

func (m *Memory) LoadSnapshot(ctx context.Context) (domain.Envelope, bool) {
	raw, _ := m.Get(ctx, KeySnapshot)
	if raw == "" {
		return domain.Envelope{}, false
	}
	env, err := domain.DecodeEnvelope([]byte(raw))
	if err != nil {
		return domain.Envelope{}, false
	}
	return env, true
}

func (m *Memory) SaveSnapshot(ctx context.Context, env domain.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("localstore.Memory.SaveSnapshot: %w", err)
	}
	if err := m.Set(ctx, KeySnapshot, string(b)); err != nil {
		return err
	}
	m.mu.Lock()
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return fmt.Errorf("localstore.Memory.Set %s: %w", key, ErrUnavailable)
	}
	m.values[key] = value
	return nil
}

// SetBroken makes every subsequent write fail with ErrUnavailable.
func (m *Memory) SetBroken(broken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken = broken
}

// Saves reports how many snapshots have been written.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
