package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/handler"
	"github.com/pkordes/missionmap/internal/places"
	"github.com/pkordes/missionmap/internal/service"
	"github.com/pkordes/missionmap/internal/syncer"
)

// mockSync is a test double for handler.SyncController.
// Set only the method fields your test needs.
type mockSync struct {
	snapshot     func() domain.Document
	state        func() syncer.State
	syncID       func() string
	syncNow      func(ctx context.Context) error
	linkIdentity func(ctx context.Context, id string) error

	mu       sync.Mutex
	watchers []func(syncer.Event)
	cancels  int
}

func (m *mockSync) Snapshot() domain.Document { return m.snapshot() }
func (m *mockSync) State() syncer.State       { return m.state() }
func (m *mockSync) SyncID() string            { return m.syncID() }
func (m *mockSync) SyncNow(ctx context.Context) error {
	return m.syncNow(ctx)
}
func (m *mockSync) LinkIdentity(ctx context.Context, id string) error {
	return m.linkIdentity(ctx, id)
}
func (m *mockSync) Watch(fn func(syncer.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers = append(m.watchers, fn)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cancels++
	}
}

// fire delivers ev to every registered watcher.
func (m *mockSync) fire(ev syncer.Event) {
	m.mu.Lock()
	ws := append([]func(syncer.Event){}, m.watchers...)
	m.mu.Unlock()
	for _, fn := range ws {
		fn(ev)
	}
}

func (m *mockSync) watcherCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers)
}

func (m *mockSync) cancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

type mockRegions struct {
	region            func(ctx context.Context, id string) (domain.RegionRecord, error)
	addMission        func(ctx context.Context, regionID string, m domain.Mission) (domain.RegionRecord, error)
	updateMission     func(ctx context.Context, regionID string, index int, m domain.Mission) (domain.RegionRecord, error)
	deleteMission     func(ctx context.Context, regionID string, index int) (domain.RegionRecord, error)
	addTrip           func(ctx context.Context, regionID string, p domain.PlannedTrip) (domain.RegionRecord, error)
	updateTrip        func(ctx context.Context, regionID string, index int, p domain.PlannedTrip) (domain.RegionRecord, error)
	deleteTrip        func(ctx context.Context, regionID string, index int) (domain.RegionRecord, error)
	addMarker         func(ctx context.Context, regionID, label, color string) (domain.RegionRecord, error)
	deleteMarker      func(ctx context.Context, regionID, markerID string) (domain.RegionRecord, error)
	applyLibraryEntry func(ctx context.Context, regionID, libraryID string) (domain.RegionRecord, error)
}

func (m *mockRegions) Region(ctx context.Context, id string) (domain.RegionRecord, error) {
	return m.region(ctx, id)
}
func (m *mockRegions) AddMission(ctx context.Context, regionID string, v domain.Mission) (domain.RegionRecord, error) {
	return m.addMission(ctx, regionID, v)
}
func (m *mockRegions) UpdateMission(ctx context.Context, regionID string, index int, v domain.Mission) (domain.RegionRecord, error) {
	return m.updateMission(ctx, regionID, index, v)
}
func (m *mockRegions) DeleteMission(ctx context.Context, regionID string, index int) (domain.RegionRecord, error) {
	return m.deleteMission(ctx, regionID, index)
}
func (m *mockRegions) AddTrip(ctx context.Context, regionID string, p domain.PlannedTrip) (domain.RegionRecord, error) {
	return m.addTrip(ctx, regionID, p)
}
func (m *mockRegions) UpdateTrip(ctx context.Context, regionID string, index int, p domain.PlannedTrip) (domain.RegionRecord, error) {
	return m.updateTrip(ctx, regionID, index, p)
}
func (m *mockRegions) DeleteTrip(ctx context.Context, regionID string, index int) (domain.RegionRecord, error) {
	return m.deleteTrip(ctx, regionID, index)
}
func (m *mockRegions) AddMarker(ctx context.Context, regionID, label, color string) (domain.RegionRecord, error) {
	return m.addMarker(ctx, regionID, label, color)
}
func (m *mockRegions) DeleteMarker(ctx context.Context, regionID, markerID string) (domain.RegionRecord, error) {
	return m.deleteMarker(ctx, regionID, markerID)
}
func (m *mockRegions) ApplyLibraryEntry(ctx context.Context, regionID, libraryID string) (domain.RegionRecord, error) {
	return m.applyLibraryEntry(ctx, regionID, libraryID)
}

type mockLibrary struct {
	list   func(ctx context.Context) []domain.LibraryEntry
	save   func(ctx context.Context, label, color string) (domain.LibraryEntry, error)
	delete func(ctx context.Context, id string) error
}

func (m *mockLibrary) List(ctx context.Context) []domain.LibraryEntry { return m.list(ctx) }
func (m *mockLibrary) Save(ctx context.Context, label, color string) (domain.LibraryEntry, error) {
	return m.save(ctx, label, color)
}
func (m *mockLibrary) Delete(ctx context.Context, id string) error { return m.delete(ctx, id) }

type mockReports struct {
	build func(ctx context.Context) service.Report
}

func (m *mockReports) Build(ctx context.Context) service.Report { return m.build(ctx) }

type mockPlaces struct {
	search func(query string, limit int) []places.Place
}

func (m *mockPlaces) Search(query string, limit int) []places.Place { return m.search(query, limit) }

// compile-time checks: the mocks must satisfy the handler interfaces.
var (
	_ handler.SyncController  = (*mockSync)(nil)
	_ handler.RegionServicer  = (*mockRegions)(nil)
	_ handler.LibraryServicer = (*mockLibrary)(nil)
	_ handler.ReportBuilder   = (*mockReports)(nil)
	_ handler.PlaceSearcher   = (*mockPlaces)(nil)
)

// ---- helpers ---------------------------------------------------------------

func newHTTPHandler(d handler.Deps) http.Handler {
	return handler.NewServer(d).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func regionFixture() domain.RegionRecord {
	return domain.RegionRecord{
		ID:           "1302603",
		Name:         "Manaus",
		Missions:     []domain.Mission{},
		PlannedTrips: []domain.PlannedTrip{},
		Markers:      []domain.Marker{},
	}
}
