// Package handler implements the HTTP API of the mission dashboard.
// All handlers are methods on Server. They are split into files by resource
// (regions.go, library.go, sync.go, ...) and share the Server's dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/places"
	"github.com/pkordes/missionmap/internal/service"
	"github.com/pkordes/missionmap/internal/syncer"
)

// SyncController is the part of the sync controller the API exposes.
// *syncer.Controller satisfies it.
type SyncController interface {
	Snapshot() domain.Document
	State() syncer.State
	SyncID() string
	SyncNow(ctx context.Context) error
	LinkIdentity(ctx context.Context, id string) error
	Watch(fn func(syncer.Event)) (cancel func())
}

// RegionServicer defines the per-region operations the handlers depend on.
type RegionServicer interface {
	Region(ctx context.Context, id string) (domain.RegionRecord, error)
	AddMission(ctx context.Context, regionID string, m domain.Mission) (domain.RegionRecord, error)
	UpdateMission(ctx context.Context, regionID string, index int, m domain.Mission) (domain.RegionRecord, error)
	DeleteMission(ctx context.Context, regionID string, index int) (domain.RegionRecord, error)
	AddTrip(ctx context.Context, regionID string, p domain.PlannedTrip) (domain.RegionRecord, error)
	UpdateTrip(ctx context.Context, regionID string, index int, p domain.PlannedTrip) (domain.RegionRecord, error)
	DeleteTrip(ctx context.Context, regionID string, index int) (domain.RegionRecord, error)
	AddMarker(ctx context.Context, regionID, label, color string) (domain.RegionRecord, error)
	DeleteMarker(ctx context.Context, regionID, markerID string) (domain.RegionRecord, error)
	ApplyLibraryEntry(ctx context.Context, regionID, libraryID string) (domain.RegionRecord, error)
}

// LibraryServicer defines the marker library operations.
type LibraryServicer interface {
	List(ctx context.Context) []domain.LibraryEntry
	Save(ctx context.Context, label, color string) (domain.LibraryEntry, error)
	Delete(ctx context.Context, id string) error
}

// ReportBuilder produces the analytics view.
type ReportBuilder interface {
	Build(ctx context.Context) service.Report
}

// PlaceSearcher looks up municipalities by name.
type PlaceSearcher interface {
	Search(query string, limit int) []places.Place
}

// Deps holds everything a Server needs. Places may be nil when no name table
// was loaded; the search endpoint then returns an empty list.
type Deps struct {
	Sync    SyncController
	Regions RegionServicer
	Library LibraryServicer
	Reports ReportBuilder
	Places  PlaceSearcher

	// Origins are the browser origins allowed to open the live feed.
	// Same-host requests are always accepted.
	Origins []string

	Log *slog.Logger
}

// Server holds the handler dependencies.
type Server struct {
	sync     SyncController
	regions  RegionServicer
	library  LibraryServicer
	reports  ReportBuilder
	places   PlaceSearcher
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sync:    d.Sync,
		regions: d.Regions,
		library: d.Library,
		reports: d.Reports,
		places:  d.Places,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(d.Origins),
		},
	}
}

// Routes returns the API router. Cross-cutting middleware (request IDs,
// logging, CORS, body limits) is applied by the caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.getHealth)
	r.Get("/openapi.yaml", s.getOpenAPI)
	r.Get("/document", s.getDocument)
	r.Get("/report", s.getReport)
	r.Get("/places", s.searchPlaces)
	r.Get("/ws", s.serveWS)

	r.Route("/regions/{regionID}", func(r chi.Router) {
		r.Get("/", s.getRegion)

		r.Post("/missions", s.addMission)
		r.Put("/missions/{index}", s.updateMission)
		r.Delete("/missions/{index}", s.deleteMission)

		r.Post("/trips", s.addTrip)
		r.Put("/trips/{index}", s.updateTrip)
		r.Delete("/trips/{index}", s.deleteTrip)

		r.Post("/markers", s.addMarker)
		r.Delete("/markers/{markerID}", s.deleteMarker)
		r.Post("/markers/from-library/{libraryID}", s.applyLibraryEntry)
	})

	r.Route("/library", func(r chi.Router) {
		r.Get("/", s.listLibrary)
		r.Post("/", s.saveLibraryEntry)
		r.Delete("/{entryID}", s.deleteLibraryEntry)
	})

	r.Route("/sync", func(r chi.Router) {
		r.Get("/status", s.getSyncStatus)
		r.Post("/now", s.syncNow)
		r.Get("/identity", s.getIdentity)
		r.Put("/identity", s.linkIdentity)
	})

	return r
}
