// Package main is the entry point for the missionmap API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/pkordes/missionmap/internal/backend"
	"github.com/pkordes/missionmap/internal/config"
	"github.com/pkordes/missionmap/internal/handler"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/middleware"
	"github.com/pkordes/missionmap/internal/places"
	"github.com/pkordes/missionmap/internal/service"
	"github.com/pkordes/missionmap/internal/syncer"
)

func main() {
	// --- Config -----------------------------------------------------------
	// .env.local is optional; real environment variables win over it.
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env.local", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Local store ------------------------------------------------------
	if err := os.MkdirAll(filepath.Dir(cfg.LocalDBPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "path", cfg.LocalDBPath, "error", err)
		os.Exit(1)
	}
	local, err := localstore.OpenSQLite(ctx, cfg.LocalDBPath, logger)
	if err != nil {
		slog.Error("failed to open local store", "path", cfg.LocalDBPath, "error", err)
		os.Exit(1)
	}
	defer local.Close()

	// --- Remote backend ---------------------------------------------------
	// The dashboard stays usable offline, so an unreachable backend degrades
	// to local-only instead of stopping the server.
	remoteSide, err := backend.Open(ctx, cfg, local, logger)
	if err != nil {
		slog.Error("remote backend unavailable, running local-only", "backend", cfg.Backend, "error", err)
		remoteSide = &backend.Backend{}
	}
	defer remoteSide.Close()

	// --- Places -----------------------------------------------------------
	catalog := loadPlaces(ctx, cfg, logger)

	// --- Sync controller --------------------------------------------------
	ctrl := syncer.New(syncer.Options{
		Local:    local,
		Remote:   remoteSide.Store,
		Channel:  remoteSide.Channel,
		Debounce: cfg.Debounce,
		Retries:  cfg.Retries,
		Log:      logger,
	})
	source, err := ctrl.Init(ctx)
	if err != nil {
		slog.Error("sync controller failed to start", "error", err)
		os.Exit(1)
	}
	slog.Info("document loaded", "source", source)

	// --- Services ---------------------------------------------------------
	// A nil *Catalog must not leak into the interfaces as a non-nil value.
	var (
		names    service.Names
		searcher handler.PlaceSearcher
	)
	if catalog != nil {
		names, searcher = catalog, catalog
	}
	srvDeps := handler.Deps{
		Sync:    ctrl,
		Regions: service.NewRegionService(ctrl, names),
		Library: service.NewLibraryService(ctrl),
		Reports: service.NewReportService(ctrl, nil),
		Places:  searcher,
		Origins: cfg.CORSOrigins,
		Log:     logger,
	}

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer
	// → CORS → MaxBodySize.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Mount("/", handler.NewServer(srvDeps).Routes())

	// --- HTTP Server ------------------------------------------------------
	// The write timeout does not apply to /ws: the upgrader clears deadlines
	// on the hijacked connection.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "sync_id", ctrl.SyncID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	// Close flushes a pending push so the last edit reaches the remote store.
	if err := ctrl.Close(); err != nil {
		slog.Error("sync controller close error", "error", err)
	}
	slog.Info("server stopped")
}

// loadPlaces reads the name table from PLACES_FILE, or fetches it from
// PLACES_URL. Failure is logged and the server runs without names.
func loadPlaces(ctx context.Context, cfg config.Config, log *slog.Logger) *places.Catalog {
	var (
		catalog *places.Catalog
		err     error
	)
	if cfg.PlacesFile != "" {
		catalog, err = places.LoadYAML(cfg.PlacesFile)
	} else {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		catalog, err = places.FetchIBGE(fetchCtx, &http.Client{Timeout: 10 * time.Second}, cfg.PlacesURL)
	}
	if err != nil {
		log.WarnContext(ctx, "place names unavailable; region ids are accepted unchecked", "error", err)
		return nil
	}
	if catalog.Len() == 0 {
		log.WarnContext(ctx, "place name table is empty; region ids are accepted unchecked")
		return nil
	}
	log.InfoContext(ctx, "place names loaded", "count", catalog.Len())
	return catalog
}
