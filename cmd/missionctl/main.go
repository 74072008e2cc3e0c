// Command missionctl inspects and repairs the local state of a missionmap
// install: the sync identity, the stored remote credential and the document
// snapshot. It reads the same configuration as the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/pkordes/missionmap/internal/backend"
	"github.com/pkordes/missionmap/internal/config"
	"github.com/pkordes/missionmap/internal/localstore"
	"github.com/pkordes/missionmap/internal/remote"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: could not read .env.local:", err)
	}
	// Keep stdout for command output; adapters log warnings to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd(configOpener{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configOpener opens the stores described by the environment.
type configOpener struct{}

func (configOpener) OpenLocal(ctx context.Context) (localstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return localstore.OpenSQLite(ctx, cfg.LocalDBPath, slog.Default())
}

func (configOpener) OpenRemote(ctx context.Context, local localstore.Store) (remote.Store, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.RemoteEnabled() {
		return nil, nil, errNoRemote
	}
	// The CLI never subscribes, but a redis channel still has to announce
	// pushes to running dashboards, so the channel setting is kept.
	b, err := backend.Open(ctx, cfg, local, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return b.Store, b.Close, nil
}
