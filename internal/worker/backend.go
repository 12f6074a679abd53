package worker

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/internal/influx"
	"github.com/racerl/racecore/internal/storage"
	gormstorage "github.com/racerl/racecore/internal/storage/gorm"
	influxstorage "github.com/racerl/racecore/internal/storage/influx"
	"github.com/racerl/racecore/internal/storage/memory"
	pgstorage "github.com/racerl/racecore/internal/storage/postgres"
	sqlitestorage "github.com/racerl/racecore/internal/storage/sqlite"
	wsstorage "github.com/racerl/racecore/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// BackendOptions carries what every backend needs to know about the session.
type BackendOptions struct {
	Logger      *slog.Logger
	Zerolog     zerolog.Logger
	Session     memory.Session
	Checkpoints int
	API         config.APIConfig
}

// NewBackend builds the storage backend named by cfg.Type. The backend is
// not initialized.
func NewBackend(cfg config.StorageConfig, opts BackendOptions) (storage.Backend, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	gormDeps := gormstorage.Dependencies{
		Logger:      opts.Logger,
		SessionID:   opts.Session.ID,
		TrackName:   opts.Session.TrackName,
		Checkpoints: opts.Checkpoints,
	}

	switch cfg.Type {
	case "", "memory":
		return memory.New(cfg.Memory, opts.Session), nil

	case "sqlite":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, gormDeps)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		return pgstorage.New(cfg.Postgres, gormDeps), nil

	case "influx":
		mgr := influx.NewManager(cfg.Influx, opts.Zerolog)
		return influxstorage.New(mgr, opts.Session.ID, opts.Session.TrackName), nil

	case "websocket":
		url := cfg.Websocket.URL
		if url == "" && opts.API.ServerURL != "" {
			url = httpToWS(opts.API.ServerURL) + "/api/v1/stream"
		}
		secret := cfg.Websocket.Secret
		if secret == "" {
			secret = opts.API.APIKey
		}
		return wsstorage.New(wsstorage.Config{
			URL:     url,
			Secret:  secret,
			Session: opts.Session.ID,
			Track:   opts.Session.TrackName,
		}, opts.Logger), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
