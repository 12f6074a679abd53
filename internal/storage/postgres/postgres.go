// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
// It wraps the GORM backend and owns the connection setup.
package postgres

import (
	"fmt"

	"github.com/racerl/racecore/internal/config"
	"github.com/racerl/racecore/internal/database"
	gormstorage "github.com/racerl/racecore/internal/storage/gorm"
)

const maxOpenConns = 10

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg  config.DBConfig
	deps gormstorage.Dependencies
}

// New creates a new Postgres storage backend. The connection is opened by Init.
func New(cfg config.DBConfig, deps gormstorage.Dependencies) *Backend {
	return &Backend{
		cfg:  cfg,
		deps: deps,
	}
}

// Init connects, validates the connection and initializes the GORM backend.
// If deps.DB was injected it is used as is.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(maxOpenConns)
		b.deps.DB = db
	}

	b.Backend = gormstorage.New(b.deps)
	return b.Backend.Init()
}

// Close flushes and stops the GORM backend. It is a no-op before Init.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
