// Package postgres records sessions into PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/database"
	gormstorage "github.com/foosbot/goalkeeper/internal/storage/gorm"
)

// Backend is the GORM backend bound to a Postgres connection.
type Backend struct {
	*gormstorage.Backend
}

// New connects to Postgres. A failed connection is returned as an error
// so startup can abort.
func New(cfg config.DBConfig, logger *slog.Logger) (*Backend, error) {
	db, err := database.GetPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres DB at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger}),
	}, nil
}
