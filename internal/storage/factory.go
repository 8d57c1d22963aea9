package storage

import (
	"log/slog"

	"github.com/foosbot/goalkeeper/internal/config"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/storage/memory"
	"github.com/foosbot/goalkeeper/internal/storage/postgres"
	sqlitestorage "github.com/foosbot/goalkeeper/internal/storage/sqlite"
	"github.com/foosbot/goalkeeper/internal/storage/textlog"
)

// NewBackend creates the storage backends named by cfg.Types. Several
// types fan out through Multi; cfg.Async wraps the result in Async.
// An unknown type or a failed connection is a configuration error.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backends := make([]Backend, 0, len(cfg.Types))
	for _, typ := range cfg.Types {
		b, err := newSingle(typ, cfg, logger)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	var backend Backend
	if len(backends) == 1 {
		backend = backends[0]
	} else {
		backend = NewMulti(backends...)
	}

	if cfg.Async {
		backend = NewAsync(backend, logger)
	}
	return backend, nil
}

func newSingle(typ string, cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch typ {
	case "textlog":
		return textlog.New(cfg.TextLog), nil
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		b, err := sqlitestorage.New(sqlitestorage.FromConfig(cfg.SQLite), logger)
		if err != nil {
			return nil, fault.Configuration(err)
		}
		return b, nil
	case "postgres":
		b, err := postgres.New(cfg.DB, logger)
		if err != nil {
			return nil, fault.Configuration(err)
		}
		return b, nil
	default:
		return nil, fault.Configurationf("unknown storage type: %s", typ)
	}
}
