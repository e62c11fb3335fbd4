// Package storage opens the program database backend selected by
// configuration.
package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"class-importer/internal/config"
	"class-importer/internal/logging"
	"class-importer/internal/progdb"
	"class-importer/internal/progdb/boltdb"
	"class-importer/internal/progdb/memdb"
	"class-importer/internal/progdb/sqlitedb"
)

// Store is a program database that can also register the open program.
type Store interface {
	progdb.Database
	progdb.Registrar
}

// Open opens the configured backend. The caller must Close it.
func Open(cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	logger = logging.OrDiscard(logger)
	logger.WithFields(logrus.Fields{"type": cfg.Type, "path": cfg.Path}).Debug("opening program database")

	switch cfg.Type {
	case config.StorageSQLite:
		db, err := sqlitedb.Open(cfg.Path, logger)
		if err != nil {
			return nil, err
		}

		return db, nil
	case config.StorageBolt:
		db, err := boltdb.Open(cfg.Path, logger)
		if err != nil {
			return nil, err
		}

		return db, nil
	case config.StorageMemory:
		return memdb.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
