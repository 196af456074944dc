package archive

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrateUp applies pending schema migrations to db. The migrate instance is not closed:
// closing it would close db.
func migrateUp(db *sql.DB, logger *logrus.Logger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("Archive schema is up to date")
			return nil
		}
		return fmt.Errorf("running migrations up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.WithError(err).Warn("Could not get migration version after up")
	} else {
		logger.WithFields(logrus.Fields{
			"version": version,
			"dirty":   dirty,
		}).Info("Archive migrations completed")
	}
	return nil
}
