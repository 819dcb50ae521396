package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/goran-ethernal/DropIndexor/internal/logger"
	migrate "github.com/rubenv/sql-migrate"
)

// RunMigrations applies every pending migration found in the root of files.
// Migration files use the sql-migrate "-- +migrate Up/Down" annotations and are
// applied in file name order.
func RunMigrations(log *logger.Logger, database *sql.DB, files fs.FS) error {
	source := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(files)}

	applied, err := migrate.Exec(database, "sqlite3", source, migrate.Up)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if applied > 0 {
		log.Infof("applied %d migration(s)", applied)
	} else {
		log.Debug("database schema is up to date")
	}

	return nil
}

// MigrationVersion returns the id of the last applied migration, or "" for a fresh database.
func MigrationVersion(database *sql.DB) (string, error) {
	records, err := migrate.GetMigrationRecords(database, "sqlite3")
	if err != nil {
		return "", fmt.Errorf("failed to read migration records: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	return records[len(records)-1].Id, nil
}
