package migrations

import (
	"database/sql"
	"embed"

	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
)

//go:embed *.sql
var files embed.FS

// RunMigrations brings an entity store database up to date.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	return db.RunMigrations(log, database, files)
}
