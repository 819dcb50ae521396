package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"

	"github.com/goran-ethernal/DropIndexor/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

// NewSQLiteDB opens path with WAL journaling, foreign keys and a 30s busy timeout.
func NewSQLiteDB(path string) (*sql.DB, error) {
	return sql.Open(driverName, dsn(path, url.Values{
		"_txlock":       {"immediate"},
		"_foreign_keys": {"on"},
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"30000"},
	}))
}

// NewSQLiteDBFromConfig opens the database described by cfg and applies its pragmas
// and connection pool limits.
func NewSQLiteDBFromConfig(cfg config.DatabaseConfig) (*sql.DB, error) {
	foreignKeys := "off"
	if cfg.EnableForeignKeys {
		foreignKeys = "on"
	}

	database, err := sql.Open(driverName, dsn(cfg.Path, url.Values{
		"_txlock":       {"immediate"},
		"_foreign_keys": {foreignKeys},
		"_journal_mode": {cfg.JournalMode},
		"_busy_timeout": {strconv.Itoa(cfg.BusyTimeout)},
		"_synchronous":  {cfg.Synchronous},
		"_cache_size":   {strconv.Itoa(cfg.CacheSize)},
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	database.SetMaxOpenConns(cfg.MaxOpenConnections)
	database.SetMaxIdleConns(cfg.MaxIdleConnections)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Path, err)
	}

	return database, nil
}

func dsn(path string, params url.Values) string {
	for key, values := range params {
		if len(values) == 0 || values[0] == "" {
			delete(params, key)
		}
	}

	return fmt.Sprintf("file:%s?%s", path, params.Encode())
}

// DBTotalSize returns the combined size of the database file and its -wal and -shm companions.
// Missing files count as zero.
func DBTotalSize(path string) (int64, error) {
	var total int64
	for _, file := range []string{path, path + "-wal", path + "-shm"} {
		info, err := os.Stat(file)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			return 0, fmt.Errorf("failed to stat %s: %w", file, err)
		}
		total += info.Size()
	}

	return total, nil
}
