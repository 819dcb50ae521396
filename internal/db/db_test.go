package db

import (
	"database/sql"
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/*.sql
var testdata embed.FS

func testMigrations(t *testing.T) fs.FS {
	t.Helper()

	files, err := fs.Sub(testdata, "testdata")
	require.NoError(t, err)

	return files
}

func newTestDB(t *testing.T, journalMode string) (*sql.DB, string) {
	t.Helper()

	cfg := config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.sqlite"),
		JournalMode: journalMode,
	}
	cfg.ApplyDefaults()

	database, err := NewSQLiteDBFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database, cfg.Path
}

func TestNewSQLiteDBFromConfig_AppliesPragmas(t *testing.T) {
	tests := []struct {
		journalMode string
		want        string
	}{
		{journalMode: "WAL", want: "wal"},
		{journalMode: "DELETE", want: "delete"},
	}

	for _, tt := range tests {
		t.Run(tt.journalMode, func(t *testing.T) {
			database, _ := newTestDB(t, tt.journalMode)

			var mode string
			require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
			require.Equal(t, tt.want, mode)

			var synchronous int
			require.NoError(t, database.QueryRow("PRAGMA synchronous").Scan(&synchronous))
			require.Equal(t, 1, synchronous, "NORMAL")
		})
	}
}

func TestNewSQLiteDBFromConfig_BadPath(t *testing.T) {
	cfg := config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite")}
	cfg.ApplyDefaults()

	_, err := NewSQLiteDBFromConfig(cfg)
	require.Error(t, err)
}

func TestRunMigrations(t *testing.T) {
	database, _ := newTestDB(t, "WAL")
	log := logger.NewNopLogger()

	version, err := MigrationVersion(database)
	require.NoError(t, err)
	require.Empty(t, version)

	require.NoError(t, RunMigrations(log, database, testMigrations(t)))
	// applying twice is a no-op
	require.NoError(t, RunMigrations(log, database, testMigrations(t)))

	version, err = MigrationVersion(database)
	require.NoError(t, err)
	require.Equal(t, "002_checkpoint_hash.sql", version)

	_, err = database.Exec(`INSERT INTO checkpoints (block, hash) VALUES (1, '0x01')`)
	require.NoError(t, err)
}

type checkpointRow struct {
	Block  uint64       `meddler:"block"`
	Hash   common.Hash  `meddler:"hash,hash"`
	Parent *common.Hash `meddler:"parent,hash"`
}

func TestHashMeddler(t *testing.T) {
	database, _ := newTestDB(t, "WAL")
	require.NoError(t, RunMigrations(logger.NewNopLogger(), database, testMigrations(t)))

	parent := common.HexToHash("0xaa")
	rows := []*checkpointRow{
		{Block: 1, Hash: common.HexToHash("0x01"), Parent: &parent},
		{Block: 2, Hash: common.HexToHash("0x02")},
	}
	for _, row := range rows {
		require.NoError(t, meddler.Insert(database, "checkpoints", row))
	}

	var got []*checkpointRow
	require.NoError(t, meddler.QueryAll(database, &got, `SELECT * FROM checkpoints ORDER BY block`))
	require.Equal(t, rows, got)

	_, err := database.Exec(`INSERT INTO checkpoints (block) VALUES (3)`)
	require.NoError(t, err)

	var nullHash checkpointRow
	require.NoError(t, meddler.QueryRow(database, &nullHash, `SELECT * FROM checkpoints WHERE block = 3`))
	require.Equal(t, common.Hash{}, nullHash.Hash)
	require.Nil(t, nullHash.Parent)
}

func TestDBTotalSize(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  int64
	}{
		{name: "missing database", want: 0},
		{name: "main file only", files: map[string]string{"": "main"}, want: 4},
		{
			name:  "with wal and shm",
			files: map[string]string{"": "main", "-wal": "wal-frames", "-shm": "shm"},
			want:  17,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "db.sqlite")
			for suffix, content := range tt.files {
				require.NoError(t, os.WriteFile(path+suffix, []byte(content), 0o600))
			}

			size, err := DBTotalSize(path)
			require.NoError(t, err)
			require.Equal(t, tt.want, size)
		})
	}
}
