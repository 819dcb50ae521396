package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/internal/metrics"
	"github.com/goran-ethernal/DropIndexor/internal/store/migrations"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
	"github.com/russross/meddler"
)

var _ store.VersionedStore = (*SQLiteStore)(nil)

const (
	entityVersionsTable = "entity_versions"
	metricsDBName       = "entity-store"
)

// entityVersion is one row of the entity_versions table.
type entityVersion struct {
	EntityType  string `meddler:"entity_type"`
	ID          string `meddler:"id"`
	BlockNumber uint64 `meddler:"block_number"`
	Data        string `meddler:"data"`
}

// SQLiteStore is a VersionedStore backed by a SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewSQLiteStore opens the database described by cfg, runs the entity store migrations
// and wires the maintenance coordinator.
func NewSQLiteStore(cfg config.DatabaseConfig, maintenanceCfg *config.MaintenanceConfig,
	log *logger.Logger) (*SQLiteStore, error) {
	database, err := db.NewSQLiteDBFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	storeLog := log.WithComponent(common.ComponentEntityStore)

	if err := migrations.RunMigrations(storeLog, database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewSQLiteStoreFromDB(database, db.NewMaintenanceCoordinator(cfg.Path, database, maintenanceCfg, log), storeLog), nil
}

// NewSQLiteStoreFromDB wraps an already migrated database.
func NewSQLiteStoreFromDB(database *sql.DB, maintenance db.Maintenance, log *logger.Logger) *SQLiteStore {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	metrics.ComponentHealthSet(common.ComponentEntityStore, true)

	return &SQLiteStore{
		db:          database,
		log:         log,
		maintenance: maintenance,
	}
}

// Maintenance returns the maintenance coordinator guarding this store.
func (s *SQLiteStore) Maintenance() db.Maintenance {
	return s.maintenance
}

// Get loads the latest version of (t, id) into dst.
func (s *SQLiteStore) Get(ctx context.Context, t store.EntityType, id string, dst store.Entity) (bool, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return get(ctx, s.db, t, id, dst)
}

// Save records e at the block carried by ctx.
func (s *SQLiteStore) Save(ctx context.Context, e store.Entity) error {
	return s.RunInTx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.Save(ctx, e)
	})
}

// List returns the sorted ids of every entity of type t.
func (s *SQLiteStore) List(ctx context.Context, t store.EntityType) ([]string, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return list(ctx, s.db, t)
}

// RunInTx runs fn inside a single database transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	start := time.Now()
	defer func() {
		metrics.DBQueryDuration(metricsDBName, "tx", time.Since(start))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.DBErrorsInc(metricsDBName, "begin")
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if err := fn(ctx, &sqliteTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		metrics.DBErrorsInc(metricsDBName, "commit")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rollback discards every version written after toBlock.
func (s *SQLiteStore) Rollback(ctx context.Context, toBlock uint64) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM entity_versions WHERE block_number > ?", toBlock)
	if err != nil {
		metrics.DBErrorsInc(metricsDBName, "rollback")
		return fmt.Errorf("failed to roll back entity versions after block %d: %w", toBlock, err)
	}

	rows, _ := result.RowsAffected()
	s.log.Warnf("rolled back entity versions: to_block=%d deleted=%d", toBlock, rows)

	return nil
}

// PruneHistory drops every version superseded by a newer version at or below belowBlock.
func (s *SQLiteStore) PruneHistory(ctx context.Context, belowBlock uint64) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return s.pruneHistory(ctx, belowBlock)
}

// PruneTask returns a maintenance task pruning history below the block reported by finalized.
// The task runs under the maintenance lock, so it bypasses AcquireOperationLock.
func (s *SQLiteStore) PruneTask(finalized func() uint64) db.TaskFunc {
	return func(ctx context.Context) error {
		block := finalized()
		if block == 0 {
			return nil
		}
		return s.pruneHistory(ctx, block)
	}
}

func (s *SQLiteStore) pruneHistory(ctx context.Context, belowBlock uint64) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM entity_versions
		WHERE block_number < ?
		  AND EXISTS (
			SELECT 1 FROM entity_versions AS newer
			WHERE newer.entity_type = entity_versions.entity_type
			  AND newer.id = entity_versions.id
			  AND newer.block_number > entity_versions.block_number
			  AND newer.block_number <= ?
		  )`, belowBlock, belowBlock)
	if err != nil {
		metrics.DBErrorsInc(metricsDBName, "prune")
		return fmt.Errorf("failed to prune entity history below block %d: %w", belowBlock, err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		s.log.Debugf("pruned entity history: below_block=%d deleted=%d", belowBlock, rows)
	}

	return nil
}

// History returns every version of (t, id), oldest first.
func (s *SQLiteStore) History(ctx context.Context, t store.EntityType, id string) ([]store.Version, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var rows []*entityVersion
	err := meddler.QueryAll(s.db, &rows,
		"SELECT * FROM entity_versions WHERE entity_type = ? AND id = ? ORDER BY block_number ASC",
		string(t), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query history of %s %s: %w", t, id, err)
	}

	versions := make([]store.Version, len(rows))
	for i, row := range rows {
		versions[i] = store.Version{Block: row.BlockNumber, Data: json.RawMessage(row.Data)}
	}

	return versions, nil
}

// Close stops maintenance and closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.maintenance.Stop(); err != nil {
		s.log.Warnf("failed to stop maintenance: %v", err)
	}

	metrics.ComponentHealthSet(common.ComponentEntityStore, false)

	return s.db.Close()
}

// sqliteTx is handed to RunInTx callbacks.
type sqliteTx struct {
	q *sql.Tx
}

func (tx *sqliteTx) Get(ctx context.Context, t store.EntityType, id string, dst store.Entity) (bool, error) {
	return get(ctx, tx.q, t, id, dst)
}

func (tx *sqliteTx) List(ctx context.Context, t store.EntityType) ([]string, error) {
	return list(ctx, tx.q, t)
}

func (tx *sqliteTx) Save(ctx context.Context, e store.Entity) error {
	block, ok := store.BlockFromContext(ctx)
	if !ok {
		return store.ErrNoBlock
	}

	start := time.Now()
	metrics.DBQueryInc(metricsDBName, "save")
	defer func() {
		metrics.DBQueryDuration(metricsDBName, "save", time.Since(start))
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", e.EntityType(), e.EntityID(), err)
	}

	var latest sql.NullInt64
	err = tx.q.QueryRowContext(ctx,
		"SELECT MAX(block_number) FROM entity_versions WHERE entity_type = ? AND id = ?",
		string(e.EntityType()), e.EntityID(),
	).Scan(&latest)
	if err != nil {
		metrics.DBErrorsInc(metricsDBName, "save")
		return fmt.Errorf("failed to query latest version of %s %s: %w", e.EntityType(), e.EntityID(), err)
	}

	if latest.Valid && uint64(latest.Int64) > block {
		return fmt.Errorf("%w: %s %s at block %d, latest %d",
			store.ErrStaleWrite, e.EntityType(), e.EntityID(), block, latest.Int64)
	}

	if latest.Valid && uint64(latest.Int64) == block {
		if _, err := tx.q.ExecContext(ctx,
			"DELETE FROM entity_versions WHERE entity_type = ? AND id = ? AND block_number = ?",
			string(e.EntityType()), e.EntityID(), block,
		); err != nil {
			metrics.DBErrorsInc(metricsDBName, "save")
			return fmt.Errorf("failed to replace version of %s %s: %w", e.EntityType(), e.EntityID(), err)
		}
	}

	row := &entityVersion{
		EntityType:  string(e.EntityType()),
		ID:          e.EntityID(),
		BlockNumber: block,
		Data:        string(data),
	}
	if err := meddler.Insert(tx.q, entityVersionsTable, row); err != nil {
		metrics.DBErrorsInc(metricsDBName, "save")
		return fmt.Errorf("failed to save %s %s: %w", e.EntityType(), e.EntityID(), err)
	}

	return nil
}

func get(ctx context.Context, q meddler.DB, t store.EntityType, id string, dst store.Entity) (bool, error) {
	start := time.Now()
	metrics.DBQueryInc(metricsDBName, "get")
	defer func() {
		metrics.DBQueryDuration(metricsDBName, "get", time.Since(start))
	}()

	var row entityVersion
	err := meddler.QueryRow(q, &row,
		"SELECT * FROM entity_versions WHERE entity_type = ? AND id = ? ORDER BY block_number DESC LIMIT 1",
		string(t), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		metrics.DBErrorsInc(metricsDBName, "get")
		return false, fmt.Errorf("failed to load %s %s: %w", t, id, err)
	}

	if err := json.Unmarshal([]byte(row.Data), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", t, id, err)
	}

	return true, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func list(ctx context.Context, q queryer, t store.EntityType) ([]string, error) {
	metrics.DBQueryInc(metricsDBName, "list")

	rows, err := q.QueryContext(ctx,
		"SELECT DISTINCT id FROM entity_versions WHERE entity_type = ? ORDER BY id", string(t))
	if err != nil {
		metrics.DBErrorsInc(metricsDBName, "list")
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", t, err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
