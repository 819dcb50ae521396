package downloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	pkgdownloader "github.com/goran-ethernal/DropIndexor/pkg/downloader"
	"github.com/goran-ethernal/DropIndexor/pkg/fetcher"
	"github.com/russross/meddler"
)

var _ pkgdownloader.SyncManager = (*SyncManager)(nil)

const (
	syncStateTable = "sync_state"
	syncStateID    = 1
)

// SyncManager stores the downloader checkpoint in the sync_state table.
type SyncManager struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

type SyncState = pkgdownloader.SyncState

// NewSyncManager returns a SyncManager over a database migrated with internal/migrations.
func NewSyncManager(database *sql.DB, log *logger.Logger, maintenance db.Maintenance) (*SyncManager, error) {
	if database == nil {
		return nil, errors.New("sync manager requires a database")
	}
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &SyncManager{
		db:          database,
		log:         log.WithComponent(internalcommon.ComponentSyncManager),
		maintenance: maintenance,
	}, nil
}

// State returns the stored checkpoint.
func (sm *SyncManager) State(ctx context.Context) (*SyncState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	var state SyncState
	if err := meddler.QueryRow(sm.db, &state, "SELECT * FROM sync_state WHERE id = ?", syncStateID); err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}

	return &state, nil
}

// SaveCheckpoint records block as fully handed to every indexer.
func (sm *SyncManager) SaveCheckpoint(
	ctx context.Context,
	block uint64,
	hash common.Hash,
	mode fetcher.FetchMode,
) error {
	if err := sm.write(ctx, block, hash, mode); err != nil {
		return fmt.Errorf("failed to save checkpoint at block %d: %w", block, err)
	}

	sm.log.Debugw("checkpoint stored", "block", block, "hash", hash.Hex(), "mode", mode)

	return nil
}

// Rewind moves the checkpoint back to block and switches to backfill.
func (sm *SyncManager) Rewind(ctx context.Context, block uint64) error {
	if err := sm.write(ctx, block, common.Hash{}, fetcher.ModeBackfill); err != nil {
		return fmt.Errorf("failed to rewind sync state to block %d: %w", block, err)
	}

	sm.log.Warnw("sync state rewound", "block", block)

	return nil
}

func (sm *SyncManager) write(ctx context.Context, block uint64, hash common.Hash, mode fetcher.FetchMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := sm.maintenance.AcquireOperationLock()
	defer unlock()

	return meddler.Update(sm.db, syncStateTable, &SyncState{
		ID:                   syncStateID,
		LastIndexedBlock:     block,
		LastIndexedBlockHash: hash,
		LastIndexedTimestamp: time.Now().Unix(),
		Mode:                 string(mode),
	})
}

// Close closes the downloader database.
func (sm *SyncManager) Close() error {
	return sm.db.Close()
}
