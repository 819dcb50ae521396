package downloader

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/DropIndexor/pkg/fetcher"
)

// SyncManager persists how far the downloader got.
type SyncManager interface {
	// State returns the stored checkpoint.
	State(ctx context.Context) (*SyncState, error)

	// SaveCheckpoint records block as fully handed to every indexer.
	SaveCheckpoint(ctx context.Context, block uint64, hash common.Hash, mode fetcher.FetchMode) error

	// Rewind moves the checkpoint back to block and switches to backfill.
	// The stored hash is cleared because block was not verified again.
	Rewind(ctx context.Context, block uint64) error

	Close() error
}

// SyncState is the single row of the sync_state table.
type SyncState struct {
	ID                   int         `meddler:"id,pk" json:"-"`
	LastIndexedBlock     uint64      `meddler:"last_indexed_block" json:"last_indexed_block"`
	LastIndexedBlockHash common.Hash `meddler:"last_indexed_block_hash,hash" json:"last_indexed_block_hash"`
	LastIndexedTimestamp int64       `meddler:"last_indexed_timestamp" json:"last_indexed_timestamp"`
	Mode                 string      `meddler:"mode" json:"mode"`
}

// FetchMode returns Mode as a fetcher.FetchMode.
func (s *SyncState) FetchMode() fetcher.FetchMode {
	return fetcher.FetchMode(s.Mode)
}
