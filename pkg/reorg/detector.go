package reorg

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// Detector verifies fetched block ranges against the canonical chain.
type Detector interface {
	// VerifyAndRecordBlocks checks the stored non-finalized blocks and the new range for reorgs,
	// then records the headers of the new non-finalized blocks.
	// It returns *ReorgDetectedError when the chain changed underneath the indexer.
	VerifyAndRecordBlocks(ctx context.Context, logs []types.Log, fromBlock, toBlock uint64) ([]*types.Header, error)

	// Forget drops every recorded block from fromBlock onwards.
	Forget(ctx context.Context, fromBlock uint64) error

	// Close releases the underlying resources.
	Close() error
}

// ReorgDetectedError is returned when a blockchain reorganization is detected.
type ReorgDetectedError struct {
	FirstReorgBlock uint64
	Details         string
}

func (e *ReorgDetectedError) Error() string {
	return fmt.Sprintf("reorg detected at block %d: %s", e.FirstReorgBlock, e.Details)
}

// NewReorgError creates a new ReorgDetectedError.
func NewReorgError(firstReorgBlock uint64, details string) error {
	return &ReorgDetectedError{
		FirstReorgBlock: firstReorgBlock,
		Details:         details,
	}
}
