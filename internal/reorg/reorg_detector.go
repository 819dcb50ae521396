package reorg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	internalcommon "github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/internal/metrics"
	"github.com/goran-ethernal/DropIndexor/pkg/reorg"
	"github.com/goran-ethernal/DropIndexor/pkg/rpc"
	"github.com/russross/meddler"
)

var _ reorg.Detector = (*ReorgDetector)(nil)

const blockHashesTable = "block_hashes"

// ReorgDetector keeps the hashes of indexed blocks that are not final yet and
// compares them with the chain before every new range is handed to the indexers.
type ReorgDetector struct {
	db          *sql.DB
	rpc         rpc.EthClient
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewReorgDetector creates a detector recording block hashes in the block_hashes table of database.
func NewReorgDetector(
	database *sql.DB,
	rpcClient rpc.EthClient,
	log *logger.Logger,
	maintenance db.Maintenance,
) (*ReorgDetector, error) {
	if database == nil || rpcClient == nil {
		return nil, errors.New("reorg detector requires a database and an RPC client")
	}
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	metrics.ComponentHealthSet(internalcommon.ComponentReorgDetector, true)

	return &ReorgDetector{
		db:          database,
		rpc:         rpcClient,
		log:         log,
		maintenance: maintenance,
	}, nil
}

// StoredBlock is a recorded block hash.
type StoredBlock struct {
	BlockNumber uint64      `meddler:"block_number"`
	BlockHash   common.Hash `meddler:"block_hash,hash"`
	ParentHash  common.Hash `meddler:"parent_hash,hash"`
}

// VerifyAndRecordBlocks checks, inside one transaction, that:
//   - every recorded block above the finalized block is still canonical,
//   - the logs of the new range come from the blocks the node reports now,
//   - the new headers form a chain linked to the recorded ones.
//
// It then records the non-finalized headers of [fromBlock, toBlock] and returns them.
// Finalized blocks are pruned, so nil is returned for a fully finalized range.
func (r *ReorgDetector) VerifyAndRecordBlocks(
	ctx context.Context,
	logs []types.Log,
	fromBlock, toBlock uint64,
) ([]*types.Header, error) {
	unlock := r.maintenance.AcquireOperationLock()
	defer unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	finalizedHeader, err := r.rpc.GetFinalizedBlockHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get finalized block header: %w", err)
	}
	finalized := finalizedHeader.Number.Uint64()

	if err := r.pruneFinalized(tx, finalizedHeader); err != nil {
		return nil, err
	}

	recorded, err := r.verifyRecorded(ctx, tx, finalized)
	if err != nil {
		return nil, err
	}

	headers, err := r.fetchUnfinalized(ctx, fromBlock, toBlock, finalized)
	if err != nil || len(headers) == 0 {
		return nil, err
	}

	if err := r.verifyLogs(logs, headers); err != nil {
		return nil, err
	}
	if err := r.verifyLinks(headers, recorded); err != nil {
		return nil, err
	}

	if err := r.record(tx, headers); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.log.Debugw("recorded block hashes",
		"from_block", headers[0].Number.Uint64(),
		"to_block", headers[len(headers)-1].Number.Uint64(),
	)

	return headers, nil
}

// pruneFinalized removes recorded blocks up to the finalized one. A recorded
// finalized block whose hash disagrees is kept so verifyRecorded reports it.
func (r *ReorgDetector) pruneFinalized(tx *sql.Tx, finalized *types.Header) error {
	number := finalized.Number.Uint64()

	var stored StoredBlock
	err := meddler.QueryRow(tx, &stored, "SELECT * FROM block_hashes WHERE block_number = ?", number)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read recorded block %d: %w", number, err)
	case stored.BlockHash != finalized.Hash():
		r.log.Warnw("recorded hash of the finalized block differs from the chain",
			"block", number,
			"recorded_hash", stored.BlockHash.Hex(),
			"chain_hash", finalized.Hash().Hex(),
		)
		return nil
	}

	res, err := tx.Exec("DELETE FROM block_hashes WHERE block_number <= ?", number)
	if err != nil {
		return fmt.Errorf("failed to prune finalized blocks: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		r.log.Debugf("pruned %d finalized block hashes up to block %d", n, number)
	}

	return nil
}

// verifyRecorded compares recorded blocks at or above the finalized block with the chain
// and returns them, oldest first.
func (r *ReorgDetector) verifyRecorded(ctx context.Context, tx *sql.Tx, finalized uint64) ([]*StoredBlock, error) {
	var recorded []*StoredBlock
	if err := meddler.QueryAll(tx, &recorded,
		"SELECT * FROM block_hashes WHERE block_number >= ? ORDER BY block_number", finalized); err != nil {
		return nil, fmt.Errorf("failed to read recorded blocks: %w", err)
	}
	if len(recorded) == 0 {
		return nil, nil
	}

	numbers := make([]uint64, len(recorded))
	for i, b := range recorded {
		numbers[i] = b.BlockNumber
	}

	current, err := r.rpc.BatchGetBlockHeaders(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recorded headers: %w", err)
	}

	for i, header := range current {
		if header.Hash() != recorded[i].BlockHash {
			return nil, r.reorgFound("recorded", header.Number.Uint64(), uint64(len(recorded)-i),
				fmt.Sprintf("recorded_hash=%s chain_hash=%s", recorded[i].BlockHash.Hex(), header.Hash().Hex()))
		}
	}

	return recorded, nil
}

func (r *ReorgDetector) fetchUnfinalized(ctx context.Context, fromBlock, toBlock, finalized uint64) ([]*types.Header, error) {
	first := max(fromBlock, finalized+1)
	if first > toBlock {
		return nil, nil
	}

	numbers := make([]uint64, 0, toBlock-first+1)
	for n := first; n <= toBlock; n++ {
		numbers = append(numbers, n)
	}

	headers, err := r.rpc.BatchGetBlockHeaders(ctx, numbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headers for range: %w", err)
	}

	return headers, nil
}

// verifyLogs catches a reorg that happened between eth_getLogs and the header fetch.
func (r *ReorgDetector) verifyLogs(logs []types.Log, headers []*types.Header) error {
	byNumber := make(map[uint64]*types.Header, len(headers))
	for _, h := range headers {
		byNumber[h.Number.Uint64()] = h
	}

	last := headers[len(headers)-1].Number.Uint64()
	for _, l := range logs {
		header, ok := byNumber[l.BlockNumber]
		if !ok || header.Hash() == l.BlockHash {
			continue
		}

		return r.reorgFound("logs", l.BlockNumber, last-l.BlockNumber+1,
			fmt.Sprintf("log_hash=%s header_hash=%s", l.BlockHash.Hex(), header.Hash().Hex()))
	}

	return nil
}

// verifyLinks checks parent hashes inside the new range and against the recorded block preceding it.
func (r *ReorgDetector) verifyLinks(headers []*types.Header, recorded []*StoredBlock) error {
	last := headers[len(headers)-1].Number.Uint64()

	first := headers[0]
	for _, b := range recorded {
		if b.BlockNumber+1 == first.Number.Uint64() && first.ParentHash != b.BlockHash {
			return r.reorgFound("link", b.BlockNumber, last-b.BlockNumber+1,
				fmt.Sprintf("block %d does not extend recorded block %d", first.Number.Uint64(), b.BlockNumber))
		}
	}

	for i := 1; i < len(headers); i++ {
		prev, cur := headers[i-1], headers[i]
		if cur.ParentHash != prev.Hash() {
			return r.reorgFound("link", cur.Number.Uint64(), last-cur.Number.Uint64()+1,
				fmt.Sprintf("chain discontinuity between blocks %d and %d", prev.Number.Uint64(), cur.Number.Uint64()))
		}
	}

	return nil
}

// record replaces recorded blocks from the first header onwards with headers.
func (r *ReorgDetector) record(tx *sql.Tx, headers []*types.Header) error {
	if _, err := tx.Exec("DELETE FROM block_hashes WHERE block_number >= ?", headers[0].Number.Uint64()); err != nil {
		return fmt.Errorf("failed to replace recorded blocks: %w", err)
	}

	for _, h := range headers {
		block := &StoredBlock{
			BlockNumber: h.Number.Uint64(),
			BlockHash:   h.Hash(),
			ParentHash:  h.ParentHash,
		}
		if err := meddler.Insert(tx, blockHashesTable, block); err != nil {
			return fmt.Errorf("failed to record block %d: %w", block.BlockNumber, err)
		}
	}

	return nil
}

func (r *ReorgDetector) reorgFound(check string, block, depth uint64, details string) error {
	r.log.Warnw("reorg detected", "check", check, "block", block, "depth", depth, "details", details)
	observeReorg(check, block, depth)

	return reorg.NewReorgError(block, details)
}

// Forget drops every recorded block from fromBlock onwards. It is called after a reorg
// so that the replaced blocks are not verified again.
func (r *ReorgDetector) Forget(ctx context.Context, fromBlock uint64) error {
	unlock := r.maintenance.AcquireOperationLock()
	defer unlock()

	res, err := r.db.ExecContext(ctx, "DELETE FROM block_hashes WHERE block_number >= ?", fromBlock)
	if err != nil {
		return fmt.Errorf("failed to forget blocks from %d: %w", fromBlock, err)
	}

	n, _ := res.RowsAffected()
	r.log.Infow("forgot recorded blocks", "from_block", fromBlock, "deleted", n)

	return nil
}

// Close marks the detector unhealthy. The database is owned by the caller.
func (r *ReorgDetector) Close() error {
	metrics.ComponentHealthSet(internalcommon.ComponentReorgDetector, false)
	return nil
}
