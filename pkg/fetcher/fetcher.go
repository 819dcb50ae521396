package fetcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFetcher produces verified ranges of subscribed logs for the downloader.
type LogFetcher interface {
	SetMode(mode FetchMode)
	GetMode() FetchMode

	// AddSource adds a contract to the log filter. Logs of address are fetched from startBlock
	// onwards. Adding a known address merges the topics and keeps the lower start block.
	AddSource(address common.Address, topics []common.Hash, startBlock uint64)

	// FetchRange returns the logs of [fromBlock, toBlock] after the reorg detector accepted
	// the range. A *reorg.ReorgDetectedError is returned when it did not. The covered range
	// may be narrower than requested when the node limits the result size.
	FetchRange(ctx context.Context, fromBlock, toBlock uint64) (*FetchResult, error)

	// Invalidate drops the logs kept for ranges at and after fromBlock, so blocks rolled back
	// by a reorg are read from the node again.
	Invalidate(fromBlock uint64)

	// FetchNext returns the range following lastIndexedBlock, blocking in live mode
	// until a new block is final.
	FetchNext(ctx context.Context, lastIndexedBlock uint64) (*FetchResult, error)
}

// FetchMode tells whether the fetcher is catching up or following the head.
type FetchMode string

const (
	// ModeBackfill fetches historical blocks in chunks
	ModeBackfill FetchMode = "backfill"
	// ModeLive tails new blocks as they arrive
	ModeLive FetchMode = "live"
)

func (m FetchMode) String() string {
	return string(m)
}

// FetchResult is one fetched range.
type FetchResult struct {
	// Logs matching the filter, in canonical order
	Logs []types.Log

	// Headers of the blocks in the range that carry logs, plus the non-finalized blocks recorded
	// by the reorg detector
	Headers map[uint64]*types.Header

	FromBlock uint64
	ToBlock   uint64

	// Finalized is the head the range was bounded by
	Finalized uint64
}

// Header returns the header of block, or nil if it was not fetched.
func (r *FetchResult) Header(block uint64) *types.Header {
	return r.Headers[block]
}
