package indexer

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Indexer defines the interface that all indexers must implement.
// Indexers receive logs from the downloader and handle blockchain reorganizations.
type Indexer interface {
	// Name returns the configured name of the indexer.
	Name() string

	// EventsToIndex returns a map of contract addresses to their event topic hashes.
	// This is used by the coordinator to determine which logs should be sent to this indexer.
	// The inner map is a set (using struct{} as values) of topic hashes for each address.
	EventsToIndex() map[common.Address]map[common.Hash]struct{}

	// HandleLogs processes a batch of logs received from the downloader.
	// Logs are ordered by block number, transaction index and log index.
	HandleLogs(ctx context.Context, batch Batch) error

	// HandleReorg handles a blockchain reorganization starting from the given block number.
	// Implementations should roll back any data persisted at or after this block.
	HandleReorg(ctx context.Context, blockNum uint64) error

	// StartBlock returns the block number from which this indexer wants to start processing logs.
	// The downloader will use the minimum StartBlock across all registered indexers to determine
	// the earliest block to fetch. Each indexer will only receive logs from blocks >= its StartBlock.
	StartBlock() uint64
}

// DynamicIndexer is an Indexer that discovers new contracts to follow while indexing.
type DynamicIndexer interface {
	Indexer

	// SetSourceRegistrar is called once, before the first batch, with the registrar
	// the indexer uses to subscribe to new contracts.
	SetSourceRegistrar(registrar SourceRegistrar)
}

// SourceRegistrar adds contracts to the set of logs delivered to an indexer.
type SourceRegistrar interface {
	// RegisterSource subscribes to topics emitted by address from startBlock onwards.
	// Registering a known address merges the topics.
	RegisterSource(address common.Address, topics []common.Hash, startBlock uint64)
}

// Batch is a block range worth of logs delivered to an indexer.
type Batch struct {
	// Logs matching the indexer's sources, in canonical order
	Logs []types.Log

	// Headers of every block that has a log in Logs
	Headers map[uint64]*types.Header

	FromBlock uint64
	ToBlock   uint64

	// Finalized is the latest block the chain considers final
	Finalized uint64
}

// Timestamp returns the timestamp of block, if its header is part of the batch.
func (b Batch) Timestamp(block uint64) (uint64, bool) {
	header, ok := b.Headers[block]
	if !ok || header == nil {
		return 0, false
	}
	return header.Time, true
}

// LogPosition identifies a log within the chain.
type LogPosition struct {
	Block uint64
	Index uint
}

// PositionOf returns the position of log.
func PositionOf(log types.Log) LogPosition {
	return LogPosition{Block: log.BlockNumber, Index: log.Index}
}

// Before reports whether p comes strictly before other.
func (p LogPosition) Before(other LogPosition) bool {
	if p.Block != other.Block {
		return p.Block < other.Block
	}
	return p.Index < other.Index
}

// SourcesChangedError is returned by HandleLogs when the indexer registered new sources while
// processing the batch. Everything up to and including After has been applied; the remaining
// logs must be fetched again with the enlarged filter and redelivered.
type SourcesChangedError struct {
	After LogPosition
}

func (e *SourcesChangedError) Error() string {
	return fmt.Sprintf("sources changed after block %d log %d", e.After.Block, e.After.Index)
}

// SortLogs orders logs by block number, transaction index and log index.
func SortLogs(logs []types.Log) {
	slices.SortStableFunc(logs, func(a, b types.Log) int {
		return cmp.Or(
			cmp.Compare(a.BlockNumber, b.BlockNumber),
			cmp.Compare(a.TxIndex, b.TxIndex),
			cmp.Compare(a.Index, b.Index),
		)
	})
}
