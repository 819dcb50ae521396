package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/internal/metrics"
	"github.com/goran-ethernal/DropIndexor/pkg/fetcher"
	"github.com/goran-ethernal/DropIndexor/pkg/indexer"
	"golang.org/x/sync/errgroup"
)

// Refetcher fetches a block range again with the current log filter.
type Refetcher interface {
	FetchRange(ctx context.Context, fromBlock, toBlock uint64) (*fetcher.FetchResult, error)
}

// routeSource is a contract an indexer listens to.
// An empty topic set means the indexer wants ALL events from that address.
type routeSource struct {
	topics     map[common.Hash]struct{}
	startBlock uint64
}

// route holds the routing table of a single indexer.
type route struct {
	indexer    indexer.Indexer
	startBlock uint64
	sources    map[common.Address]*routeSource
}

func (r *route) wants(log types.Log) bool {
	if log.BlockNumber < r.startBlock {
		return false
	}

	src, ok := r.sources[log.Address]
	if !ok || log.BlockNumber < src.startBlock {
		return false
	}
	if len(src.topics) == 0 {
		return true
	}
	if len(log.Topics) == 0 {
		return false
	}

	// first topic is the event signature
	_, ok = src.topics[log.Topics[0]]
	return ok
}

// IndexerCoordinator fans fetched ranges out to the registered indexers, each receiving
// only the logs of the contracts and events it subscribed to.
type IndexerCoordinator struct {
	mu sync.RWMutex

	routes   map[indexer.Indexer]*route
	indexers []indexer.Indexer // registration order

	refetcher Refetcher
	log       *logger.Logger
}

// NewIndexerCoordinator returns a coordinator redelivering ranges through refetcher
// when an indexer subscribes to new contracts mid-batch.
func NewIndexerCoordinator(refetcher Refetcher, log *logger.Logger) *IndexerCoordinator {
	return &IndexerCoordinator{
		routes:    make(map[indexer.Indexer]*route),
		indexers:  make([]indexer.Indexer, 0),
		refetcher: refetcher,
		log:       log,
	}
}

// RegisterIndexer routes the sources declared by idx.EventsToIndex to it.
func (ic *IndexerCoordinator) RegisterIndexer(idx indexer.Indexer) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	startBlock := idx.StartBlock()
	r := &route{
		indexer:    idx,
		startBlock: startBlock,
		sources:    make(map[common.Address]*routeSource),
	}

	for addr, topics := range idx.EventsToIndex() {
		src := &routeSource{topics: make(map[common.Hash]struct{}, len(topics)), startBlock: startBlock}
		for topic := range topics {
			src.topics[topic] = struct{}{}
		}
		r.sources[addr] = src
	}

	ic.routes[idx] = r
	ic.indexers = append(ic.indexers, idx)
}

// AddRoute routes topics of address to idx from startBlock onwards.
// Routing a known address merges the topics and keeps the lower start block.
func (ic *IndexerCoordinator) AddRoute(idx indexer.Indexer, address common.Address, topics []common.Hash,
	startBlock uint64) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	r, ok := ic.routes[idx]
	if !ok {
		return fmt.Errorf("indexer %s is not registered", idx.Name())
	}

	src, exists := r.sources[address]
	if !exists {
		src = &routeSource{topics: make(map[common.Hash]struct{}, len(topics)), startBlock: startBlock}
		r.sources[address] = src
	}
	src.startBlock = min(src.startBlock, startBlock)
	for _, topic := range topics {
		src.topics[topic] = struct{}{}
	}

	return nil
}

// batchFor selects the logs of result routed to the indexer of r.
// When after is set, only logs strictly after that position are kept.
func (ic *IndexerCoordinator) batchFor(r *route, result *fetcher.FetchResult, after *indexer.LogPosition) indexer.Batch {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	logs := make([]types.Log, 0)
	for _, log := range result.Logs {
		if !r.wants(log) {
			continue
		}
		if after != nil && !after.Before(indexer.PositionOf(log)) {
			continue
		}
		logs = append(logs, log)
	}

	indexer.SortLogs(logs)

	return indexer.Batch{
		Logs:      logs,
		Headers:   result.Headers,
		FromBlock: result.FromBlock,
		ToBlock:   result.ToBlock,
		Finalized: result.Finalized,
	}
}

// HandleLogs delivers result to every indexer concurrently. Each indexer gets the logs
// matching its routes, in canonical order, and an empty batch is not delivered.
func (ic *IndexerCoordinator) HandleLogs(ctx context.Context, result *fetcher.FetchResult) error {
	ic.mu.RLock()
	routes := make([]*route, 0, len(ic.indexers))
	for _, idx := range ic.indexers {
		routes = append(routes, ic.routes[idx])
	}
	ic.mu.RUnlock()

	var g errgroup.Group
	for _, r := range routes {
		g.Go(func() error {
			return ic.deliver(ctx, r, ic.batchFor(r, result, nil))
		})
	}

	return g.Wait()
}

// deliver hands batch to the indexer of r. When the indexer subscribes to new contracts while
// handling it, the rest of the range is fetched again and redelivered until batch.ToBlock is reached.
func (ic *IndexerCoordinator) deliver(ctx context.Context, r *route, batch indexer.Batch) error {
	name := r.indexer.Name()
	target := batch.ToBlock

	for {
		start := time.Now()

		var err error
		if len(batch.Logs) > 0 {
			err = r.indexer.HandleLogs(ctx, batch)
		}

		var (
			changed *indexer.SourcesChangedError
			from    uint64
			after   *indexer.LogPosition
		)

		switch {
		case err == nil:
			metrics.BatchHandled(name, len(batch.Logs), batch.FromBlock, batch.ToBlock, time.Since(start))
			if batch.ToBlock >= target {
				return nil
			}
			from = batch.ToBlock + 1
		case errors.As(err, &changed):
			if ic.refetcher == nil {
				return fmt.Errorf("indexer %s changed its sources but no refetcher is configured: %w", name, err)
			}
			metrics.SourceRefetchInc(name)
			from, after = changed.After.Block, &changed.After
			ic.log.Debugw("indexer subscribed to new contracts, refetching",
				"indexer", name,
				"from_block", from,
				"to_block", target,
				"after_log", changed.After.Index,
			)
		default:
			return fmt.Errorf("indexer %s failed to handle logs: %w", name, err)
		}

		result, err := ic.refetcher.FetchRange(ctx, from, target)
		if err != nil {
			return fmt.Errorf("failed to refetch blocks %d-%d for indexer %s: %w", from, target, name, err)
		}

		batch = ic.batchFor(r, result, after)
	}
}

// HandleReorg rolls every indexer back to the state before blockNum, one at a time
// in registration order.
func (ic *IndexerCoordinator) HandleReorg(ctx context.Context, blockNum uint64) error {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	for _, idx := range ic.indexers {
		if err := idx.HandleReorg(ctx, blockNum); err != nil {
			return fmt.Errorf("indexer %s failed to handle reorg at block %d: %w", idx.Name(), blockNum, err)
		}
	}

	return nil
}

// IndexerStartBlocks returns the start block of every indexer in registration order.
func (ic *IndexerCoordinator) IndexerStartBlocks() []uint64 {
	ic.mu.RLock()
	defer ic.mu.RUnlock()

	blocks := make([]uint64, len(ic.indexers))
	for i, idx := range ic.indexers {
		blocks[i] = ic.routes[idx].startBlock
	}
	return blocks
}
