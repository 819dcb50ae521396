package fetcher

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	irpc "github.com/goran-ethernal/DropIndexor/internal/rpc"
	itypes "github.com/goran-ethernal/DropIndexor/internal/types"
	"github.com/goran-ethernal/DropIndexor/pkg/fetcher"
	"github.com/goran-ethernal/DropIndexor/pkg/indexer"
	"github.com/goran-ethernal/DropIndexor/pkg/reorg"
	"github.com/goran-ethernal/DropIndexor/pkg/rpc"
)

var _ fetcher.LogFetcher = (*LogFetcher)(nil)

const (
	defaultPollInterval         = 12 * time.Second
	defaultMaxAddressesPerQuery = 500
)

type LogFetcherConfig struct {
	ChunkSize uint64
	Finality  itypes.BlockFinality

	// FinalizedLag is subtracted from the head selected by Finality
	FinalizedLag uint64

	// PollInterval is the wait between head checks once live mode has caught up
	PollInterval time.Duration

	// MaxAddressesPerQuery caps the addresses of a single eth_getLogs filter
	MaxAddressesPerQuery int
}

type source struct {
	topics     map[ethcommon.Hash]struct{}
	startBlock uint64
}

// LogFetcher turns block ranges into filtered, verified batches of logs.
// Its filter is a set of sources that can grow while the fetcher runs.
type LogFetcher struct {
	cfg           LogFetcherConfig
	rpc           rpc.EthClient
	reorgDetector reorg.Detector
	log           *logger.Logger
	cache         *logCache

	mu        sync.RWMutex
	mode      fetcher.FetchMode
	sources   map[ethcommon.Address]*source
	finalized uint64
}

func NewLogFetcher(
	cfg LogFetcherConfig,
	log *logger.Logger,
	rpcClient rpc.EthClient,
	reorgDetector reorg.Detector,
) *LogFetcher {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAddressesPerQuery <= 0 {
		cfg.MaxAddressesPerQuery = defaultMaxAddressesPerQuery
	}

	return &LogFetcher{
		cfg:           cfg,
		rpc:           rpcClient,
		reorgDetector: reorgDetector,
		log:           log,
		cache:         newLogCache(),
		mode:          fetcher.ModeBackfill,
		sources:       make(map[ethcommon.Address]*source),
	}
}

func (lf *LogFetcher) SetMode(mode fetcher.FetchMode) {
	lf.mu.Lock()
	prev := lf.mode
	lf.mode = mode
	lf.mu.Unlock()

	if prev != mode {
		lf.log.Infow("fetch mode changed", "from", prev, "to", mode)
	}
}

func (lf *LogFetcher) GetMode() fetcher.FetchMode {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	return lf.mode
}

// AddSource adds a contract to the log filter.
func (lf *LogFetcher) AddSource(address ethcommon.Address, topics []ethcommon.Hash, startBlock uint64) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	src, exists := lf.sources[address]
	if !exists {
		src = &source{topics: make(map[ethcommon.Hash]struct{}, len(topics)), startBlock: startBlock}
		lf.sources[address] = src
	}
	src.startBlock = min(src.startBlock, startBlock)

	for _, topic := range topics {
		src.topics[topic] = struct{}{}
	}

	SourcesSet(len(lf.sources))

	lf.log.Debugw("source added",
		"address", address.Hex(),
		"topics", len(src.topics),
		"start_block", src.startBlock,
	)
}

// Sources returns the number of contracts in the filter.
func (lf *LogFetcher) Sources() int {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	return len(lf.sources)
}

// filterSnapshot holds the part of the filter active for a block range.
type filterSnapshot struct {
	addresses []ethcommon.Address
	topics    []ethcommon.Hash
	sources   map[ethcommon.Address]source
}

func (f filterSnapshot) matches(log types.Log) bool {
	src, ok := f.sources[log.Address]
	if !ok || log.BlockNumber < src.startBlock || len(log.Topics) == 0 {
		return false
	}
	_, ok = src.topics[log.Topics[0]]
	return ok
}

// subset returns the part of the filter for the addresses keep accepts.
func (f filterSnapshot) subset(keep func(ethcommon.Address) bool) filterSnapshot {
	sub := filterSnapshot{sources: make(map[ethcommon.Address]source)}
	topicSet := make(map[ethcommon.Hash]struct{})

	for _, addr := range f.addresses {
		if !keep(addr) {
			continue
		}
		sub.addresses = append(sub.addresses, addr)
		sub.sources[addr] = f.sources[addr]
		maps.Copy(topicSet, f.sources[addr].topics)
	}
	sub.topics = slices.SortedFunc(maps.Keys(topicSet), func(a, b ethcommon.Hash) int { return a.Cmp(b) })

	return sub
}

// activeFilter returns the sources that have reached their start block by toBlock.
func (lf *LogFetcher) activeFilter(toBlock uint64) filterSnapshot {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	snapshot := filterSnapshot{sources: make(map[ethcommon.Address]source, len(lf.sources))}
	topicSet := make(map[ethcommon.Hash]struct{})

	for addr, src := range lf.sources {
		if src.startBlock > toBlock {
			continue
		}
		snapshot.addresses = append(snapshot.addresses, addr)
		snapshot.sources[addr] = source{topics: maps.Clone(src.topics), startBlock: src.startBlock}
		maps.Copy(topicSet, src.topics)
	}

	slices.SortFunc(snapshot.addresses, func(a, b ethcommon.Address) int { return a.Cmp(b) })
	snapshot.topics = slices.SortedFunc(maps.Keys(topicSet), func(a, b ethcommon.Hash) int { return a.Cmp(b) })

	return snapshot
}

// FetchRange returns the subscribed logs of [fromBlock, toBlock] in canonical order
// once the reorg detector accepted them. Contracts whose logs for the range are cached
// are not queried again. The node may force a narrower range; the result reports the
// range that was actually covered.
func (lf *LogFetcher) FetchRange(ctx context.Context, fromBlock, toBlock uint64) (*fetcher.FetchResult, error) {
	if fromBlock > toBlock {
		return nil, fmt.Errorf("invalid block range: from %d is after to %d", fromBlock, toBlock)
	}

	filter := lf.activeFilter(toBlock)

	cached := make(map[ethcommon.Address][]types.Log)
	for _, addr := range filter.addresses {
		if held, ok := lf.cache.lookup(addr, filter.sources[addr], fromBlock, toBlock); ok {
			cached[addr] = held
		}
	}
	missing := filter.subset(func(addr ethcommon.Address) bool {
		_, ok := cached[addr]
		return !ok
	})

	var logs []types.Log
	if len(missing.addresses) > 0 {
		var err error
		if logs, toBlock, err = lf.fetchLogs(ctx, fromBlock, toBlock, missing); err != nil {
			return nil, fmt.Errorf("failed to fetch logs: %w", err)
		}

		logs = slices.DeleteFunc(logs, func(l types.Log) bool { return l.Removed || !missing.matches(l) })
	}
	for _, held := range cached {
		for _, l := range held {
			if l.BlockNumber <= toBlock {
				logs = append(logs, l)
			}
		}
	}
	indexer.SortLogs(logs)

	verified, err := lf.reorgDetector.VerifyAndRecordBlocks(ctx, logs, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to verify blocks: %w", err)
	}

	headers, err := lf.collectHeaders(ctx, logs, verified, toBlock)
	if err != nil {
		return nil, err
	}

	if len(missing.addresses) > 0 {
		lf.cache.store(missing, logs, fromBlock, toBlock)
	}

	CacheHitAdd(len(cached))
	LogsFetchedAdd(len(logs))
	lf.log.Infow("range fetched",
		"from_block", fromBlock,
		"to_block", toBlock,
		"addresses", len(filter.addresses),
		"cached_addresses", len(cached),
		"logs", len(logs),
	)

	return &fetcher.FetchResult{
		Logs:      logs,
		Headers:   headers,
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Finalized: lf.lastFinalized(),
	}, nil
}

// Invalidate drops the cached logs at and after fromBlock.
func (lf *LogFetcher) Invalidate(fromBlock uint64) {
	lf.cache.invalidate(fromBlock)
	lf.log.Debugw("log cache invalidated", "from_block", fromBlock)
}

// collectHeaders returns the headers of every block carrying a log plus the last block of the range,
// reusing the headers already fetched by the reorg detector.
func (lf *LogFetcher) collectHeaders(
	ctx context.Context,
	logs []types.Log,
	verified []*types.Header,
	toBlock uint64,
) (map[uint64]*types.Header, error) {
	headers := make(map[uint64]*types.Header, len(verified)+1)
	for _, h := range verified {
		headers[h.Number.Uint64()] = h
	}

	var missing []uint64
	need := func(block uint64) {
		if _, ok := headers[block]; ok {
			return
		}
		if !slices.Contains(missing, block) {
			missing = append(missing, block)
		}
	}
	for _, l := range logs {
		need(l.BlockNumber)
	}
	need(toBlock)

	if len(missing) == 0 {
		return headers, nil
	}

	fetched, err := lf.rpc.BatchGetBlockHeaders(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block headers: %w", err)
	}
	for _, h := range fetched {
		headers[h.Number.Uint64()] = h
	}

	for _, l := range logs {
		h, ok := headers[l.BlockNumber]
		if !ok {
			return nil, fmt.Errorf("missing header for block %d", l.BlockNumber)
		}
		if h.Hash() != l.BlockHash {
			return nil, reorg.NewReorgError(l.BlockNumber,
				fmt.Sprintf("log_hash=%s header_hash=%s", l.BlockHash.Hex(), h.Hash().Hex()))
		}
	}

	return headers, nil
}

// FetchNext returns the next range after lastIndexedBlock, at most ChunkSize blocks
// and never past the finalized head. Backfill switches to live mode once it reaches
// the head; live mode polls until a new block becomes final.
func (lf *LogFetcher) FetchNext(ctx context.Context, lastIndexedBlock uint64) (*fetcher.FetchResult, error) {
	from := lastIndexedBlock + 1

	// ranges up to the checkpoint are never fetched again
	lf.cache.prune(lastIndexedBlock)

	for {
		head, err := lf.refreshFinalized(ctx)
		if err != nil {
			return nil, err
		}

		switch mode := lf.GetMode(); mode {
		case fetcher.ModeBackfill:
			if from >= head {
				lf.SetMode(fetcher.ModeLive)
			}
		case fetcher.ModeLive:
		default:
			return nil, fmt.Errorf("unknown fetch mode: %s", mode)
		}

		if from <= head {
			return lf.FetchRange(ctx, from, min(head, from+lf.cfg.ChunkSize-1))
		}

		lf.log.Debugw("waiting for blocks", "last_indexed", lastIndexedBlock, "finalized", head)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lf.cfg.PollInterval):
		}
	}
}

func (lf *LogFetcher) refreshFinalized(ctx context.Context) (uint64, error) {
	header, err := lf.cfg.Finality.Head(ctx, lf.rpc, lf.cfg.FinalizedLag)
	if err != nil {
		return 0, fmt.Errorf("failed to get finalized block: %w", err)
	}

	num := header.Number.Uint64()
	FinalizedBlockLogSet(num)

	lf.mu.Lock()
	lf.finalized = num
	lf.mu.Unlock()

	return num, nil
}

func (lf *LogFetcher) lastFinalized() uint64 {
	lf.mu.RLock()
	defer lf.mu.RUnlock()

	return lf.finalized
}

// buildQueries splits the filter addresses into groups of at most MaxAddressesPerQuery.
// Topics are matched on the event signature only.
func (lf *LogFetcher) buildQueries(fromBlock, toBlock uint64, filter filterSnapshot) []ethereum.FilterQuery {
	var topics [][]ethcommon.Hash
	if len(filter.topics) > 0 {
		topics = [][]ethcommon.Hash{filter.topics}
	}

	queries := make([]ethereum.FilterQuery, 0, len(filter.addresses)/lf.cfg.MaxAddressesPerQuery+1)
	for group := range slices.Chunk(filter.addresses, lf.cfg.MaxAddressesPerQuery) {
		queries = append(queries, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: group,
			Topics:    topics,
		})
	}

	return queries
}

func (lf *LogFetcher) getLogs(ctx context.Context, queries []ethereum.FilterQuery) ([]types.Log, error) {
	if len(queries) == 1 {
		return lf.rpc.GetLogs(ctx, queries[0])
	}

	results, err := lf.rpc.BatchGetLogs(ctx, queries)
	if err != nil {
		return nil, err
	}

	var logs []types.Log
	for _, r := range results {
		logs = append(logs, r...)
	}
	return logs, nil
}

// fetchLogs queries [fromBlock, toBlock], narrowing the range while the node refuses
// the result size. It returns the logs and the last block they cover.
func (lf *LogFetcher) fetchLogs(
	ctx context.Context,
	fromBlock, toBlock uint64,
	filter filterSnapshot,
) ([]types.Log, uint64, error) {
	for {
		logs, err := lf.getLogs(ctx, lf.buildQueries(fromBlock, toBlock, filter))
		if err == nil {
			return logs, toBlock, nil
		}

		hint, tooMany := irpc.TooManyResults(err)
		switch {
		case !tooMany:
			return nil, 0, err
		case hint.Within(fromBlock, toBlock):
			toBlock = hint.To
		case fromBlock == toBlock:
			return nil, 0, fmt.Errorf("block %d alone exceeds the node result limit", fromBlock)
		default:
			toBlock = fromBlock + (toBlock-fromBlock)/2 //nolint:mnd
		}

		RangeSplitInc()
		lf.log.Infow("result limit hit, narrowing range", "from_block", fromBlock, "to_block", toBlock)
	}
}
