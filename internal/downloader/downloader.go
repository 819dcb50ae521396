package downloader

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	ethcommon "github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	internalfetcher "github.com/goran-ethernal/DropIndexor/internal/fetcher"
	"github.com/goran-ethernal/DropIndexor/internal/indexer"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/internal/metrics"
	"github.com/goran-ethernal/DropIndexor/internal/types"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	pkgdownloader "github.com/goran-ethernal/DropIndexor/pkg/downloader"
	"github.com/goran-ethernal/DropIndexor/pkg/fetcher"
	idx "github.com/goran-ethernal/DropIndexor/pkg/indexer"
	"github.com/goran-ethernal/DropIndexor/pkg/reorg"
	"github.com/goran-ethernal/DropIndexor/pkg/rpc"
)

var _ pkgdownloader.Downloader = (*Downloader)(nil)

// Downloader pulls log ranges from the chain, hands them to the indexer coordinator
// and checkpoints every range that was fully processed. A detected reorg rolls the
// indexers and the checkpoint back before fetching resumes.
type Downloader struct {
	cfg           config.DownloaderConfig
	rpc           rpc.EthClient
	reorgDetector reorg.Detector
	syncManager   pkgdownloader.SyncManager
	maintenance   db.Maintenance
	log           *logger.Logger
	coordinator   *indexer.IndexerCoordinator
	logFetcher    fetcher.LogFetcher

	finalized atomic.Uint64
}

// New wires a log fetcher and an indexer coordinator around the given components.
// A nil maintenance disables database maintenance.
func New(
	cfg config.DownloaderConfig,
	rpcClient rpc.EthClient,
	reorgDetector reorg.Detector,
	syncManager pkgdownloader.SyncManager,
	maintenance db.Maintenance,
	log *logger.Logger,
) (*Downloader, error) {
	switch {
	case rpcClient == nil:
		return nil, errors.New("downloader: RPC client is required")
	case reorgDetector == nil:
		return nil, errors.New("downloader: ReorgDetector is required")
	case syncManager == nil:
		return nil, errors.New("downloader: SyncManager is required")
	case log == nil:
		return nil, errors.New("downloader: Logger is required")
	}
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	finality, err := types.ParseBlockFinality(cfg.Finality)
	if err != nil {
		return nil, fmt.Errorf("downloader: invalid finality: %w", err)
	}

	logFetcher := internalfetcher.NewLogFetcher(internalfetcher.LogFetcherConfig{
		ChunkSize:            cfg.ChunkSize,
		Finality:             finality,
		FinalizedLag:         cfg.FinalizedLag,
		PollInterval:         cfg.PollInterval.Duration,
		MaxAddressesPerQuery: cfg.MaxAddressesPerQuery,
	}, log.WithComponent(internalcommon.ComponentLogFetcher), rpcClient, reorgDetector)

	log.Infow("downloader ready", "finality", finality, "chunk_size", cfg.ChunkSize)

	return &Downloader{
		cfg:           cfg,
		rpc:           rpcClient,
		reorgDetector: reorgDetector,
		syncManager:   syncManager,
		maintenance:   maintenance,
		log:           log,
		logFetcher:    logFetcher,
		coordinator:   indexer.NewIndexerCoordinator(logFetcher, log.WithComponent(internalcommon.ComponentIndexerCoordinator)),
	}, nil
}

// sourceRegistrar lets a dynamic indexer subscribe to contracts it discovers while indexing.
type sourceRegistrar struct {
	d       *Downloader
	indexer idx.Indexer
}

func (r *sourceRegistrar) RegisterSource(address ethcommon.Address, topics []ethcommon.Hash, startBlock uint64) {
	r.d.logFetcher.AddSource(address, topics, startBlock)

	if err := r.d.coordinator.AddRoute(r.indexer, address, topics, startBlock); err != nil {
		r.d.log.Errorw("failed to route new source",
			"indexer", r.indexer.Name(),
			"address", address.Hex(),
			"error", err,
		)
		return
	}

	r.d.log.Infow("source registered",
		"indexer", r.indexer.Name(),
		"address", address.Hex(),
		"topics", len(topics),
		"start_block", startBlock,
	)
}

// RegisterIndexer subscribes the fetcher to every contract and topic the indexer
// declares and routes the matching logs to it.
func (d *Downloader) RegisterIndexer(indexer idx.Indexer) {
	startBlock := indexer.StartBlock()
	sources := indexer.EventsToIndex()

	d.coordinator.RegisterIndexer(indexer)

	var topics int
	for addr, set := range sources {
		topics += len(set)
		d.logFetcher.AddSource(addr, slices.Collect(maps.Keys(set)), startBlock)
	}

	if dynamic, ok := indexer.(idx.DynamicIndexer); ok {
		dynamic.SetSourceRegistrar(&sourceRegistrar{d: d, indexer: indexer})
	}

	d.log.Infow("indexer registered",
		"indexer", indexer.Name(),
		"start_block", startBlock,
		"addresses", len(sources),
		"topics", topics,
	)
}

// Finalized returns the last finalized block seen by the downloader.
func (d *Downloader) Finalized() uint64 {
	return d.finalized.Load()
}

// resumeFrom returns the last block considered indexed: the checkpoint when
// there is one, otherwise the block before the earliest indexer start block.
func (d *Downloader) resumeFrom(state *pkgdownloader.SyncState) uint64 {
	if state.LastIndexedBlock > 0 {
		d.log.Infow("resuming download", "last_indexed_block", state.LastIndexedBlock)
		return state.LastIndexedBlock
	}

	starts := d.coordinator.IndexerStartBlocks()
	if len(starts) == 0 || slices.Min(starts) == 0 {
		return 0
	}

	first := slices.Min(starts)
	d.log.Infow("starting fresh download", "start_block", first)
	return first - 1
}

// Download streams logs to the registered indexers until ctx is cancelled or a
// range fails for a reason other than a reorg.
func (d *Downloader) Download(ctx context.Context) error {
	state, err := d.syncManager.State(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync state: %w", err)
	}

	last := d.resumeFrom(state)
	d.logFetcher.SetMode(fetcher.ModeBackfill)

	if err := d.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start database maintenance: %w", err)
	}

	for ctx.Err() == nil {
		next, err := d.step(ctx, last)

		var reorgErr *reorg.ReorgDetectedError
		switch {
		case errors.As(err, &reorgErr):
			d.log.Warnw("reorg detected, rolling back",
				"block", reorgErr.FirstReorgBlock,
				"details", reorgErr.Details,
			)
			if next, err = d.handleReorg(ctx, reorgErr.FirstReorgBlock); err != nil {
				return fmt.Errorf("failed to handle reorg: %w", err)
			}
		case err != nil && ctx.Err() == nil:
			d.log.Errorw("failed to process logs", "error", err, "last_block", last)
			return fmt.Errorf("failed to process logs: %w", err)
		case err != nil:
			continue
		}

		last = next
	}

	d.log.Info("download cancelled")
	return ctx.Err()
}

// step fetches and dispatches the range after last and checkpoints it.
// It returns the new last indexed block.
func (d *Downloader) step(ctx context.Context, last uint64) (uint64, error) {
	result, err := d.logFetcher.FetchNext(ctx, last)
	if err != nil {
		return last, err
	}
	d.finalized.Store(result.Finalized)

	if err := d.coordinator.HandleLogs(ctx, result); err != nil {
		return last, err
	}

	var hash ethcommon.Hash
	if header := result.Header(result.ToBlock); header != nil {
		hash = header.Hash()
	}

	mode := d.logFetcher.GetMode()
	if err := d.syncManager.SaveCheckpoint(ctx, result.ToBlock, hash, mode); err != nil {
		return last, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	d.log.Infow("checkpoint saved",
		"block", result.ToBlock,
		"block_hash", hash.Hex(),
		"mode", mode,
		"logs", len(result.Logs),
	)

	return result.ToBlock, nil
}

// handleReorg rolls the indexers, the recorded hashes, the fetcher's log cache and the
// checkpoint back to the block preceding firstReorgBlock and returns it.
func (d *Downloader) handleReorg(ctx context.Context, firstReorgBlock uint64) (uint64, error) {
	if err := d.coordinator.HandleReorg(ctx, firstReorgBlock); err != nil {
		return 0, fmt.Errorf("failed to notify indexers of reorg: %w", err)
	}

	if err := d.reorgDetector.Forget(ctx, firstReorgBlock); err != nil {
		return 0, fmt.Errorf("failed to forget reorged blocks: %w", err)
	}
	d.logFetcher.Invalidate(firstReorgBlock)

	rollbackTo := max(firstReorgBlock, 1) - 1
	if err := d.syncManager.Rewind(ctx, rollbackTo); err != nil {
		return 0, fmt.Errorf("failed to rewind sync state: %w", err)
	}

	d.logFetcher.SetMode(fetcher.ModeBackfill)
	metrics.ReorgHandledInc()

	d.log.Infow("reorg handled", "first_reorg_block", firstReorgBlock, "resume_after", rollbackTo)

	return rollbackTo, nil
}

// Close stops maintenance, closes the reorg detector and the sync manager, then the RPC client.
func (d *Downloader) Close() error {
	var errs []error

	if err := d.maintenance.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop database maintenance: %w", err))
	}
	if err := d.reorgDetector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close reorg detector: %w", err))
	}
	if err := d.syncManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close sync manager: %w", err))
	}
	d.rpc.Close()

	d.log.Info("downloader closed")

	return errors.Join(errs...)
}
