package drop

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/erc20"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/indexer"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

// Compile-time check to ensure Engine implements indexer.DynamicIndexer interface.
var _ indexer.DynamicIndexer = (*Engine)(nil)

// TokenReader reads on-chain metadata of payment tokens and factories.
// Failed reads are reported through the Result, never as errors.
type TokenReader interface {
	Name(ctx context.Context, token common.Address, block *big.Int) erc20.Result[string]
	Symbol(ctx context.Context, token common.Address, block *big.Int) erc20.Result[string]
	Decimals(ctx context.Context, token common.Address, block *big.Int) erc20.Result[uint8]
	TotalSupply(ctx context.Context, token common.Address, block *big.Int) erc20.Result[*big.Int]
	Implementation(ctx context.Context, factory common.Address, block *big.Int) erc20.Result[common.Address]
}

// ChainReader looks up transaction data that logs do not carry.
type ChainReader interface {
	TransactionSender(ctx context.Context, txHash, blockHash common.Hash, txIndex uint) (common.Address, error)
}

// maintainable is implemented by stores that run background maintenance.
type maintainable interface {
	Maintenance() db.Maintenance
	PruneTask(finalized func() uint64) db.TaskFunc
}

type handlerFunc func(ctx context.Context, tx *batchTx, log types.Log) error

type handler struct {
	event string
	fn    handlerFunc
}

// batchTx is the view of one HandleLogs transaction given to event handlers.
type batchTx struct {
	store.Store

	batch indexer.Batch

	// sourcesChanged is set when a handler subscribed to a new collection
	sourcesChanged bool
}

func (tx *batchTx) timestamp(block uint64) (uint64, error) {
	ts, ok := tx.batch.Timestamp(block)
	if !ok {
		return 0, fmt.Errorf("missing header of block %d", block)
	}
	return ts, nil
}

// trackedCollection is a collection whose events are subscribed to.
type trackedCollection struct {
	kind        string
	deployBlock uint64
}

// Engine applies NFT drop events to a versioned entity store.
type Engine struct {
	name                 string
	startBlock           uint64
	haltOnIntegrityError bool
	nativeToken          config.NativeTokenConfig
	factories            map[common.Address]config.FactoryConfig

	store  store.VersionedStore
	tokens TokenReader
	chain  ChainReader
	log    *logger.Logger

	handlers map[common.Hash]handler

	mu          sync.RWMutex
	registrar   indexer.SourceRegistrar
	collections map[common.Address]trackedCollection
}

// New creates an Engine on top of st. Collections already recorded in st are subscribed to again.
func New(
	cfg config.IndexerConfig,
	st store.VersionedStore,
	tokens TokenReader,
	chain ChainReader,
	log *logger.Logger,
) (*Engine, error) {
	nativeToken := config.NativeTokenConfig{Name: "Matic Token", Symbol: "MATIC", Decimals: 18} //nolint:mnd
	if cfg.NativeToken != nil {
		nativeToken = *cfg.NativeToken
	}

	e := &Engine{
		name:                 cfg.Name,
		startBlock:           cfg.StartBlock,
		haltOnIntegrityError: cfg.HaltOnIntegrityError,
		nativeToken:          nativeToken,
		factories:            make(map[common.Address]config.FactoryConfig, len(cfg.Factories)),
		store:                st,
		tokens:               tokens,
		chain:                chain,
		log:                  log,
		collections:          make(map[common.Address]trackedCollection),
	}

	for _, factory := range cfg.Factories {
		if factory.Kind == "" {
			factory.Kind = config.CollectionKindVapour721A
		}
		e.factories[common.HexToAddress(factory.Address)] = factory
	}

	e.handlers = map[common.Hash]handler{
		NewChildTopic:             {EventNewChild, e.handleNewChild},
		VapourInitializeTopic:     {EventInitialize, e.handleVapourInitialize},
		RainConstructTopic:        {EventConstruct, e.handleRainConstruct},
		RainInitializeTopic:       {EventInitialize, e.handleRainInitialize},
		OwnershipTransferredTopic: {EventOwnershipTransferred, e.handleOwnershipTransferred},
		RecipientChangedTopic:     {EventRecipientChanged, e.handleRecipientChanged},
		TransferTopic:             {EventTransfer, e.handleTransfer},
		BuyTopic:                  {EventBuy, e.handleBuy},
		WithdrawTopic:             {EventWithdraw, e.handleWithdraw},
		RoleAdminChangedTopic:     {EventRoleAdminChanged, e.handleRoleAdminChanged},
		RoleGrantedTopic:          {EventRoleGranted, e.handleRoleGranted},
		RoleRevokedTopic:          {EventRoleRevoked, e.handleRoleRevoked},
	}

	if err := e.loadCollections(context.Background()); err != nil {
		return nil, err
	}

	return e, nil
}

// loadCollections rebuilds the set of tracked collections from the store.
func (e *Engine) loadCollections(ctx context.Context) error {
	ids, err := e.store.List(ctx, schema.TypeCollection)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	collections := make(map[common.Address]trackedCollection, len(ids))
	for _, id := range ids {
		c, err := store.Load[schema.Collection](ctx, e.store, id)
		if err != nil {
			return fmt.Errorf("failed to load collection %s: %w", id, err)
		}
		if c == nil {
			continue
		}
		collections[common.HexToAddress(c.ID)] = trackedCollection{kind: c.Kind, deployBlock: c.DeployBlock}
	}

	e.mu.Lock()
	e.collections = collections
	e.mu.Unlock()

	CollectionsTrackedSet(e.name, len(collections))

	return nil
}

// Name returns the name of the indexer.
func (e *Engine) Name() string {
	return e.name
}

// StartBlock returns the lowest block any configured factory is indexed from.
func (e *Engine) StartBlock() uint64 {
	start := e.startBlock
	for _, factory := range e.factories {
		if factory.StartBlock != 0 {
			start = min(start, factory.StartBlock)
		}
	}
	return start
}

// EventsToIndex returns the factories and every collection known at this point.
func (e *Engine) EventsToIndex() map[common.Address]map[common.Hash]struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()

	events := make(map[common.Address]map[common.Hash]struct{}, len(e.factories)+len(e.collections))
	for addr := range e.factories {
		events[addr] = map[common.Hash]struct{}{NewChildTopic: {}}
	}
	for addr, c := range e.collections {
		topics := make(map[common.Hash]struct{})
		for _, topic := range collectionTopics(c.kind) {
			topics[topic] = struct{}{}
		}
		events[addr] = topics
	}

	return events
}

// SetSourceRegistrar sets the registrar used to subscribe to collections deployed while indexing.
func (e *Engine) SetSourceRegistrar(registrar indexer.SourceRegistrar) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registrar = registrar
}

// Store returns the entity store the engine writes to.
func (e *Engine) Store() store.VersionedStore {
	return e.store
}

// StartMaintenance starts the store maintenance, pruning entity history below the block reported by finalized.
func (e *Engine) StartMaintenance(ctx context.Context, finalized func() uint64) error {
	m, ok := e.store.(maintainable)
	if !ok {
		return nil
	}

	m.Maintenance().AddTask("prune-entity-history", m.PruneTask(finalized))

	return m.Maintenance().Start(ctx)
}

// Close closes the entity store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// HandleLogs applies a batch of logs in a single store transaction.
// Logs at or before the persisted cursor were applied before and are skipped.
// When a log subscribes to a new collection, the logs processed so far are committed and
// an *indexer.SourcesChangedError pointing at that log is returned.
func (e *Engine) HandleLogs(ctx context.Context, batch indexer.Batch) error {
	if len(batch.Logs) == 0 {
		return nil
	}

	var (
		changed          *indexer.SourcesChangedError
		applied, skipped int
	)

	err := e.store.RunInTx(ctx, func(ctx context.Context, s store.Store) error {
		changed, applied, skipped = nil, 0, 0

		tx := &batchTx{Store: s, batch: batch}

		cursor, err := store.Load[schema.IndexerCursor](ctx, tx, schema.CursorID)
		if err != nil {
			return fmt.Errorf("failed to load cursor: %w", err)
		}

		for _, log := range batch.Logs {
			if cursor != nil && !cursor.After(log.BlockNumber, log.Index) {
				skipped++
				NoOpInc(e.name, "", reasonAlreadyApplied)
				continue
			}

			blockCtx := store.WithBlock(ctx, log.BlockNumber)

			if err := e.apply(blockCtx, tx, log); err != nil {
				return err
			}
			applied++

			cursor = &schema.IndexerCursor{ID: schema.CursorID, BlockNumber: log.BlockNumber, LogIndex: log.Index}
			if err := tx.Save(blockCtx, cursor); err != nil {
				return fmt.Errorf("failed to save cursor: %w", err)
			}

			if tx.sourcesChanged {
				changed = &indexer.SourcesChangedError{After: indexer.PositionOf(log)}
				return nil
			}
		}

		return nil
	})
	if err != nil {
		// collections tracked by the discarded transaction are forgotten
		if reloadErr := e.loadCollections(ctx); reloadErr != nil {
			e.log.Errorw("failed to reload tracked collections", "error", reloadErr)
		}
		return err
	}

	e.log.Debugw("batch applied",
		"from_block", batch.FromBlock,
		"to_block", batch.ToBlock,
		"applied", applied,
		"skipped", skipped,
		"sources_changed", changed != nil,
	)

	if changed != nil {
		return changed
	}

	return nil
}

// apply dispatches log to its handler. Integrity violations are recorded as faults
// unless the engine is configured to halt on them.
func (e *Engine) apply(ctx context.Context, tx *batchTx, log types.Log) error {
	if len(log.Topics) == 0 {
		NoOpInc(e.name, "", reasonUnknownEvent)
		return nil
	}

	h, ok := e.handlers[log.Topics[0]]
	if !ok {
		NoOpInc(e.name, "", reasonUnknownEvent)
		e.log.Debugw("skipping unknown event",
			"address", log.Address.Hex(),
			"topic", log.Topics[0].Hex(),
			"block", log.BlockNumber,
		)
		return nil
	}

	err := h.fn(ctx, tx, log)

	var integrityErr *IntegrityError
	switch {
	case err == nil:
		EventHandledInc(e.name, h.event)
		return nil
	case errors.Is(err, errMalformedLog):
		NoOpInc(e.name, h.event, reasonMalformedLog)
		e.log.Warnw("skipping malformed event",
			"event", h.event,
			"address", log.Address.Hex(),
			"block", log.BlockNumber,
			"tx", log.TxHash.Hex(),
			"log_index", log.Index,
			"error", err,
		)
		return nil
	case errors.As(err, &integrityErr):
		IntegrityViolationInc(e.name, h.event)
		e.log.Errorw("data integrity violation",
			"event", h.event,
			"collection", integrityErr.Collection,
			"block", log.BlockNumber,
			"tx", log.TxHash.Hex(),
			"log_index", log.Index,
			"reason", integrityErr.Reason,
		)

		if e.haltOnIntegrityError {
			return fmt.Errorf("block %d log %d: %w", log.BlockNumber, log.Index, err)
		}

		return e.saveFault(ctx, tx, log, integrityErr)
	default:
		return fmt.Errorf("failed to handle %s at block %d log %d: %w", h.event, log.BlockNumber, log.Index, err)
	}
}

func (e *Engine) saveFault(ctx context.Context, tx *batchTx, log types.Log, integrityErr *IntegrityError) error {
	fault := &schema.IndexingFault{
		ID:          schema.FaultID(log.TxHash, log.Index),
		Collection:  integrityErr.Collection,
		Event:       integrityErr.Event,
		Reason:      integrityErr.Reason,
		BlockNumber: log.BlockNumber,
		TxHash:      schema.HashID(log.TxHash),
		LogIndex:    log.Index,
	}

	if err := tx.Save(ctx, fault); err != nil {
		return fmt.Errorf("failed to save indexing fault: %w", err)
	}

	return nil
}

// HandleReorg rolls the entity store back to the block before blockNum.
func (e *Engine) HandleReorg(ctx context.Context, blockNum uint64) error {
	var toBlock uint64
	if blockNum > 0 {
		toBlock = blockNum - 1
	}

	if err := e.store.Rollback(ctx, toBlock); err != nil {
		return fmt.Errorf("failed to roll back entity store: %w", err)
	}

	if err := e.loadCollections(ctx); err != nil {
		return err
	}

	e.log.Warnw("entity store rolled back", "reorg_block", blockNum, "to_block", toBlock)

	return nil
}

// trackCollection subscribes to the events of a newly deployed collection.
func (e *Engine) trackCollection(tx *batchTx, address common.Address, kind string, deployBlock uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, known := e.collections[address]; !known {
		CollectionsTrackedInc(e.name)
	}
	e.collections[address] = trackedCollection{kind: kind, deployBlock: deployBlock}

	if e.registrar == nil {
		e.log.Warnw("no source registrar set, events of the new collection will not be indexed until restart",
			"collection", address.Hex(),
		)
		return
	}

	e.registrar.RegisterSource(address, collectionTopics(kind), deployBlock)
	tx.sourcesChanged = true
}

// loadCollection returns the collection at address, or nil after counting a no-op.
func (e *Engine) loadCollection(ctx context.Context, tx *batchTx, address common.Address,
	event string) (*schema.Collection, error) {
	c, err := store.Load[schema.Collection](ctx, tx, schema.AddressID(address))
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", address.Hex(), err)
	}

	if c == nil {
		NoOpInc(e.name, event, reasonUnknownCollection)
		e.log.Debugw("skipping event of unknown collection", "event", event, "collection", address.Hex())
	}

	return c, nil
}

func blockNumber(log types.Log) *big.Int {
	return new(big.Int).SetUint64(log.BlockNumber)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
