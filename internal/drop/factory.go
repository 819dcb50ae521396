package drop

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

// handleNewChild records a collection deployed by a factory and subscribes to its events.
// It is the only handler creating collections.
func (e *Engine) handleNewChild(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeNewChild(log)
	if err != nil {
		return err
	}

	factoryCfg, ok := e.factories[log.Address]
	if !ok {
		NoOpInc(e.name, EventNewChild, reasonUnknownFactory)
		return nil
	}

	factory, created, err := store.LoadOrCreate(ctx, tx, schema.AddressID(log.Address), func() *schema.Factory {
		return &schema.Factory{
			ID:       schema.AddressID(log.Address),
			Address:  log.Address,
			Kind:     factoryCfg.Kind,
			Children: []string{},
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load factory: %w", err)
	}
	if created {
		factory.Implementation = e.tokens.Implementation(ctx, log.Address, blockNumber(log)).Or(common.Address{})
	}

	deployer, err := e.chain.TransactionSender(ctx, log.TxHash, log.BlockHash, log.TxIndex)
	if err != nil {
		return fmt.Errorf("failed to get sender of tx %s: %w", log.TxHash.Hex(), err)
	}

	timestamp, err := tx.timestamp(log.BlockNumber)
	if err != nil {
		return err
	}

	collection := newCollection(ev.Child, factory, deployer, log.BlockNumber, timestamp)
	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	factory.Children = schema.AppendUnique(factory.Children, collection.ID)
	factory.ChildrenCount = uint64(len(factory.Children))
	if err := tx.Save(ctx, factory); err != nil {
		return fmt.Errorf("failed to save factory: %w", err)
	}

	e.log.Infow("new collection deployed",
		"factory", log.Address.Hex(),
		"collection", ev.Child.Hex(),
		"kind", factory.Kind,
		"deployer", deployer.Hex(),
		"block", log.BlockNumber,
	)

	e.trackCollection(tx, ev.Child, factory.Kind, log.BlockNumber)

	return nil
}

// newCollection returns a collection with empty relations and zero counters.
func newCollection(address common.Address, factory *schema.Factory, deployer common.Address,
	block, timestamp uint64) *schema.Collection {
	return &schema.Collection{
		ID:               schema.AddressID(address),
		Kind:             factory.Kind,
		Factory:          factory.ID,
		Deployer:         deployer,
		DeployBlock:      block,
		DeployTimestamp:  timestamp,
		NFTs:             []string{},
		Withdrawals:      []string{},
		MintTransactions: []string{},
		SupplyLimit:      new(big.Int),
		RoyaltyBPS:       new(big.Int),
		AmountPayable:    new(big.Int),
		AmountWithdrawn:  new(big.Int),
	}
}
