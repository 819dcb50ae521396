package drop

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
)

// handleBuy records a purchase. The tokens it minted are the last Units entries of the
// collection's token list: the Transfer events of a purchase precede its Buy event.
func (e *Engine) handleBuy(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeBuy(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventBuy)
	if err != nil || collection == nil {
		return err
	}

	minted := len(collection.NFTs)
	units := orZero(ev.Units)
	if units.Cmp(big.NewInt(int64(minted))) > 0 {
		return &IntegrityError{
			Event:      EventBuy,
			Collection: collection.ID,
			Reason:     fmt.Sprintf("purchase of %s units but only %d tokens minted", units, minted),
		}
	}
	start := minted - int(units.Int64())

	timestamp, err := tx.timestamp(log.BlockNumber)
	if err != nil {
		return err
	}

	mint := &schema.MintTransaction{
		ID:          schema.MintTransactionID(collection.MintTransactionCount),
		Collection:  collection.ID,
		BlockNumber: log.BlockNumber,
		Timestamp:   timestamp,
		Hash:        schema.HashID(log.TxHash),
		Cost:        orZero(ev.Cost),
		Receiver:    ev.Receiver,
		Units:       units,
		NFTs:        slices.Clone(collection.NFTs[start:]),
	}
	if err := tx.Save(ctx, mint); err != nil {
		return fmt.Errorf("failed to save mint transaction: %w", err)
	}

	collection.AmountPayable = new(big.Int).Add(orZero(collection.AmountPayable), mint.Cost)
	collection.MintTransactions = schema.AppendUnique(collection.MintTransactions, mint.ID)
	collection.MintTransactionCount++

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

// handleWithdraw records a withdrawal of sale proceeds. Everything payable is withdrawn.
func (e *Engine) handleWithdraw(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeWithdraw(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventWithdraw)
	if err != nil || collection == nil {
		return err
	}

	timestamp, err := tx.timestamp(log.BlockNumber)
	if err != nil {
		return err
	}

	withdraw := &schema.Withdraw{
		ID:          schema.HashID(log.TxHash),
		Collection:  collection.ID,
		BlockNumber: log.BlockNumber,
		Amount:      orZero(ev.AmountWithdrawn),
		Timestamp:   timestamp,
		Withdrawer:  ev.Withdrawer,
	}
	if err := tx.Save(ctx, withdraw); err != nil {
		return fmt.Errorf("failed to save withdraw: %w", err)
	}

	collection.AmountWithdrawn = orZero(ev.TotalWithdrawn)
	collection.AmountPayable = new(big.Int)
	collection.Withdrawals = schema.AppendUnique(collection.Withdrawals, withdraw.ID)

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}
