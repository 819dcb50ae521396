package drop

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

// Values recorded when a token metadata read fails.
const (
	failedReadString   = "ERROR"
	failedReadDecimals = 0
)

func (e *Engine) handleVapourInitialize(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeVapourInitialize(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventInitialize)
	if err != nil || collection == nil {
		return err
	}

	cfg := ev.Config
	collection.Name = cfg.Name
	collection.Symbol = cfg.Symbol
	collection.BaseURI = cfg.BaseURI
	collection.Owner = cfg.Owner
	collection.Recipient = cfg.Recipient
	collection.Admin = cfg.Admin
	collection.SupplyLimit = orZero(cfg.SupplyLimit)
	collection.RoyaltyBPS = orZero(cfg.RoyaltyBPS)
	collection.ProgramBuilder = ev.VmStateBuilder

	return e.initialize(ctx, tx, log, collection, cfg.VmStateConfig, cfg.Currency)
}

func (e *Engine) handleRainConstruct(ctx context.Context, tx *batchTx, log types.Log) error {
	cfg, err := decodeRainConstruct(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventConstruct)
	if err != nil || collection == nil {
		return err
	}

	collection.Name = cfg.Name
	collection.Symbol = cfg.Symbol
	collection.BaseURI = cfg.BaseURI
	collection.Owner = cfg.Owner
	collection.Recipient = cfg.Recipient
	collection.SupplyLimit = orZero(cfg.SupplyLimit)

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

func (e *Engine) handleRainInitialize(ctx context.Context, tx *batchTx, log types.Log) error {
	cfg, err := decodeRainInitialize(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventInitialize)
	if err != nil || collection == nil {
		return err
	}

	collection.ProgramBuilder = cfg.VmStateBuilder

	return e.initialize(ctx, tx, log, collection, cfg.VmStateConfig, cfg.Currency)
}

// initialize links the pricing program and the payment currency to collection and saves it.
func (e *Engine) initialize(ctx context.Context, tx *batchTx, log types.Log, collection *schema.Collection,
	program StateConfig, currency common.Address) error {
	programID, err := e.saveProgramConfig(ctx, tx, collection.ID, program)
	if err != nil {
		return err
	}
	collection.ProgramConfig = programID

	tokenID, err := e.resolveCurrency(ctx, tx, currency, blockNumber(log))
	if err != nil {
		return err
	}
	collection.Currency = tokenID

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

// saveProgramConfig stores the pricing program of a collection. A stored program is never replaced.
func (e *Engine) saveProgramConfig(ctx context.Context, tx *batchTx, id string, program StateConfig) (string, error) {
	pc, created, err := store.LoadOrCreate(ctx, tx, id, func() *schema.ProgramConfig {
		sources := make([]hexutil.Bytes, len(program.Sources))
		for i, src := range program.Sources {
			sources[i] = hexutil.Bytes(src)
		}

		constants := program.Constants
		if constants == nil {
			constants = []*big.Int{}
		}

		return &schema.ProgramConfig{ID: id, Sources: sources, Constants: constants}
	})
	if err != nil {
		return "", fmt.Errorf("failed to load program config: %w", err)
	}

	if !created {
		e.log.Debugw("program config already recorded, keeping it", "collection", id)
		return pc.ID, nil
	}

	if err := tx.Save(ctx, pc); err != nil {
		return "", fmt.Errorf("failed to save program config: %w", err)
	}

	return pc.ID, nil
}

// resolveCurrency returns the Token id of a payment currency, creating the Token if needed.
// The native asset gets the configured metadata once. ERC-20 metadata is read on creation
// and the total supply is refreshed on every call.
func (e *Engine) resolveCurrency(ctx context.Context, tx *batchTx, currency common.Address,
	block *big.Int) (string, error) {
	if currency == (common.Address{}) {
		token, created, err := store.LoadOrCreate(ctx, tx, schema.NativeTokenID, func() *schema.Token {
			return &schema.Token{
				ID:          schema.NativeTokenID,
				Name:        e.nativeToken.Name,
				Symbol:      e.nativeToken.Symbol,
				Decimals:    e.nativeToken.Decimals,
				TotalSupply: new(big.Int),
				Native:      true,
			}
		})
		if err != nil {
			return "", fmt.Errorf("failed to load native token: %w", err)
		}

		if created {
			if err := tx.Save(ctx, token); err != nil {
				return "", fmt.Errorf("failed to save native token: %w", err)
			}
		}

		return token.ID, nil
	}

	token, created, err := store.LoadOrCreate(ctx, tx, schema.AddressID(currency), func() *schema.Token {
		return &schema.Token{ID: schema.AddressID(currency), Address: currency}
	})
	if err != nil {
		return "", fmt.Errorf("failed to load token %s: %w", currency.Hex(), err)
	}

	if created {
		token.Name = e.tokens.Name(ctx, currency, block).Or(failedReadString)
		token.Symbol = e.tokens.Symbol(ctx, currency, block).Or(failedReadString)
		token.Decimals = e.tokens.Decimals(ctx, currency, block).Or(failedReadDecimals)
	}
	token.TotalSupply = orZero(e.tokens.TotalSupply(ctx, currency, block).Or(new(big.Int)))

	if err := tx.Save(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save token %s: %w", currency.Hex(), err)
	}

	return token.ID, nil
}
