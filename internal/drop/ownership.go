package drop

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

func (e *Engine) handleOwnershipTransferred(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeOwnershipTransferred(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventOwnershipTransferred)
	if err != nil || collection == nil {
		return err
	}

	collection.Owner = ev.NewOwner

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

func (e *Engine) handleRecipientChanged(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeRecipientChanged(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventRecipientChanged)
	if err != nil || collection == nil {
		return err
	}

	collection.Recipient = ev.NewRecipient

	if err := tx.Save(ctx, collection); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}

	return nil
}

// handleTransfer moves a token between holders. A token seen for the first time is a mint and
// joins the collection's token list, which is never pruned.
func (e *Engine) handleTransfer(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeTransfer(log)
	if err != nil {
		return err
	}

	nftID := schema.NFTID(ev.TokenID, log.Address)

	collection, err := e.loadCollection(ctx, tx, log.Address, EventTransfer)
	if err != nil {
		return err
	}

	if collection != nil {
		if err := e.receiveNFT(ctx, tx, collection, nftID, ev); err != nil {
			return err
		}
	}

	// a self-transfer keeps the token where it is
	if ev.From == (common.Address{}) || ev.From == ev.To {
		return nil
	}

	sender, err := store.Load[schema.Holder](ctx, tx, schema.HolderID(log.Address, ev.From))
	if err != nil {
		return fmt.Errorf("failed to load holder: %w", err)
	}
	if sender == nil {
		return nil
	}

	sender.NFTs = schema.Remove(sender.NFTs, nftID)
	if err := tx.Save(ctx, sender); err != nil {
		return fmt.Errorf("failed to save holder: %w", err)
	}

	return nil
}

func (e *Engine) receiveNFT(ctx context.Context, tx *batchTx, collection *schema.Collection, nftID string,
	ev TransferEvent) error {
	collectionAddr := common.HexToAddress(collection.ID)

	receiver, _, err := store.LoadOrCreate(ctx, tx, schema.HolderID(collectionAddr, ev.To), func() *schema.Holder {
		return &schema.Holder{
			ID:         schema.HolderID(collectionAddr, ev.To),
			Collection: collection.ID,
			Address:    ev.To,
			NFTs:       []string{},
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load holder: %w", err)
	}

	nft, minted, err := store.LoadOrCreate(ctx, tx, nftID, func() *schema.NFT {
		return &schema.NFT{
			ID:         nftID,
			TokenID:    ev.TokenID,
			TokenURI:   schema.TokenURI(collection.BaseURI, ev.TokenID),
			Collection: collection.ID,
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load nft: %w", err)
	}

	if minted {
		collection.NFTs = append(collection.NFTs, nftID)
		if err := tx.Save(ctx, collection); err != nil {
			return fmt.Errorf("failed to save collection: %w", err)
		}
	}

	nft.Owner = ev.To
	if err := tx.Save(ctx, nft); err != nil {
		return fmt.Errorf("failed to save nft: %w", err)
	}

	receiver.NFTs = schema.AppendUnique(receiver.NFTs, nftID)
	if err := tx.Save(ctx, receiver); err != nil {
		return fmt.Errorf("failed to save holder: %w", err)
	}

	return nil
}
