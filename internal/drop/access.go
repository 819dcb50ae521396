package drop

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

func (e *Engine) handleRoleAdminChanged(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeRoleAdminChanged(log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventRoleAdminChanged)
	if err != nil || collection == nil {
		return err
	}

	role, _, err := store.LoadOrCreate(ctx, tx, schema.HashID(ev.Role), func() *schema.Role {
		return &schema.Role{ID: schema.HashID(ev.Role), RoleHolders: []string{}}
	})
	if err != nil {
		return fmt.Errorf("failed to load role: %w", err)
	}

	role.Collection = collection.ID
	role.RoleHash = ev.Role
	role.RoleName = RoleName(ev.Role)

	if err := tx.Save(ctx, role); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}

	return nil
}

func (e *Engine) handleRoleGranted(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeRoleEvent(EventRoleGranted, log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventRoleGranted)
	if err != nil || collection == nil {
		return err
	}

	role, err := e.loadOrCreateRole(ctx, tx, ev.Role, log.Address)
	if err != nil {
		return err
	}

	holderID := schema.RoleHolderID(log.Address, ev.Account)
	holder, _, err := store.LoadOrCreate(ctx, tx, holderID, func() *schema.RoleHolder {
		return &schema.RoleHolder{
			ID:          holderID,
			Collection:  schema.AddressID(log.Address),
			Account:     ev.Account,
			RoleGrants:  []string{},
			RoleRevoked: []string{},
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load role holder: %w", err)
	}
	holder.Role = role.ID
	holder.HasRole = true

	change, err := newRoleChange(tx, log, ev, role, holder)
	if err != nil {
		return err
	}

	grant := &schema.RoleGranted{RoleChange: change}
	if err := tx.Save(ctx, grant); err != nil {
		return fmt.Errorf("failed to save role grant: %w", err)
	}

	holder.RoleGrants = schema.AppendUnique(holder.RoleGrants, grant.ID)
	if err := tx.Save(ctx, holder); err != nil {
		return fmt.Errorf("failed to save role holder: %w", err)
	}

	role.RoleHolders = schema.AppendUnique(role.RoleHolders, holder.ID)
	if err := tx.Save(ctx, role); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}

	return nil
}

// handleRoleRevoked records a revocation. hasRole is left untouched.
func (e *Engine) handleRoleRevoked(ctx context.Context, tx *batchTx, log types.Log) error {
	ev, err := decodeRoleEvent(EventRoleRevoked, log)
	if err != nil {
		return err
	}

	collection, err := e.loadCollection(ctx, tx, log.Address, EventRoleRevoked)
	if err != nil || collection == nil {
		return err
	}

	holder, err := store.Load[schema.RoleHolder](ctx, tx, schema.RoleHolderID(log.Address, ev.Account))
	if err != nil {
		return fmt.Errorf("failed to load role holder: %w", err)
	}
	if holder == nil {
		NoOpInc(e.name, EventRoleRevoked, reasonUnknownHolder)
		return nil
	}

	role, err := e.loadOrCreateRole(ctx, tx, ev.Role, log.Address)
	if err != nil {
		return err
	}

	change, err := newRoleChange(tx, log, ev, role, holder)
	if err != nil {
		return err
	}

	revoked := &schema.RoleRevoked{RoleChange: change}
	if err := tx.Save(ctx, revoked); err != nil {
		return fmt.Errorf("failed to save role revocation: %w", err)
	}

	holder.RoleRevoked = schema.AppendUnique(holder.RoleRevoked, revoked.ID)
	if err := tx.Save(ctx, holder); err != nil {
		return fmt.Errorf("failed to save role holder: %w", err)
	}

	role.RoleHolders = schema.AppendUnique(role.RoleHolders, holder.ID)
	if err := tx.Save(ctx, role); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}

	return nil
}

// loadOrCreateRole returns the role with the given hash. A new role is not saved.
func (e *Engine) loadOrCreateRole(ctx context.Context, tx *batchTx, roleHash common.Hash,
	contract common.Address) (*schema.Role, error) {
	role, _, err := store.LoadOrCreate(ctx, tx, schema.HashID(roleHash), func() *schema.Role {
		return &schema.Role{
			ID:          schema.HashID(roleHash),
			Collection:  schema.AddressID(contract),
			RoleHash:    roleHash,
			RoleName:    RoleName(roleHash),
			RoleHolders: []string{},
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}

	return role, nil
}

func newRoleChange(tx *batchTx, log types.Log, ev RoleEvent, role *schema.Role,
	holder *schema.RoleHolder) (schema.RoleChange, error) {
	timestamp, err := tx.timestamp(log.BlockNumber)
	if err != nil {
		return schema.RoleChange{}, err
	}

	return schema.RoleChange{
		ID:          schema.HashID(log.TxHash),
		Collection:  schema.AddressID(log.Address),
		Role:        role.ID,
		RoleHolder:  holder.ID,
		Account:     ev.Account,
		Sender:      ev.Sender,
		Emitter:     ev.Sender,
		Transaction: schema.HashID(log.TxHash),
		Timestamp:   timestamp,
		BlockNumber: log.BlockNumber,
	}, nil
}
