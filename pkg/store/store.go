package store

import (
	"context"
	"encoding/json"
	"errors"
)

// EntityType names a kind of entity (Collection, NFT, Holder, ...).
type EntityType string

// Entity is a record addressable by (type, id).
type Entity interface {
	EntityType() EntityType
	EntityID() string
}

// Store is the read/write surface used by event handlers.
type Store interface {
	// Get loads the latest version of (t, id) into dst. It reports false when no version exists.
	Get(ctx context.Context, t EntityType, id string, dst Entity) (bool, error)

	// Save upserts the entity at the block carried by ctx (see WithBlock).
	Save(ctx context.Context, e Entity) error

	// List returns the ids of every entity of type t, sorted.
	List(ctx context.Context, t EntityType) ([]string, error)
}

// Version is one historical record of an entity.
type Version struct {
	Block uint64          `json:"block"`
	Data  json.RawMessage `json:"data"`
}

// VersionedStore keeps one version of every entity per block, which makes rollbacks possible.
type VersionedStore interface {
	Store

	// RunInTx runs fn atomically. Writes made through tx are discarded if fn returns an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Rollback discards every version written after toBlock.
	Rollback(ctx context.Context, toBlock uint64) error

	// PruneHistory drops versions that are superseded by a newer version at or below belowBlock.
	PruneHistory(ctx context.Context, belowBlock uint64) error

	// History returns all versions of (t, id), oldest first.
	History(ctx context.Context, t EntityType, id string) ([]Version, error)

	// Close releases the underlying resources.
	Close() error
}

var (
	// ErrNoBlock is returned by Save when the context carries no block number.
	ErrNoBlock = errors.New("no block number in context")

	// ErrStaleWrite is returned by Save when a newer version of the entity already exists.
	ErrStaleWrite = errors.New("entity has a newer version")
)

type blockKey struct{}

// WithBlock returns a context whose writes are recorded at block.
func WithBlock(ctx context.Context, block uint64) context.Context {
	return context.WithValue(ctx, blockKey{}, block)
}

// BlockFromContext returns the block set by WithBlock.
func BlockFromContext(ctx context.Context) (uint64, bool) {
	block, ok := ctx.Value(blockKey{}).(uint64)
	return block, ok
}

// EntityPtr constrains a pointer type to an Entity whose methods do not depend on field values.
type EntityPtr[T any] interface {
	*T
	Entity
}

// Load returns the latest version of the entity with the given id, or nil if it does not exist.
func Load[T any, PT EntityPtr[T]](ctx context.Context, s Store, id string) (PT, error) {
	entity := PT(new(T))

	found, err := s.Get(ctx, entity.EntityType(), id, entity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	return entity, nil
}

// LoadOrCreate returns the stored entity, or the one built by create when none exists.
// A created entity is not persisted until the caller saves it.
func LoadOrCreate[T any, PT EntityPtr[T]](
	ctx context.Context,
	s Store,
	id string,
	create func() PT,
) (entity PT, created bool, err error) {
	entity, err = Load[T, PT](ctx, s, id)
	if err != nil {
		return nil, false, err
	}
	if entity != nil {
		return entity, false, nil
	}

	return create(), true, nil
}
