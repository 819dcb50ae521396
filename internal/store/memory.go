package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/goran-ethernal/DropIndexor/pkg/store"
)

var _ store.VersionedStore = (*MemoryStore)(nil)

type entityKey struct {
	entityType store.EntityType
	id         string
}

// MemoryStore is an in-process VersionedStore. It is used by tests and dry runs.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[entityKey][]store.Version
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{versions: make(map[entityKey][]store.Version)}
}

// Get loads the latest version of (t, id) into dst.
func (m *MemoryStore) Get(ctx context.Context, t store.EntityType, id string, dst store.Entity) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.get(t, id, dst)
}

func (m *MemoryStore) get(t store.EntityType, id string, dst store.Entity) (bool, error) {
	versions := m.versions[entityKey{t, id}]
	if len(versions) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(versions[len(versions)-1].Data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", t, id, err)
	}

	return true, nil
}

// Save records e at the block carried by ctx.
func (m *MemoryStore) Save(ctx context.Context, e store.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.save(ctx, e)
}

func (m *MemoryStore) save(ctx context.Context, e store.Entity) error {
	block, ok := store.BlockFromContext(ctx)
	if !ok {
		return store.ErrNoBlock
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", e.EntityType(), e.EntityID(), err)
	}

	key := entityKey{e.EntityType(), e.EntityID()}
	versions := m.versions[key]

	if n := len(versions); n > 0 {
		last := versions[n-1].Block
		switch {
		case last > block:
			return fmt.Errorf("%w: %s %s at block %d, latest %d", store.ErrStaleWrite, key.entityType, key.id, block, last)
		case last == block:
			versions[n-1].Data = data
			return nil
		}
	}

	m.versions[key] = append(versions, store.Version{Block: block, Data: data})
	return nil
}

// List returns the sorted ids of every entity of type t.
func (m *MemoryStore) List(ctx context.Context, t store.EntityType) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.list(t), nil
}

func (m *MemoryStore) list(t store.EntityType) []string {
	ids := make([]string, 0)
	for key, versions := range m.versions {
		if key.entityType == t && len(versions) > 0 {
			ids = append(ids, key.id)
		}
	}
	slices.Sort(ids)

	return ids
}

// RunInTx runs fn against the store and restores the previous state if fn fails.
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[entityKey][]store.Version, len(m.versions))
	for key, versions := range m.versions {
		snapshot[key] = slices.Clone(versions)
	}

	if err := fn(ctx, &memoryTx{m: m}); err != nil {
		m.versions = snapshot
		return err
	}

	return nil
}

// Rollback discards every version written after toBlock.
func (m *MemoryStore) Rollback(ctx context.Context, toBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, versions := range m.versions {
		kept := slices.DeleteFunc(versions, func(v store.Version) bool { return v.Block > toBlock })
		if len(kept) == 0 {
			delete(m.versions, key)
			continue
		}
		m.versions[key] = kept
	}

	return nil
}

// PruneHistory keeps, for every entity, the newest version at or below belowBlock and everything after it.
func (m *MemoryStore) PruneHistory(ctx context.Context, belowBlock uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, versions := range m.versions {
		newestAtOrBelow := -1
		for i, v := range versions {
			if v.Block <= belowBlock {
				newestAtOrBelow = i
			}
		}
		if newestAtOrBelow > 0 {
			m.versions[key] = slices.Clone(versions[newestAtOrBelow:])
		}
	}

	return nil
}

// History returns every version of (t, id), oldest first.
func (m *MemoryStore) History(ctx context.Context, t store.EntityType, id string) ([]store.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.versions[entityKey{t, id}]), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored entities, any type. Useful in tests.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.versions)
}

// memoryTx is handed to RunInTx callbacks. The parent lock is already held.
type memoryTx struct {
	m *MemoryStore
}

func (tx *memoryTx) Get(ctx context.Context, t store.EntityType, id string, dst store.Entity) (bool, error) {
	return tx.m.get(t, id, dst)
}

func (tx *memoryTx) Save(ctx context.Context, e store.Entity) error {
	return tx.m.save(ctx, e)
}

func (tx *memoryTx) List(ctx context.Context, t store.EntityType) ([]string, error) {
	return tx.m.list(t), nil
}
