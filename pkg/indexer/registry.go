package indexer

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/rpc"
)

// Env carries the shared services handed to indexer factories.
type Env struct {
	// Log is the fallback logger when Logging is not set
	Log *logger.Logger

	// Logging holds per-component log levels
	Logging *config.LoggingConfig

	// RPC is the chain client shared with the downloader
	RPC rpc.EthClient
}

// ComponentLogger returns a logger for component, honouring the configured component level.
func (e Env) ComponentLogger(component string) *logger.Logger {
	if e.Logging != nil {
		return logger.NewComponentLoggerFromConfig(component, e.Logging)
	}
	if e.Log != nil {
		return e.Log.WithComponent(component)
	}
	return logger.NewNopLogger()
}

// Factory builds an indexer from its configuration entry.
type Factory func(cfg config.IndexerConfig, env Env) (Indexer, error)

var factories = struct {
	sync.RWMutex
	byType map[string]Factory
}{byType: make(map[string]Factory)}

// Register makes a factory available under indexerType, ignoring case.
// It is meant to be called from init and panics on an empty type, a nil
// factory or a type registered twice.
func Register(indexerType string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(indexerType))
	if key == "" {
		panic("indexer: Register with an empty type")
	}
	if factory == nil {
		panic("indexer: Register factory is nil for type " + key)
	}

	factories.Lock()
	defer factories.Unlock()

	if _, dup := factories.byType[key]; dup {
		panic("indexer: Register called twice for type " + key)
	}
	factories.byType[key] = factory
}

// GetFactory returns the factory registered for indexerType, or nil.
func GetFactory(indexerType string) Factory {
	factories.RLock()
	defer factories.RUnlock()

	return factories.byType[strings.ToLower(strings.TrimSpace(indexerType))]
}

// ListRegistered returns the registered types, sorted.
func ListRegistered() []string {
	factories.RLock()
	defer factories.RUnlock()

	out := make([]string, 0, len(factories.byType))
	for t := range factories.byType {
		out = append(out, t)
	}
	slices.Sort(out)

	return out
}

// Create builds an indexer with the factory registered for indexerType.
func Create(indexerType string, cfg config.IndexerConfig, env Env) (Indexer, error) {
	factory := GetFactory(indexerType)
	if factory == nil {
		return nil, fmt.Errorf("unknown indexer type %q, registered: %s",
			indexerType, strings.Join(ListRegistered(), ", "))
	}

	idx, err := factory(cfg, env)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s indexer %q: %w", indexerType, cfg.Name, err)
	}

	return idx, nil
}
