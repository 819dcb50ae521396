package drop

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/erc20"
	internalstore "github.com/goran-ethernal/DropIndexor/internal/store"
	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/indexer"
)

// Indexer types served by the engine. Both index every factory kind; the
// kind of each factory is set in its configuration.
const (
	IndexerTypeVapour721A = config.CollectionKindVapour721A
	IndexerTypeRain721A   = config.CollectionKindRain721A
)

func init() {
	indexer.Register(IndexerTypeVapour721A, NewFromConfig)
	indexer.Register(IndexerTypeRain721A, NewFromConfig)
}

// NewFromConfig creates an Engine backed by the SQLite entity store configured in cfg.
func NewFromConfig(cfg config.IndexerConfig, env indexer.Env) (indexer.Indexer, error) {
	if env.RPC == nil {
		return nil, errors.New("drop indexer requires an RPC client")
	}

	log := env.ComponentLogger(common.ComponentDropIndexer)

	st, err := internalstore.NewSQLiteStore(cfg.DB, cfg.Maintenance, env.ComponentLogger(common.ComponentMaintenance))
	if err != nil {
		return nil, fmt.Errorf("failed to open entity store of indexer %s: %w", cfg.Name, err)
	}

	tokens := erc20.NewReader(env.RPC, env.ComponentLogger(common.ComponentTokenReader))

	engine, err := New(cfg, st, tokens, env.RPC, log)
	if err != nil {
		if closeErr := st.Close(); closeErr != nil {
			log.Warnf("failed to close entity store: %v", closeErr)
		}
		return nil, err
	}

	return engine, nil
}
