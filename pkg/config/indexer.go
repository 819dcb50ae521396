package config

import (
	"errors"
	"fmt"

	"github.com/goran-ethernal/DropIndexor/internal/common"
)

// Collection kinds understood by the drop indexer.
const (
	CollectionKindVapour721A = "vapour721a"
	CollectionKindRain721A   = "rain721a"
)

// IndexerConfig configures one indexer and its entity store.
type IndexerConfig struct {
	// Name must be unique across indexers
	Name string `yaml:"name" json:"name" toml:"name"`

	// Type selects the registered indexer implementation
	Type string `yaml:"type" json:"type" toml:"type"`

	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// DB holds the versioned entity store
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`

	// Factories lists the collection factories whose children are indexed
	Factories []FactoryConfig `yaml:"factories" json:"factories" toml:"factories"`

	// HaltOnIntegrityError stops indexing instead of recording a fault and moving on
	HaltOnIntegrityError bool `yaml:"halt_on_integrity_error" json:"halt_on_integrity_error" toml:"halt_on_integrity_error"` //nolint:lll

	// NativeToken describes the chain's native payment asset
	NativeToken *NativeTokenConfig `yaml:"native_token,omitempty" json:"native_token,omitempty" toml:"native_token,omitempty"`
}

// FactoryConfig describes one collection factory contract.
type FactoryConfig struct {
	Address string `yaml:"address" json:"address" toml:"address"`

	// Kind is vapour721a or rain721a
	Kind string `yaml:"kind" json:"kind" toml:"kind"`

	// StartBlock defaults to the indexer start block
	StartBlock uint64 `yaml:"start_block,omitempty" json:"start_block,omitempty" toml:"start_block,omitempty"`
}

// NativeTokenConfig holds the fixed metadata of the native asset pseudo-token.
type NativeTokenConfig struct {
	Name     string `yaml:"name" json:"name" toml:"name"`
	Symbol   string `yaml:"symbol" json:"symbol" toml:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals" toml:"decimals"`
}

func (i *IndexerConfig) ApplyDefaults() {
	i.DB.ApplyDefaults()

	if i.Maintenance != nil {
		i.Maintenance.ApplyDefaults()
	}
	if i.NativeToken == nil {
		i.NativeToken = &NativeTokenConfig{Name: "Matic Token", Symbol: "MATIC", Decimals: 18} //nolint:mnd
	}

	for j := range i.Factories {
		f := &i.Factories[j]
		f.Kind = common.ToLowerWithTrim(f.Kind)
		if f.Kind == "" {
			f.Kind = CollectionKindVapour721A
		}
		if f.StartBlock == 0 {
			f.StartBlock = i.StartBlock
		}
	}
}

// Validate checks the indexer found at position idx of the indexers list.
func (i *IndexerConfig) Validate(idx int) error {
	if i.Name == "" {
		return fmt.Errorf("indexer[%d]: name is required", idx)
	}

	prefix := fmt.Sprintf("indexer[%d] (%s)", idx, i.Name)
	var errs []error

	if i.Type == "" {
		errs = append(errs, fmt.Errorf("%s: type is required", prefix))
	}
	errs = append(errs, i.DB.Validate(prefix+": db"))

	if i.Maintenance != nil {
		if err := i.Maintenance.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
	}

	if len(i.Factories) == 0 {
		errs = append(errs, fmt.Errorf("%s: at least one factory must be configured", prefix))
	}

	seen := make(map[string]struct{}, len(i.Factories))
	for j, f := range i.Factories {
		errs = append(errs, f.validate(fmt.Sprintf("%s, factory[%d]", prefix, j), seen))
	}

	return errors.Join(errs...)
}

func (f FactoryConfig) validate(prefix string, seen map[string]struct{}) error {
	if !common.IsHexAddress(f.Address) {
		return fmt.Errorf("%s: invalid address %q", prefix, f.Address)
	}

	key := common.ToLowerWithTrim(f.Address)
	if _, dup := seen[key]; dup {
		return fmt.Errorf("%s: duplicate address %s", prefix, f.Address)
	}
	seen[key] = struct{}{}

	switch common.ToLowerWithTrim(f.Kind) {
	case CollectionKindVapour721A, CollectionKindRain721A:
		return nil
	default:
		return fmt.Errorf("%s: kind must be one of: %s, %s", prefix, CollectionKindVapour721A, CollectionKindRain721A)
	}
}
