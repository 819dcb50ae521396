// Package config holds the configuration model of the indexer. Files are
// loaded by internal/config; every section knows its defaults and validates itself.
package config

import (
	"errors"
	"fmt"
)

// Config is the root of a configuration file.
type Config struct {
	Downloader DownloaderConfig `yaml:"downloader" json:"downloader" toml:"downloader"`

	// Indexers lists the indexers fed by the downloader, at least one is required
	Indexers []IndexerConfig `yaml:"indexers" json:"indexers" toml:"indexers"`

	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics exposes Prometheus metrics over HTTP when enabled
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`
}

// ApplyDefaults fills every optional field left empty.
func (c *Config) ApplyDefaults() {
	c.Downloader.ApplyDefaults()

	for i := range c.Indexers {
		c.Indexers[i].ApplyDefaults()
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.ApplyDefaults()

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}
}

// Validate reports every problem found in the configuration, joined into one error.
func (c *Config) Validate() error {
	errs := []error{c.Downloader.Validate()}

	if c.Logging != nil {
		errs = append(errs, c.Logging.Validate())
	}
	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}

	if len(c.Indexers) == 0 {
		errs = append(errs, errors.New("at least one indexer must be configured"))
	}

	names := make(map[string]int, len(c.Indexers))
	for i := range c.Indexers {
		idx := &c.Indexers[i]
		errs = append(errs, idx.Validate(i))

		if first, dup := names[idx.Name]; dup && idx.Name != "" {
			errs = append(errs, fmt.Errorf("indexer[%d]: duplicate indexer name '%s', first used by indexer[%d]",
				i, idx.Name, first))
			continue
		}
		names[idx.Name] = i
	}

	return errors.Join(errs...)
}
