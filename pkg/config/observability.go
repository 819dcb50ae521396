package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
)

// LoggingConfig sets the default log level and overrides per component.
type LoggingConfig struct {
	// DefaultLevel is one of debug, info, warn, error
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development switches to the console encoder with stack traces
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels overrides DefaultLevel for: downloader, log-fetcher, sync-manager,
	// reorg-detector, maintenance, indexer-coordinator, entity-store, drop-indexer, token-reader
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll

	// Sentry receives error level entries when set
	Sentry *SentryConfig `yaml:"sentry,omitempty" json:"sentry,omitempty" toml:"sentry,omitempty"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn" json:"dsn" toml:"dsn"`
	Environment string `yaml:"environment" json:"environment" toml:"environment"`
	Debug       bool   `yaml:"debug" json:"debug" toml:"debug"`
}

func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
	if l.Sentry != nil && l.Sentry.Environment == "" {
		l.Sentry.Environment = "production"
	}
}

func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.DefaultLevel != "" && !validLevel(l.DefaultLevel) {
		errs = append(errs, errors.New("logging.default_level must be one of: debug, info, warn, error"))
	}

	for component, level := range l.ComponentLevels {
		if _, ok := common.AllComponents[common.ToLowerWithTrim(component)]; !ok {
			errs = append(errs, fmt.Errorf("logging.component_levels: unknown component '%s'", component))
			continue
		}
		if !validLevel(level) {
			errs = append(errs, fmt.Errorf("logging.component_levels[%s] must be one of: debug, info, warn, error",
				component))
		}
	}

	if l.Sentry != nil && strings.TrimSpace(l.Sentry.DSN) == "" {
		errs = append(errs, errors.New("logging.sentry.dsn is required when sentry is configured"))
	}

	return errors.Join(errs...)
}

func validLevel(level string) bool {
	_, ok := logger.ValidLogLevels[common.ToLowerWithTrim(level)]
	return ok
}

// GetComponentLevel returns the level configured for component, or the default one.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

func (l *LoggingConfig) GetDefaultLevel() string {
	return common.ToLowerWithTrim(l.DefaultLevel)
}

func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is host:port or :port
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	Path string `yaml:"path" json:"path" toml:"path"`
}

func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

func (m *MetricsConfig) Validate() error {
	switch {
	case !m.Enabled:
		return nil
	case m.ListenAddress == "":
		return errors.New("listen_address is required when metrics are enabled")
	case !strings.HasPrefix(m.Path, "/"):
		return errors.New("path must start with '/'")
	}

	return nil
}
