package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goran-ethernal/DropIndexor/internal/common"
)

const (
	defaultChunkSize            = 5000
	defaultMaxAddressesPerQuery = 500
	defaultPollInterval         = 12 * time.Second
)

var (
	finalityModes      = []string{"finalized", "safe", "latest"}
	journalModes       = []string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}
	synchronousModes   = []string{"FULL", "NORMAL", "OFF"}
	walCheckpointModes = []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
)

// DownloaderConfig configures how logs are pulled from the node.
type DownloaderConfig struct {
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// ChunkSize is the widest block range asked for in one eth_getLogs call
	ChunkSize uint64 `yaml:"chunk_size" json:"chunk_size" toml:"chunk_size"`

	// Finality is the block tag treated as final: finalized, safe or latest
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// FinalizedLag is subtracted from the head when Finality is latest
	FinalizedLag uint64 `yaml:"finalized_lag" json:"finalized_lag" toml:"finalized_lag"`

	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// MaxAddressesPerQuery splits filters over many collections into batched queries
	MaxAddressesPerQuery int `yaml:"max_addresses_per_query" json:"max_addresses_per_query" toml:"max_addresses_per_query"` //nolint:lll

	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`

	// DB stores the sync checkpoint and the recorded block hashes
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

func (d *DownloaderConfig) ApplyDefaults() {
	if d.ChunkSize == 0 {
		d.ChunkSize = defaultChunkSize
	}
	if d.Finality == "" {
		d.Finality = finalityModes[0]
	}
	if d.PollInterval.Duration == 0 {
		d.PollInterval = common.NewDuration(defaultPollInterval)
	}
	if d.MaxAddressesPerQuery == 0 {
		d.MaxAddressesPerQuery = defaultMaxAddressesPerQuery
	}
	if d.Retry != nil {
		d.Retry.ApplyDefaults()
	}
	if d.Maintenance != nil {
		d.Maintenance.ApplyDefaults()
	}

	d.DB.ApplyDefaults()
}

func (d *DownloaderConfig) Validate() error {
	var errs []error

	if d.RPCURL == "" {
		errs = append(errs, errors.New("downloader.rpc_url is required"))
	}
	if !slices.Contains(finalityModes, d.Finality) {
		errs = append(errs, oneOf("downloader.finality", finalityModes))
	}
	errs = append(errs, d.DB.Validate("downloader.db"))

	if d.Maintenance != nil {
		if err := d.Maintenance.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("downloader.%w", err))
		}
	}

	return errors.Join(errs...)
}

// RetryConfig configures exponential backoff for RPC calls.
type RetryConfig struct {
	// MaxAttempts counts the first request too
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	InitialBackoff    common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff        common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`
	BackoffMultiplier float64         `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2
	}
}

// DatabaseConfig configures one SQLite database file.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path" toml:"path"`

	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is in milliseconds
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize follows PRAGMA cache_size: negative values are KiB, positive ones pages
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	MaxOpenConnections int  `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`
	MaxIdleConnections int  `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`
	EnableForeignKeys  bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`
}

func (d *DatabaseConfig) ApplyDefaults() {
	d.JournalMode = strings.ToUpper(d.JournalMode)
	d.Synchronous = strings.ToUpper(d.Synchronous)

	if d.JournalMode == "" {
		d.JournalMode = journalModes[0]
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
}

// Validate checks the database section found under prefix.
func (d *DatabaseConfig) Validate(prefix string) error {
	var errs []error

	if d.Path == "" {
		errs = append(errs, fmt.Errorf("%s.path is required", prefix))
	}
	if d.JournalMode != "" && !slices.Contains(journalModes, d.JournalMode) {
		errs = append(errs, oneOf(prefix+".journal_mode", journalModes))
	}
	if d.Synchronous != "" && !slices.Contains(synchronousModes, d.Synchronous) {
		errs = append(errs, oneOf(prefix+".synchronous", synchronousModes))
	}

	return errors.Join(errs...)
}

// MaintenanceConfig configures periodic WAL checkpoints and VACUUM of a database.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs one pass before the first periodic one
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
	m.WALCheckpointMode = strings.ToUpper(m.WALCheckpointMode)
}

func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" && !slices.Contains(walCheckpointModes, m.WALCheckpointMode) {
		return oneOf("maintenance.wal_checkpoint_mode", walCheckpointModes)
	}

	return nil
}

func oneOf(field string, options []string) error {
	return fmt.Errorf("%s must be one of: %s", field, strings.Join(options, ", "))
}
