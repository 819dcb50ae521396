package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Examples(t *testing.T) {
	for _, path := range []string{
		"../../config.example.yaml",
		"../../config.example.json",
		"../../config.example.toml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := LoadFromFile(path)
			require.NoError(t, err)
			validateConfig(t, cfg, filepath.Ext(path))
		})
	}
}

func TestLoadFromFile_YAMLComponentLevels(t *testing.T) {
	cfg, err := LoadFromFile("../../config.example.yaml")
	require.NoError(t, err)

	require.True(t, cfg.Downloader.Maintenance.Enabled)
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("drop-indexer"))
	require.Equal(t, "warn", cfg.Logging.GetComponentLevel("log-fetcher"))
	require.Equal(t, "info", cfg.Logging.GetComponentLevel("downloader"))
}

func TestFormatOf(t *testing.T) {
	tests := map[string]Format{
		"config.yaml":      FormatYAML,
		"/etc/drops.YML":   FormatYAML,
		"config.json":      FormatJSON,
		"nested/cfg.toml":  FormatTOML,
	}
	for path, want := range tests {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}

	_, err := FormatOf("config.txt")
	require.ErrorContains(t, err, "unsupported config file format")

	_, err = LoadFromFile("config.ini")
	require.ErrorContains(t, err, "unsupported config file format")
}

const minimalYAML = `
downloader:
  rpc_url: "${DROPS_RPC_URL}"
  db:
    path: "./downloader.sqlite"
indexers:
  - name: "vapour"
    type: "vapour721a"
    db:
      path: "./vapour.sqlite"
    factories:
      - address: "0x5fbdb2315678afecb367f032d93f642f64180aa3"
`

func TestLoad(t *testing.T) {
	t.Setenv("DROPS_RPC_URL", "https://polygon.example/key")

	tests := []struct {
		name    string
		data    string
		format  Format
		wantErr string
	}{
		{name: "expands environment", data: minimalYAML, format: FormatYAML},
		{
			name:    "unknown yaml key",
			data:    minimalYAML + "tracing: true\n",
			format:  FormatYAML,
			wantErr: "field tracing not found",
		},
		{
			name:    "unknown json key",
			data:    `{"downloader": {"rpc_url": "x", "chunk": 5}}`,
			format:  FormatJSON,
			wantErr: `unknown field "chunk"`,
		},
		{
			name:    "unknown toml key",
			data:    "[downloader]\nrpc_url = \"x\"\nchunks = 5\n",
			format:  FormatTOML,
			wantErr: "unknown keys",
		},
		{
			name:    "invalid address",
			data:    strings.Replace(minimalYAML, "0x5fbdb2315678afecb367f032d93f642f64180aa3", "not-an-address", 1),
			format:  FormatYAML,
			wantErr: "invalid address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load([]byte(tt.data), tt.format)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, "https://polygon.example/key", cfg.Downloader.RPCURL)
		})
	}
}

func TestLoadFromFile_ReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("downloader: [\n"), 0o600))

	_, err := LoadFromFile(path)
	require.ErrorContains(t, err, path)
	require.ErrorContains(t, err, "failed to parse yaml config")
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, format string) {
	t.Helper()

	require.NotEmpty(t, cfg.Downloader.RPCURL, "[%s] downloader.rpc_url should not be empty", format)
	require.Equal(t, uint64(2000), cfg.Downloader.ChunkSize, "[%s] downloader.chunk_size", format)
	require.Equal(t, "finalized", cfg.Downloader.Finality, "[%s] finality", format)
	require.Equal(t, 5*time.Second, cfg.Downloader.PollInterval.Duration, "[%s] poll_interval", format)
	require.NotNil(t, cfg.Downloader.Retry, "[%s] retry", format)
	require.Equal(t, 30*time.Second, cfg.Downloader.Retry.MaxBackoff.Duration, "[%s] retry.max_backoff", format)

	require.NotEmpty(t, cfg.Downloader.DB.Path, "[%s] db.path should not be empty", format)
	require.Equal(t, "WAL", cfg.Downloader.DB.JournalMode, "[%s] db.journal_mode default", format)
	require.Equal(t, "NORMAL", cfg.Downloader.DB.Synchronous, "[%s] db.synchronous default", format)

	require.Len(t, cfg.Indexers, 1, "[%s] indexers", format)
	indexer := cfg.Indexers[0]
	require.Equal(t, "vapour", indexer.Name)
	require.Equal(t, "vapour721a", indexer.Type)
	require.Equal(t, uint64(27000000), indexer.StartBlock)
	require.Equal(t, "WAL", indexer.DB.JournalMode, "[%s] indexer db defaults", format)

	require.NotNil(t, indexer.NativeToken, "[%s] native token default", format)
	require.Equal(t, "MATIC", indexer.NativeToken.Symbol)
	require.Equal(t, uint8(18), indexer.NativeToken.Decimals)

	require.Len(t, indexer.Factories, 2, "[%s] factories", format)
	require.Equal(t, config.CollectionKindVapour721A, indexer.Factories[0].Kind)
	require.Equal(t, uint64(27000000), indexer.Factories[0].StartBlock, "[%s] factory start block default", format)
	require.Equal(t, config.CollectionKindRain721A, indexer.Factories[1].Kind)
	require.Equal(t, uint64(27100000), indexer.Factories[1].StartBlock)

	require.NotNil(t, cfg.Logging)
	require.Equal(t, "info", cfg.Logging.GetDefaultLevel())
	require.NotNil(t, cfg.Metrics)
	require.True(t, cfg.Metrics.Enabled)
}

func TestConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Downloader: config.DownloaderConfig{
			RPCURL: "https://test.com",
			DB:     config.DatabaseConfig{Path: "./test.db"},
		},
		Indexers: []config.IndexerConfig{
			{
				Name:       "test",
				Type:       "vapour721a",
				StartBlock: 100,
				DB:         config.DatabaseConfig{Path: "./test-indexer.db"},
				Factories: []config.FactoryConfig{
					{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Kind: " Rain721A "},
					{Address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"},
				},
			},
		},
	}

	cfg.ApplyDefaults()

	require.Equal(t, uint64(5000), cfg.Downloader.ChunkSize)
	require.Equal(t, "finalized", cfg.Downloader.Finality)
	require.Equal(t, 12*time.Second, cfg.Downloader.PollInterval.Duration)
	require.Equal(t, "WAL", cfg.Downloader.DB.JournalMode)
	require.Equal(t, "NORMAL", cfg.Downloader.DB.Synchronous)
	require.Equal(t, 5000, cfg.Downloader.DB.BusyTimeout)
	require.Equal(t, 25, cfg.Downloader.DB.MaxOpenConnections)

	idx := cfg.Indexers[0]
	require.Equal(t, "WAL", idx.DB.JournalMode)
	require.Equal(t, config.CollectionKindRain721A, idx.Factories[0].Kind)
	require.Equal(t, config.CollectionKindVapour721A, idx.Factories[1].Kind)
	require.Equal(t, uint64(100), idx.Factories[1].StartBlock)
	require.Equal(t, "Matic Token", idx.NativeToken.Name)

	require.NotNil(t, cfg.Logging, "logging section is always materialized")
	require.Equal(t, "info", cfg.Logging.DefaultLevel)
}

func TestConfigValidation(t *testing.T) {
	valid := func() *config.Config {
		cfg := &config.Config{
			Downloader: config.DownloaderConfig{
				RPCURL:   "https://test.com",
				Finality: "finalized",
				DB:       config.DatabaseConfig{Path: "./test.db"},
			},
			Indexers: []config.IndexerConfig{
				{
					Name: "test",
					Type: "vapour721a",
					DB:   config.DatabaseConfig{Path: "./indexer.db"},
					Factories: []config.FactoryConfig{
						{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Kind: "vapour721a"},
					},
				},
			},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(cfg *config.Config) {},
		},
		{
			name:    "missing rpc url",
			mutate:  func(cfg *config.Config) { cfg.Downloader.RPCURL = "" },
			wantErr: "downloader.rpc_url is required",
		},
		{
			name:    "invalid finality",
			mutate:  func(cfg *config.Config) { cfg.Downloader.Finality = "pending" },
			wantErr: "downloader.finality",
		},
		{
			name:    "invalid journal mode",
			mutate:  func(cfg *config.Config) { cfg.Downloader.DB.JournalMode = "FAST" },
			wantErr: "downloader.db.journal_mode",
		},
		{
			name:    "no indexers",
			mutate:  func(cfg *config.Config) { cfg.Indexers = nil },
			wantErr: "at least one indexer",
		},
		{
			name:    "missing indexer type",
			mutate:  func(cfg *config.Config) { cfg.Indexers[0].Type = "" },
			wantErr: "type is required",
		},
		{
			name:    "missing indexer db path",
			mutate:  func(cfg *config.Config) { cfg.Indexers[0].DB.Path = "" },
			wantErr: "db.path is required",
		},
		{
			name:    "no factories",
			mutate:  func(cfg *config.Config) { cfg.Indexers[0].Factories = nil },
			wantErr: "at least one factory",
		},
		{
			name: "duplicate factory",
			mutate: func(cfg *config.Config) {
				cfg.Indexers[0].Factories = append(cfg.Indexers[0].Factories, config.FactoryConfig{
					Address: "0x5fbdb2315678afecb367f032d93f642f64180aa3",
					Kind:    "rain721a",
				})
			},
			wantErr: "duplicate address",
		},
		{
			name:    "unknown factory kind",
			mutate:  func(cfg *config.Config) { cfg.Indexers[0].Factories[0].Kind = "erc1155" },
			wantErr: "kind must be one of",
		},
		{
			name: "duplicate indexer name",
			mutate: func(cfg *config.Config) {
				cfg.Indexers = append(cfg.Indexers, cfg.Indexers[0])
			},
			wantErr: "duplicate indexer name",
		},
		{
			name:    "unknown logging component",
			mutate:  func(cfg *config.Config) { cfg.Logging.ComponentLevels["log-store"] = "debug" },
			wantErr: "unknown component",
		},
		{
			name:    "sentry without dsn",
			mutate:  func(cfg *config.Config) { cfg.Logging.Sentry = &config.SentryConfig{} },
			wantErr: "logging.sentry.dsn",
		},
		{
			name: "metrics path without slash",
			mutate: func(cfg *config.Config) {
				cfg.Metrics = &config.MetricsConfig{Enabled: true, ListenAddress: ":9090", Path: "metrics"}
			},
			wantErr: "path must start with '/'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSchema(t *testing.T) {
	data, err := SchemaJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), `"factories"`)
	require.Contains(t, string(data), `"halt_on_integrity_error"`)
	require.Contains(t, string(data), "Duration expressed in units")
}
