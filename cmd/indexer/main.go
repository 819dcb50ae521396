package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	// registers the vapour721a and rain721a indexer types
	_ "github.com/goran-ethernal/DropIndexor/internal/drop"

	"github.com/goran-ethernal/DropIndexor/internal/common"
	"github.com/goran-ethernal/DropIndexor/internal/config"
	"github.com/goran-ethernal/DropIndexor/internal/db"
	"github.com/goran-ethernal/DropIndexor/internal/downloader"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	"github.com/goran-ethernal/DropIndexor/internal/metrics"
	"github.com/goran-ethernal/DropIndexor/internal/migrations"
	"github.com/goran-ethernal/DropIndexor/internal/reorg"
	"github.com/goran-ethernal/DropIndexor/internal/rpc"
	pkgconfig "github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/indexer"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║           DropIndexor v%s              ║
║     NFT Drop Event Indexing Service       ║
╚═══════════════════════════════════════════╝
`

	sentryFlushTimeout = 2 * time.Second
	shutdownTimeout    = 5 * time.Second
)

var configPath string

// maintainedIndexer is implemented by indexers that prune their own storage.
type maintainedIndexer interface {
	StartMaintenance(ctx context.Context, finalized func() uint64) error
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "DropIndexor - NFT drop event indexer",
	Long: `DropIndexor indexes the events of Vapour721A and Rain721A NFT drop factories and
the collections they deploy. It follows new collections as they are deployed, rolls back
on chain reorganizations and keeps a versioned entity store per indexer.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runIndexer,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the indexer types usable in the configuration file",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Available indexer types:")
		for _, t := range indexer.ListRegistered() {
			fmt.Fprintf(out, "  - %s\n", t)
		}
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the configuration file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.SchemaJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(listCmd, schemaCmd, newInspectCmd())
}

// cleanup runs registered release functions in reverse order.
type cleanup struct {
	log   *logger.Logger
	steps []func() error
	names []string
}

func (c *cleanup) add(name string, fn func() error) {
	c.names = append(c.names, name)
	c.steps = append(c.steps, fn)
}

func (c *cleanup) run() {
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](); err != nil {
			c.log.Warnw("shutdown step failed", "step", c.names[i], "error", err)
		}
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), banner, version)

	if cfg.Logging.Sentry != nil {
		flush, err := logger.EnableSentry(logger.SentryOptions{
			DSN:         cfg.Logging.Sentry.DSN,
			Environment: cfg.Logging.Sentry.Environment,
			Debug:       cfg.Logging.Sentry.Debug,
			Tags:        map[string]string{"service": "drop-indexer", "version": version},
		})
		if err != nil {
			return fmt.Errorf("failed to enable sentry: %w", err)
		}
		defer flush(sentryFlushTimeout)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.NewComponentLoggerFromConfig(common.ComponentDownloader, cfg.Logging)
	shutdown := &cleanup{log: log}
	defer shutdown.run()

	if err := startMetrics(ctx, cfg, shutdown); err != nil {
		return err
	}

	ethClient, err := rpc.NewClient(ctx, cfg.Downloader.RPCURL, cfg.Downloader.Retry)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Downloader.RPCURL, err)
	}

	dl, err := newDownloader(cfg, ethClient, log)
	if err != nil {
		ethClient.Close()
		return err
	}
	shutdown.add("downloader", dl.Close)

	env := indexer.Env{Log: logger.GetDefaultLogger(), Logging: cfg.Logging, RPC: ethClient}
	for _, idxCfg := range cfg.Indexers {
		idx, err := indexer.Create(idxCfg.Type, idxCfg, env)
		if err != nil {
			return err
		}
		if closer, ok := idx.(io.Closer); ok {
			shutdown.add("indexer "+idxCfg.Name, closer.Close)
		}
		if maintained, ok := idx.(maintainedIndexer); ok {
			if err := maintained.StartMaintenance(ctx, dl.Finalized); err != nil {
				return fmt.Errorf("failed to start maintenance of indexer %s: %w", idxCfg.Name, err)
			}
		}

		dl.RegisterIndexer(idx)
	}

	log.Infow("indexing started", "indexers", len(cfg.Indexers), "rpc", cfg.Downloader.RPCURL)

	if err := dl.Download(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("downloader failed: %w", err)
	}

	log.Info("shutting down")
	return nil
}

func startMetrics(ctx context.Context, cfg *pkgconfig.Config, shutdown *cleanup) error {
	if cfg.Metrics == nil || !cfg.Metrics.Enabled {
		return nil
	}

	server := metrics.NewServer(cfg.Metrics, logger.NewComponentLoggerFromConfig(common.ComponentMetrics, cfg.Logging))
	if err := server.Start(ctx); err != nil {
		return err
	}

	shutdown.add("metrics server", func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(stopCtx)
	})

	return nil
}

// newDownloader opens the downloader database and wires the components sharing it.
func newDownloader(cfg *pkgconfig.Config, ethClient *rpc.Client, log *logger.Logger) (*downloader.Downloader, error) {
	database, err := db.NewSQLiteDBFromConfig(cfg.Downloader.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open downloader database: %w", err)
	}

	fail := func(err error) (*downloader.Downloader, error) {
		database.Close()
		return nil, err
	}

	if err := migrations.RunMigrations(log, database); err != nil {
		return fail(fmt.Errorf("failed to migrate downloader database: %w", err))
	}

	maintenance := db.NewMaintenanceCoordinator(cfg.Downloader.DB.Path, database, cfg.Downloader.Maintenance, log)

	detector, err := reorg.NewReorgDetector(database, ethClient, logger.NewComponentLoggerFromConfig(common.ComponentReorgDetector, cfg.Logging), maintenance)
	if err != nil {
		return fail(err)
	}

	syncManager, err := downloader.NewSyncManager(database, log, maintenance)
	if err != nil {
		return fail(err)
	}

	dl, err := downloader.New(cfg.Downloader, ethClient, detector, syncManager, maintenance, log)
	if err != nil {
		return fail(fmt.Errorf("failed to create downloader: %w", err))
	}

	return dl, nil
}
