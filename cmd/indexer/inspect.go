package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/goran-ethernal/DropIndexor/internal/config"
	"github.com/goran-ethernal/DropIndexor/internal/logger"
	internalstore "github.com/goran-ethernal/DropIndexor/internal/store"
	pkgconfig "github.com/goran-ethernal/DropIndexor/pkg/config"
	"github.com/goran-ethernal/DropIndexor/pkg/schema"
	"github.com/goran-ethernal/DropIndexor/pkg/store"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	indexer    string
	entityType string
	id         string
	history    bool
}

func newInspectCmd() *cobra.Command {
	var opts inspectOptions

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print entities from an indexer's entity store",
		Long: `Print entities recorded by an indexer. Without --id the ids of every entity
of the given type are listed. With --history every stored version of the entity is
printed together with the block it was written at.`,
		Example: `  indexer inspect --type Collection
  indexer inspect --type Holder --id 0xc0...-0xa1...
  indexer inspect --indexer drops --type Collection --id 0xc0... --history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			idxCfg, err := selectIndexer(cfg, opts.indexer)
			if err != nil {
				return err
			}

			st, err := internalstore.NewSQLiteStore(idxCfg.DB, nil, logger.NewNopLogger())
			if err != nil {
				return fmt.Errorf("failed to open entity store of indexer %s: %w", idxCfg.Name, err)
			}
			defer st.Close()

			return inspect(cmd, st, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.indexer, "indexer", "", "name of the indexer (defaults to the first configured)")
	cmd.Flags().StringVar(&opts.entityType, "type", "", "entity type, one of the schema entity names")
	cmd.Flags().StringVar(&opts.id, "id", "", "entity id")
	cmd.Flags().BoolVar(&opts.history, "history", false, "print every stored version")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func selectIndexer(cfg *pkgconfig.Config, name string) (pkgconfig.IndexerConfig, error) {
	if name == "" {
		return cfg.Indexers[0], nil
	}

	for _, idxCfg := range cfg.Indexers {
		if idxCfg.Name == name {
			return idxCfg, nil
		}
	}

	return pkgconfig.IndexerConfig{}, fmt.Errorf("no indexer named %q in configuration", name)
}

func inspect(cmd *cobra.Command, st store.VersionedStore, opts inspectOptions, out io.Writer) error {
	entityType := store.EntityType(opts.entityType)
	if !slices.Contains(schema.AllTypes, entityType) {
		return fmt.Errorf("unknown entity type %q (known types: %v)", opts.entityType, schema.AllTypes)
	}

	ctx := cmd.Context()
	id := schema.NormalizeID(opts.id)

	if id == "" {
		ids, err := st.List(ctx, entityType)
		if err != nil {
			return err
		}
		return printJSON(out, ids)
	}

	versions, err := st.History(ctx, entityType, id)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("%s %s not found", opts.entityType, id)
	}

	if opts.history {
		return printJSON(out, versions)
	}

	return printJSON(out, versions[len(versions)-1].Data)
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))
	return err
}
