package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/ragpipe/internal/config"
	"github.com/kailas-cloud/ragpipe/internal/repository/indexstore"
)

// indexesCmd groups maintenance of persisted representation indices.
var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Inspect and drop persisted representation indices",
}

var indexesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted indices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withIndexStore(cmd.Context(), func(ctx context.Context, repo *indexstore.Repo) error {
			records, err := repo.List(ctx)
			if err != nil {
				return err
			}
			sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })

			if len(records) == 0 {
				color.New(color.Faint).Fprintln(cmd.OutOrStdout(), "no persisted indices")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tREPRESENTATION\tENCODER\tKIND\tDIM\tCOUNT\tCREATED")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.Name, r.FieldPath+"/"+r.Rep, r.Encoder, r.Kind, r.Dim, r.Count,
					r.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		})
	},
}

var indexesDropCmd = &cobra.Command{
	Use:   "drop <name>...",
	Short: "Drop persisted indices by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withIndexStore(cmd.Context(), func(ctx context.Context, repo *indexstore.Repo) error {
			for _, name := range args {
				if err := repo.Delete(ctx, name); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "dropped %s\n", name)
			}
			return nil
		})
	},
}

func init() {
	indexesCmd.AddCommand(indexesListCmd)
	indexesCmd.AddCommand(indexesDropCmd)
	rootCmd.AddCommand(indexesCmd)
}

var errNoDatabase = errors.New("indexes are only persisted with the redis or valkey driver")

// withIndexStore connects the configured database and runs fn against its index registry.
func withIndexStore(ctx context.Context, fn func(context.Context, *indexstore.Repo) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if cfg.Database.Driver == config.DriverMemory {
		return errNoDatabase
	}
	logger, err := newLogger(flags, cfg, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, indexstore.New(store, cfg.Storage.KeyPrefix))
}
