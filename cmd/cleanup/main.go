package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"retouch/internal/domain"
	"retouch/internal/infra"
	"retouch/internal/registry"
	"retouch/internal/storage"
)

var (
	hoursFlag  int
	dryRunFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Inspect and prune generated images tracked in the registry",
	Long: `Cleanup reads the generated-image registry written by the API and removes
images older than a cutoff from storage.

Examples:
  cleanup list
  cleanup prune --hours 24 --dry-run
  cleanup prune --hours 72`,
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every registered image",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, done, err := setup()
		if err != nil {
			return err
		}
		defer done()
		items, err := registry.New(cfg.RegistryPath).List()
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.RegistryPath).Msg("failed to read registry")
			return err
		}
		return printItems(cmd.OutOrStdout(), items)
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete images older than --hours from storage and the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if hoursFlag <= 0 {
			return fmt.Errorf("--hours must be positive, got %d", hoursFlag)
		}
		cfg, logger, done, err := setup()
		if err != nil {
			return err
		}
		defer done()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := storage.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-time.Duration(hoursFlag) * time.Hour)
		res, err := prune(ctx, registry.New(cfg.RegistryPath), store, cutoff, dryRunFlag, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "matched=%d deleted=%d missing=%d failed=%d dry_run=%t\n",
			res.Matched, res.Deleted, res.Missing, res.Failed, dryRunFlag)
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&hoursFlag, "hours", 24, "Delete images created more than this many hours ago")
	pruneCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Report what would be deleted without deleting")
	rootCmd.AddCommand(listCmd, pruneCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*infra.Config, infra.Logger, func(), error) {
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, infra.Logger{}, nil, err
	}
	sinks, closeSinks, err := infra.OpenLogSinks(cfg)
	if err != nil {
		return nil, infra.Logger{}, nil, err
	}
	return cfg, infra.NewLogger(cfg.AppEnv, sinks...), closeSinks, nil
}

type pruneRegistry interface {
	List() ([]domain.RegistryItem, error)
	Prune(cutoff time.Time) ([]domain.RegistryItem, error)
}

type deleter interface {
	Delete(ctx context.Context, publicID string) error
}

type pruneResult struct {
	Matched int
	Deleted int
	Missing int
	Failed  int
}

// prune drops registry entries older than cutoff and deletes their objects.
// Objects already gone from storage count as missing, not failed.
func prune(ctx context.Context, reg pruneRegistry, store deleter, cutoff time.Time, dryRun bool, logger infra.Logger) (pruneResult, error) {
	var res pruneResult
	if dryRun {
		items, err := reg.List()
		if err != nil {
			return res, err
		}
		for _, it := range items {
			if it.CreatedAt.Before(cutoff) {
				res.Matched++
				logger.Info().Str("phase", "cleanup.dry_run").Str("public_id", it.PublicID).Time("created_at", it.CreatedAt).Msg("would delete")
			}
		}
		return res, nil
	}

	removed, err := reg.Prune(cutoff)
	if err != nil {
		return res, err
	}
	res.Matched = len(removed)
	for _, it := range removed {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := store.Delete(ctx, it.PublicID)
		switch {
		case err == nil:
			res.Deleted++
		case errors.Is(err, domain.ErrNotFound):
			res.Missing++
		default:
			res.Failed++
			logger.Warn().Err(err).Str("phase", "cleanup.delete").Str("public_id", it.PublicID).Msg("delete failed")
		}
	}
	logger.Info().Str("phase", "cleanup.done").
		Int("matched", res.Matched).
		Int("deleted", res.Deleted).
		Int("missing", res.Missing).
		Int("failed", res.Failed).
		Msg("prune finished")
	return res, nil
}

func printItems(w io.Writer, items []domain.RegistryItem) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLIC ID\tCREATED\tSESSION\tURL")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.PublicID, it.CreatedAt.Format(time.RFC3339), it.SessionID, it.URL)
	}
	return tw.Flush()
}
