package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/config"
)

var seedOpts struct {
	catalog   string
	overwrite bool
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the registry from a YAML catalog",
	Long: `Build a fresh registry from a static catalog of sources and WQP
jurisdictions. Every record starts live (or gated) with no history. An
existing registry is only replaced with --overwrite.`,
	Args: cobra.NoArgs,
	Run:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.catalog, "catalog", "catalog.yaml", "catalog file")
	seedCmd.Flags().BoolVar(&seedOpts.overwrite, "overwrite", false, "replace an existing registry")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	catalog, err := config.LoadCatalog(seedOpts.catalog)
	if err != nil {
		slog.Error("Failed to load catalog", "error", err)
		os.Exit(1)
	}
	reg, err := catalog.Registry()
	if err != nil {
		slog.Error("Invalid catalog", "path", seedOpts.catalog, "error", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()

	exists, err := store.Exists(ctx)
	if err != nil {
		slog.Error("Failed to check for an existing registry", "error", err)
		os.Exit(1)
	}
	if exists && !seedOpts.overwrite {
		slog.Error("Registry already exists, pass --overwrite to replace it", "backend", cfg.Store.Backend)
		os.Exit(1)
	}

	mustSave(ctx, store, reg)
	finish(ctx, "seed", reg)

	fmt.Println(summary("Registry seeded",
		"sources", len(reg.Sources),
		"wqp states", len(reg.WQPStates),
		"backend", cfg.Store.Backend,
	))
}
