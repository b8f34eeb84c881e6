package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/config"
	"github.com/pinwater/pinwatch/internal/infra/fetcher"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

var batchOpts struct {
	from   string
	dryRun bool
}

var nextBatchCmd = &cobra.Command{
	Use:   "next-batch N",
	Short: "Fetch data for the N most overdue sources",
	Long: `Pick the next N records to fetch (federal sources by priority, then WQP
jurisdictions least recently fetched first) and pull them through the
configured fetch endpoints. Failing records inside their backoff window are
held back.`,
	Args: cobra.ExactArgs(1),
	Run:  runNextBatch,
}

func init() {
	nextBatchCmd.Flags().StringVar(&batchOpts.from, "from", "", "start date YYYY-MM-DD (default fetch.start)")
	nextBatchCmd.Flags().BoolVar(&batchOpts.dryRun, "dry-run", false, "print the batch without fetching or saving")
	rootCmd.AddCommand(nextBatchCmd)
}

func runNextBatch(cmd *cobra.Command, args []string) {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		slog.Error("Batch size must be an integer", "value", args[0])
		os.Exit(1)
	}

	start, err := cfg.Fetch.StartDate()
	if batchOpts.from != "" {
		start, err = time.Parse(config.DateLayout, batchOpts.from)
	}
	if err != nil {
		slog.Error("Invalid start date, want YYYY-MM-DD", "error", err)
		os.Exit(1)
	}

	table, err := fetcher.NewTable(cfg.Fetch.Config)
	if err != nil {
		slog.Error("Invalid fetch endpoints", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()
	reg := mustLoad(ctx, store)

	runner := fetch.NewRunner(cfg.Batch.Sentinels, table, backoff.Default(), throttle.NewPacer(cfg.Pacing))
	report, err := runner.Run(ctx, reg, fetch.Options{N: n, Start: start, DryRun: batchOpts.dryRun})
	if interrupted(ctx, err) {
		slog.Warn("Batch interrupted, saving partial results", "done", len(report.Items))
	} else if err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(1)
	}

	if report.Empty() {
		fmt.Println("nothing to fetch")
		return
	}

	if batchOpts.dryRun {
		fmt.Println(titleStyle.Render(fmt.Sprintf("Next batch (%d)", len(report.Items))))
		for i, it := range report.Items {
			fmt.Printf("%2d. %-24s %-8s %s\n", i+1, it.Key, it.Kind, statusText(it.Status))
		}
		return
	}

	mustSave(ctx, store, reg)
	finish(ctx, "next-batch", reg)

	for _, it := range report.Items {
		switch {
		case it.NoFetcher:
			fmt.Printf("%-24s %s\n", it.Key, dimStyle.Render("no fetcher"))
		case it.Err != "":
			fmt.Printf("%-24s %s %s\n", it.Key, statusText(it.Status), dimStyle.Render(it.Err))
		default:
			fmt.Printf("%-24s %s %d rows\n", it.Key, statusText(it.Status), it.Rows)
		}
	}
	fmt.Println(summary("Fetch batch",
		"fetched", report.Fetched,
		"failed", report.Failed,
		"no fetcher", report.NoFetcher,
		"rows", report.Rows,
	))

	exitCode(err != nil)
}
