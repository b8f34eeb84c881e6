package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/config"
	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/fetcher"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/fetch"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

var fetchOpts struct {
	source    string
	state     string
	segment   string
	states    []string
	allStates bool
	from      string
	dryRun    bool
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch data for named sources, a segment or WQP jurisdictions",
	Long: `Pull specific records regardless of schedule:

  pinwatch fetch --source usgs-nwis [--state MD]
  pinwatch fetch --segment state
  pinwatch fetch --states MD,VA
  pinwatch fetch --all-states

Dead and gated records and the sentinel sources are skipped. Unknown IDs are
reported and the command exits 1 after saving the results it did gather.`,
	Args: cobra.NoArgs,
	Run:  runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchOpts.source, "source", "", "source ID to fetch")
	f.StringVar(&fetchOpts.state, "state", "", "limit a per-state --source to one jurisdiction")
	f.StringVar(&fetchOpts.segment, "segment", "", "fetch every source of a segment: federal, state, noaa or supplemental")
	f.StringSliceVar(&fetchOpts.states, "states", nil, "comma-separated WQP jurisdictions, e.g. MD,VA")
	f.BoolVar(&fetchOpts.allStates, "all-states", false, "fetch every WQP jurisdiction")
	f.StringVar(&fetchOpts.from, "from", "", "start date YYYY-MM-DD (default fetch.start)")
	f.BoolVar(&fetchOpts.dryRun, "dry-run", false, "list the selection without fetching or saving")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	targets := fetch.Targets{
		Source:    fetchOpts.source,
		State:     fetchOpts.state,
		Segment:   domain.SourceType(strings.ToLower(fetchOpts.segment)),
		States:    fetchOpts.states,
		AllStates: fetchOpts.allStates,
	}
	if targets.Empty() {
		slog.Error("Nothing to fetch, pass --source, --segment, --states or --all-states")
		os.Exit(1)
	}
	if targets.Segment != "" && !targets.Segment.Valid() {
		slog.Error("Unknown segment", "segment", fetchOpts.segment)
		os.Exit(1)
	}
	if targets.State != "" && targets.Source == "" {
		slog.Error("--state only applies to --source, use --states for jurisdictions")
		os.Exit(1)
	}

	start, err := cfg.Fetch.StartDate()
	if fetchOpts.from != "" {
		start, err = time.Parse(config.DateLayout, fetchOpts.from)
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
	report, err := runner.RunTargets(ctx, reg, targets, fetch.Options{Start: start, DryRun: fetchOpts.dryRun})
	if interrupted(ctx, err) {
		slog.Warn("Fetch interrupted, saving partial results", "done", len(report.Items))
	} else if err != nil {
		slog.Error("Fetch failed", "error", err)
		os.Exit(1)
	}

	for _, id := range report.Unknown {
		fmt.Printf("%-24s %s\n", id, deadStyle.Render("unknown"))
	}

	if fetchOpts.dryRun {
		fmt.Println(titleStyle.Render(fmt.Sprintf("Fetch selection (%d)", len(report.Items))))
		for i, it := range report.Items {
			note := ""
			if it.Skipped {
				note = dimStyle.Render("skip: " + it.Reason)
			}
			fmt.Printf("%2d. %-24s %-8s %s %s\n", i+1, it.Key, it.Kind, statusText(it.Status), note)
		}
		exitCode(len(report.Unknown) > 0)
		return
	}

	mustSave(ctx, store, reg)
	finish(ctx, "fetch", reg)

	for _, it := range report.Items {
		switch {
		case it.Skipped:
			fmt.Printf("%-24s %s\n", it.Key, dimStyle.Render("skipped: "+it.Reason))
		case it.NoFetcher:
			fmt.Printf("%-24s %s\n", it.Key, dimStyle.Render("no fetcher"))
		case it.Err != "":
			fmt.Printf("%-24s %s %s\n", it.Key, statusText(it.Status), dimStyle.Render(it.Err))
		default:
			fmt.Printf("%-24s %s %d rows\n", it.Key, statusText(it.Status), it.Rows)
		}
	}
	fmt.Println(summary("Fetch",
		"fetched", report.Fetched,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"no fetcher", report.NoFetcher,
		"unknown", len(report.Unknown),
		"rows", report.Rows,
	))

	exitCode(err != nil || len(report.Unknown) > 0)
}
