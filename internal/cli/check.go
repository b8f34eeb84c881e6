package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/check"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

var checkOpts struct {
	fast    bool
	force   bool
	wqp     bool
	sources []string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe sources and WQP jurisdictions and update their health",
	Long: `Probe every source, then every WQP jurisdiction, honoring backoff windows.
Use --source to limit the run to specific records: a source ID, a jurisdiction
("MD" or "wqp-MD") or "all-wqp". Unknown identifiers are reported and the
command exits 1 after saving the results of the known ones.`,
	Args: cobra.NoArgs,
	Run:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkOpts.fast, "fast", false, "HEAD requests with a short timeout")
	checkCmd.Flags().BoolVar(&checkOpts.force, "force", false, "ignore backoff windows")
	checkCmd.Flags().BoolVar(&checkOpts.wqp, "wqp", false, "check all WQP jurisdictions only")
	checkCmd.Flags().StringArrayVar(&checkOpts.sources, "source", nil, "source ID or jurisdiction to check (repeatable)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()
	reg := mustLoad(ctx, store)

	prober := probe.New(cfg.Probe.Config)
	defer prober.Close()

	runner := check.NewRunner(prober, backoff.Default(), throttle.NewPacer(cfg.Pacing), cfg.Probe.WQPTemplate)
	report, err := runner.Run(ctx, reg, check.Options{
		Fast:    checkOpts.fast,
		Force:   checkOpts.force,
		WQPOnly: checkOpts.wqp,
		Targets: checkOpts.sources,
	})
	if interrupted(ctx, err) {
		slog.Warn("Check interrupted, saving partial results", "checked", report.Summary.Checked())
	} else if err != nil {
		slog.Error("Check failed", "error", err)
		os.Exit(1)
	}

	mustSave(ctx, store, reg)
	finish(ctx, "check", reg)

	for _, o := range report.Outcomes {
		if o.Changed() {
			fmt.Printf("%-24s %s -> %s\n", o.Key, statusText(o.Previous), statusText(o.Status))
		}
	}

	sum := report.Summary
	fmt.Println(summary("Health check",
		"live", sum.Live,
		"degraded", sum.Degraded,
		"dead", sum.Dead,
		"gated", sum.Gated,
		"skipped", sum.Skipped,
	))
	if len(sum.Unknown) > 0 {
		fmt.Println(deadStyle.Render(fmt.Sprintf("unknown: %v", sum.Unknown)))
	}

	exitCode(!sum.OK() || err != nil)
}
