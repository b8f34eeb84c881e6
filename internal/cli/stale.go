package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/scheduling/staleness"
)

var staleThreshold int

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Report dead, stale and never-fetched records",
	Args:  cobra.NoArgs,
	Run:   runStale,
}

func init() {
	staleCmd.Flags().IntVar(&staleThreshold, "threshold", 0, "days since last success before a record is stale (default stale.threshold_days)")
	rootCmd.AddCommand(staleCmd)
}

func runStale(cmd *cobra.Command, args []string) {
	threshold := cfg.Stale.ThresholdDays
	if cmd.Flags().Changed("threshold") {
		threshold = staleThreshold
	}

	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()
	reg := mustLoad(ctx, store)

	report := staleness.Build(reg, threshold, timeNow())
	finish(ctx, "stale", reg)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	section := func(title string, entries []staleness.Entry) {
		if len(entries) == 0 {
			return
		}
		_, _ = fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(entries))))
		for _, e := range entries {
			age := "never"
			if e.Days != nil {
				age = fmt.Sprintf("%dd", *e.Days)
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", e.Key, e.Status, age, e.Bracket.Label())
		}
	}
	section("Dead", report.Dead)
	section(fmt.Sprintf("Stale > %dd", report.ThresholdDays), report.Stale)
	section("Never fetched", report.Never)
	_ = w.Flush()

	pairs := make([]any, 0, 2*len(staleness.Brackets)+6)
	pairs = append(pairs, "dead", len(report.Dead), "stale", len(report.Stale), "never", len(report.Never))
	for _, b := range staleness.Brackets {
		pairs = append(pairs, b.Label(), report.Brackets[b])
	}
	fmt.Println(summary(fmt.Sprintf("Staleness (%d records)", report.Total), pairs...))
}
