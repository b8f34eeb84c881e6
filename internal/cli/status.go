package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health fields of every source and jurisdiction",
	Args:  cobra.NoArgs,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()
	reg := mustLoad(ctx, store)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tERRORS\tBACKOFF\tLAST CHECKED\tLAST SUCCESS\tNEXT CHECK")

	row := func(key string, h *domain.Health) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%dm\t%s\t%s\t%s\n",
			key, h.Status, h.ErrorCount, h.BackoffMinutes,
			stamp(h.LastChecked), stamp(h.LastSuccess), stamp(h.NextCheckAfter))
	}
	for _, src := range reg.Sources {
		row(src.ID, &src.Health)
	}
	for _, abbr := range reg.StateAbbrs() {
		row(domain.WQPKey(abbr), &reg.WQPStates[abbr].Health)
	}
	_ = w.Flush()

	if reg.Meta.Updated != nil {
		fmt.Println(dimStyle.Render("registry updated " + stamp(reg.Meta.Updated)))
	}
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
