package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinwater/pinwatch/internal/core/domain"
	"github.com/pinwater/pinwatch/internal/infra/probe"
	"github.com/pinwater/pinwatch/internal/scheduling/backoff"
	"github.com/pinwater/pinwatch/internal/scheduling/revive"
	"github.com/pinwater/pinwatch/internal/scheduling/throttle"
)

var reviveCmd = &cobra.Command{
	Use:   "revive",
	Short: "Try alternate URLs for dead records and promote the ones that answer",
	Args:  cobra.NoArgs,
	Run:   runRevive,
}

func init() {
	rootCmd.AddCommand(reviveCmd)
}

func runRevive(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	store := mustOpenStore(ctx)
	defer func() { _ = store.Close() }()
	reg := mustLoad(ctx, store)

	prober := probe.New(cfg.Probe.Config)
	defer prober.Close()

	reviver := revive.New(prober, backoff.Default(), throttle.NewPacer(cfg.Pacing), cfg.Probe.WQPTemplate)
	result, err := reviver.Run(ctx, reg)
	if interrupted(ctx, err) {
		slog.Warn("Revive interrupted, saving promotions so far", "promoted", len(result.Promoted))
	} else if err != nil {
		slog.Error("Revive failed", "error", err)
		os.Exit(1)
	}

	mustSave(ctx, store, reg)
	finish(ctx, "revive", reg)

	for _, key := range result.Promoted {
		fmt.Printf("%-24s %s -> %s\n", key, statusText(domain.StatusDead), statusText(domain.StatusLive))
	}
	fmt.Println(summary("Revive",
		"promoted", len(result.Promoted),
		"still dead", len(result.StillDead),
		"no alternate", len(result.NonRevivable),
	))

	exitCode(err != nil)
}
