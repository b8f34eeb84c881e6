package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var timeNow = time.Now

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// interrupted reports whether err came from a cancelled run.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

func exitCode(failed bool) {
	if failed {
		os.Exit(1)
	}
}
