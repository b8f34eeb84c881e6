package cli

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/pinwater/pinwatch/internal/core/config"
)

var (
	cfgPath string
	isDebug bool

	cfg       *config.AppConfig
	cfgLoaded bool // false when running on defaults
	runID     string
)

var rootCmd = &cobra.Command{
	Use:   "pinwatch",
	Short: "Source health and fetch scheduling for the PIN pipeline",
	Long: `pinwatch keeps a registry of public water-quality data sources healthy:
it probes endpoints, backs off failing ones, picks the next fetch batch,
reports stale data and tries alternate URLs for dead sources.`,
	PersistentPreRun: setup,
	SilenceUsage:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "pinwatch.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// setup loads .env and the config file, then initializes logging.
func setup(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	loaded, err := config.Load(cfgPath)
	switch {
	case err == nil:
		cfg, cfgLoaded = loaded, true
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
		// No config file in the working directory: run on defaults.
		cfg = config.Default()
	default:
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	runID = uuid.NewString()
	slog.SetDefault(slog.Default().With("run_id", runID))
	slog.Debug("Logger initialized", "level", slogLevel.String(), "command", cmd.Name())
}
