package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/sentiment-fetch/internal/config"
	"github.com/Sternrassler/sentiment-fetch/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sentiment-fetch",
	Short: "Fetch recent posts for a query and report their sentiment",
	Long: `sentiment-fetch retrieves up to N recent posts matching a keyword or
hashtag from the recent-search API, waiting out rate limits with a bounded
number of retries, then classifies each post and prints the sentiment
distribution.

Examples:
  # Analyze 50 live posts
  sentiment-fetch analyze technology --count 50

  # Analyze synthetic posts without touching the API
  sentiment-fetch analyze technology --offline

  # Serve analyses over HTTP
  sentiment-fetch serve --addr :8080

  # Re-run an analysis every 15 minutes
  sentiment-fetch watch technology --schedule "@every 15m"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sentiment-fetch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)

	rootCmd.AddCommand(analyzeCmd, serveCmd, watchCmd)
}

// initConfig loads configuration and sets up logging.
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}
	cfg = loaded

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Logging.Level)
	if verbose {
		logCfg.Level = logging.LevelDebug
	}
	logCfg.Pretty = cfg.Logging.Format == "text"
	logCfg.Output = os.Stderr
	logging.Setup(logCfg)

	log.Debug().
		Str("search_base_url", cfg.Search.BaseURL).
		Bool("live", cfg.Search.BearerToken != "").
		Bool("redis", cfg.Redis.Addr != "").
		Str("classifier", cfg.Classifier.Backend).
		Msg("Configuration loaded")

	return nil
}

// colorsEnabled reports whether terminal output may use colours.
func colorsEnabled() bool {
	return cfg.Output.Colors && !noColor
}
