package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/portfolio-site/backend/internal/config"
	"github.com/portfolio-site/backend/internal/engine"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "folio",
	Short:         "Portfolio site backend",
	Long:          "folio serves the portfolio API and runs the daily-article digest, search and bookmark tasks from the terminal.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(resourcesCmd)
	rootCmd.AddCommand(bookmarksCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "folio %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration, honouring --config.
func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		os.Setenv("FOLIO_CONFIG", flagConfig)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger logs to stderr so command output on stdout stays clean.
func newLogger(cfg *config.Config, quiet bool) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if quiet && level > logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	if flagVerbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger.WithField("service", "folio")
}

// openEngine loads config and bootstraps an engine for one-shot commands.
func openEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	eng, err := engine.Bootstrap(cfg, newLogger(cfg, true))
	if err != nil {
		return nil, fmt.Errorf("starting engine: %w", err)
	}
	return eng, nil
}
