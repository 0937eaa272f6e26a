// Command formrules serves and fills rule-driven forms.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formrules/internal/config"
)

var (
	configPath string
	logLevel   string
	dataDir    string
	inMemory   bool

	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "formrules",
		Short:         "Author, evaluate, and fill forms driven by conditional rules",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				loaded.Log.Level = logLevel
			}
			if cmd.Flags().Changed("data-dir") {
				loaded.Storage.DataDir = dataDir
			}
			if cmd.Flags().Changed("in-memory") {
				loaded.Storage.InMemory = inMemory
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			logger, err = newLogger(cfg.Log)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (yaml, json, or toml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&dataDir, "data-dir", "", "badger data directory")
	flags.BoolVar(&inMemory, "in-memory", false, "keep all data in memory")

	rootCmd.AddCommand(serveCmd, formsCmd, openapiCmd, evaluateCmd, fillCmd, cacheCmd)
}

func newLogger(c config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formrules:", err)
		os.Exit(1)
	}
}
