// Command adresse extracts French postal addresses from free text.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"adresse/internal/app"
	"adresse/internal/config"
	"adresse/internal/logging"
)

var (
	cfgPath  string
	logLevel string
	version  = "dev"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "adresse",
	Short: "Extract French addresses and normalize communes",
	Long: `adresse asks a language model for the address contained in a sentence,
then maps the extracted commune onto a controlled catalog through a
similarity store.

The configuration is read from --config, ./config.yaml or
~/.config/adresse/config.yaml (written with defaults on first run).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// build constructs the pipeline from cfg without touching the store contents.
func build(cfg *config.AppConfig) (*app.App, func(), error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}

// setup loads the configuration, builds the pipeline and seeds the catalog.
func setup(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, cleanup, err := build(cfg)
	if err != nil {
		return nil, nil, err
	}
	if _, err := a.Seed(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}
