package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoChartingAdmin/bfx-hf-data-server/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bfx-hf-data-server",
	Short: "Multiplexing WebSocket gateway for Bitfinex market data",
	Long: `bfx-hf-data-server accepts client WebSocket connections, answers
historical data and backtest commands, and optionally gives each client
its own authenticated upstream connection to the Bitfinex WS v2 API.

Without --config the built-in defaults are used.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
}

// loadConfig reads --config, or the defaults when it is not set.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate default config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadAndValidate(cfgFile)
}

// newLogger builds the process logger from the log section.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
