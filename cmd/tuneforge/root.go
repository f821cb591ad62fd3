package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/icewall905/tuneforge/internal/config"
	"github.com/icewall905/tuneforge/internal/logger"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "tuneforge",
	Short:         "TuneForge - sonic playlist expansion",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default $TUNEFORGE_CONFIG or tuneforge.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(serveCmd, generateCmd, schemaCmd, indexesCmd, migrateCmd)
}

// loadConfig reads and validates configuration for a command.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	return logger.New(logger.Config{
		Output: out,
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
