// Command aerocopilot runs the copilot voice service and a few operator tools
// around it.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ent0n29/aerocopilot/internal/config"
	"github.com/ent0n29/aerocopilot/internal/logging"
)

// Version is set at build time.
var Version = "dev"

var (
	logLevel string
	logFile  string

	rootCmd = &cobra.Command{
		Use:           "aerocopilot",
		Short:         "Voice output and advisory chat for the flight copilot",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "rotating log file (overrides LOG_FILE)")
	rootCmd.AddCommand(serveCmd, speakCmd, flightsCmd, casesCmd)
}

// setup loads configuration from the environment, applies flag overrides and
// builds the process logger.
func setup() (config.Config, *log.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, logger, closer, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
