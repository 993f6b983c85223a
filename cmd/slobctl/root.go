package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/holmberd/go-slob"
)

var (
	// Global flags
	envFile   string
	logLevel  string
	logFormat string
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "slobctl",
	Short: "Exercise and inspect a fixed-block SLOB allocator",
	Long: `slobctl builds a SLOB allocator from SLOB_* environment variables and
runs allocation workloads against it, reporting pool statistics and
free-list integrity.

Environment:
  SLOB_POOLS        block:storage pairs, e.g. "4:120,8:160"
  SLOB_TOTAL_POOLS  pool slots, defaults to the number of pools
  SLOB_BACKING      heap or mmap
  SLOB_POLICY       first-fit or first-fit-fallback
  SLOB_THREAD_SAFE  guard each pool with a mutex
  SLOB_LOG_LEVEL    debug, info, warn or error
  SLOB_LOG_FORMAT   text or json`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from a dotenv file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides SLOB_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format, text or json (overrides SLOB_LOG_FORMAT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCommandConfig reads the environment and applies the global flag overrides.
func loadCommandConfig() (Config, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

// newAllocator builds an allocator from the environment. Logs go to the
// command's error stream and metrics to the returned registry.
func newAllocator(cmd *cobra.Command) (*slob.Allocator, *prometheus.Registry, error) {
	cfg, err := loadCommandConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	config, err := cfg.allocatorConfig(logger, reg)
	if err != nil {
		return nil, nil, err
	}
	a, err := slob.New(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create allocator: %w", err)
	}
	return a, reg, nil
}

// Helper functions for output

// printInfo prints a line to the command output
func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
