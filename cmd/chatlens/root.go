package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/config"
	"github.com/chatlens/chatlens/internal/host"
)

var (
	dataDirFlag      string
	gapThresholdFlag int64
)

var rootCmd = &cobra.Command{
	Use:   "chatlens",
	Short: "Analyze exported chat logs",
	Long: `ChatLens imports normalized chat log exports into per-session SQLite
stores and runs activity statistics, conversational-session detection, and
behavioral pattern analysis over them.

Quick start:
  chatlens import export.json        # Import a parsed chat log
  chatlens sessions list             # List imported sessions
  chatlens analyze repeat <id>       # Run the repeat-chain analyzer
  chatlens serve --stdio             # Speak the line-JSON protocol`,
	SilenceUsage: true,
}

// Execute runs the root command tree.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding the session store files")
	rootCmd.PersistentFlags().Int64Var(&gapThresholdFlag, "gap-threshold", 0, "Default session gap threshold in seconds")
}

// loadConfig resolves the effective configuration: file, then environment,
// then command-line flags.
func loadConfig() (*config.Config, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	cfg, err := manager.Load()
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if gapThresholdFlag > 0 {
		cfg.GapThreshold = gapThresholdFlag
	}
	return cfg, nil
}

// newHost builds the execution host all commands talk through.
func newHost(cfg *config.Config) *host.Host {
	return host.New(host.Options{
		DataDir:       cfg.DataDir,
		GapThreshold:  cfg.GapThreshold,
		LaughKeywords: cfg.LaughKeywords,
	})
}

// printJSON renders a command result for the terminal.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
