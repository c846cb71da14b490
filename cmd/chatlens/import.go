package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/host"
	"github.com/chatlens/chatlens/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a parsed chat log export",
	Long: `Import reads a normalized parse result (JSON) produced by a platform
parser and creates a new analysis session from it. The file is validated
against the import contract before anything touches disk.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read import file: %w", err)
		}

		var pr store.ParseResult
		if err := json.Unmarshal(data, &pr); err != nil {
			return fmt.Errorf("failed to parse import file: %w", err)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		result, err := h.Call(cmd.Context(), &host.ImportCommand{Payload: pr})
		if err != nil {
			return err
		}
		fmt.Printf("Imported session %s\n", result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
