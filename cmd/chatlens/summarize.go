package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/store"
	"github.com/chatlens/chatlens/internal/summarize"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session-id> <chat-session-id>",
	Short: "Generate an LLM summary for one conversational session",
	Long: `Summarize sends a derived session's transcript to the configured LLM
provider and stores the returned summary on the session. Requires provider
credentials in the configuration or environment.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatSessionID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat session id %q", args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client, model, err := summarize.NewClientFromConfig(cfg)
		if err != nil {
			return err
		}

		st, err := store.New(cfg.DataDir, store.Options{GapThreshold: cfg.GapThreshold})
		if err != nil {
			return err
		}
		defer st.CloseAll()

		fmt.Printf("Summarizing with %s...\n", model)
		summary, err := summarize.New(st, client).Summarize(cmd.Context(), args[0], chatSessionID)
		if err != nil {
			return err
		}
		fmt.Println(summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
