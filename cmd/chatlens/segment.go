package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/host"
)

var (
	segmentThreshold int64
	segmentLimit     int
	segmentOffset    int
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Manage the conversational-session index",
	Long: `Segment splits a session's message stream into conversational sessions:
runs of messages where no two neighbors are further apart than the gap
threshold. The index is derived data and can be rebuilt at any time.`,
}

var segmentRebuildCmd = &cobra.Command{
	Use:   "rebuild <session-id>",
	Short: "Rebuild the session index from scratch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return segmentCall(cmd, func(c *host.RebuildIndexCommand) {
			c.SessionID = args[0]
			c.Threshold = segmentThreshold
		})
	},
}

var segmentExtendCmd = &cobra.Command{
	Use:   "extend <session-id>",
	Short: "Extend the index over newly imported messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &host.ExtendIndexCommand{}
		c.SessionID = args[0]
		return segmentRun(cmd, c)
	},
}

var segmentThresholdCmd = &cobra.Command{
	Use:   "threshold <session-id> <seconds>",
	Short: "Change the gap threshold and rebuild",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var seconds int64
		if _, err := fmt.Sscanf(args[1], "%d", &seconds); err != nil {
			return fmt.Errorf("invalid threshold %q", args[1])
		}
		c := &host.UpdateThresholdCommand{}
		c.SessionID = args[0]
		c.Threshold = seconds
		return segmentRun(cmd, c)
	},
}

var segmentListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the derived sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		c := &host.ChatSessionsCommand{}
		c.SessionID = args[0]
		c.Limit = segmentLimit
		c.Offset = segmentOffset
		result, err := h.Call(cmd.Context(), c)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var segmentClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Drop the session index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		c := &host.ClearIndexCommand{}
		c.SessionID = args[0]
		if _, err := h.Call(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Println("Session index cleared.")
		return nil
	},
}

func segmentCall(cmd *cobra.Command, fill func(*host.RebuildIndexCommand)) error {
	c := &host.RebuildIndexCommand{}
	fill(c)
	return segmentRun(cmd, c)
}

func segmentRun(cmd *cobra.Command, c host.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h := newHost(cfg)
	defer h.Close()

	result, err := h.Call(cmd.Context(), c)
	if err != nil {
		return err
	}
	fmt.Printf("Session index now holds %v session(s)\n", result)
	return nil
}

func init() {
	segmentRebuildCmd.Flags().Int64Var(&segmentThreshold, "threshold", 0, "Gap threshold in seconds (0 uses the stored one)")
	segmentListCmd.Flags().IntVar(&segmentLimit, "limit", 0, "Maximum sessions to return (0 for all)")
	segmentListCmd.Flags().IntVar(&segmentOffset, "offset", 0, "Sessions to skip")
	segmentCmd.AddCommand(segmentRebuildCmd, segmentExtendCmd, segmentThresholdCmd, segmentListCmd, segmentClearCmd)
	rootCmd.AddCommand(segmentCmd)
}
