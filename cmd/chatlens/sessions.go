package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/host"
	"github.com/chatlens/chatlens/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage imported analysis sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		result, err := h.Call(cmd.Context(), &host.ListSessionsCommand{})
		if err != nil {
			return err
		}
		sessions, _ := result.([]store.SessionInfo)
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPLATFORM\tMESSAGES\tSIZE\tIMPORTED")
		for _, s := range sessions {
			imported := time.Unix(s.ImportedAt, 0).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				s.ID, s.Name, s.Platform, s.MessageCount, s.Size, imported)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		c := &host.GetSessionCommand{}
		c.SessionID = args[0]
		result, err := h.Call(cmd.Context(), c)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session's store file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := newHost(cfg)
		defer h.Close()

		c := &host.DeleteSessionCommand{}
		c.SessionID = args[0]
		if _, err := h.Call(cmd.Context(), c); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
