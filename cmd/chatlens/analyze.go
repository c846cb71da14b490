package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/host"
	"github.com/chatlens/chatlens/internal/store"
)

var (
	analyzeStartTs int64
	analyzeEndTs   int64
)

// analyzeKinds maps the CLI analyzer names to command constructors. The
// returned commands carry only the session scope and filter; analyzer
// parameters keep their defaults on this path.
var analyzeKinds = map[string]func() host.Command{
	"members":   func() host.Command { return &host.MemberActivityCommand{} },
	"hourly":    func() host.Command { return &host.HourlyActivityCommand{} },
	"daily":     func() host.Command { return &host.DailyActivityCommand{} },
	"weekday":   func() host.Command { return &host.WeekdayActivityCommand{} },
	"monthly":   func() host.Command { return &host.MonthlyActivityCommand{} },
	"types":     func() host.Command { return &host.MessageTypesCommand{} },
	"repeat":    func() host.Command { return &host.RepeatCommand{} },
	"phrases":   func() host.Command { return &host.CatchphraseCommand{} },
	"nightowl":  func() host.Command { return &host.NightOwlCommand{} },
	"dragon":    func() host.Command { return &host.DragonKingCommand{} },
	"diving":    func() host.Command { return &host.DivingCommand{} },
	"monologue": func() host.Command { return &host.MonologueCommand{} },
	"mentions":  func() host.Command { return &host.MentionCommand{} },
	"laugh":     func() host.Command { return &host.LaughCommand{} },
	"memes":     func() host.Command { return &host.MemeBattleCommand{} },
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <kind> <session-id>",
	Short: "Run an analyzer over a session",
	Long: `Analyze runs one statistic or pattern analyzer over a session's
messages and prints the report as JSON.

Available kinds: ` + analyzeKindList(),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		build, ok := analyzeKinds[args[0]]
		if !ok {
			return fmt.Errorf("unknown analyzer %q (available: %s)", args[0], analyzeKindList())
		}

		c := build()
		if err := scopeCommand(c, args[1], timeFilterFromFlags()); err != nil {
			return err
		}

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
		return printJSON(result)
	},
}

func analyzeKindList() string {
	kinds := make([]string, 0, len(analyzeKinds))
	for k := range analyzeKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ", ")
}

func timeFilterFromFlags() *store.TimeFilter {
	if analyzeStartTs <= 0 && analyzeEndTs <= 0 {
		return nil
	}
	f := &store.TimeFilter{}
	if analyzeStartTs > 0 {
		f.StartTs = &analyzeStartTs
	}
	if analyzeEndTs > 0 {
		f.EndTs = &analyzeEndTs
	}
	return f
}

// scopeCommand fills the session id and optional filter on any analyzer
// command via the promoted protocol setters.
func scopeCommand(c host.Command, sessionID string, f *store.TimeFilter) error {
	s, ok := c.(interface{ SetSession(string) })
	if !ok {
		return fmt.Errorf("command %T is not session scoped", c)
	}
	s.SetSession(sessionID)
	if fs, ok := c.(interface{ SetFilter(*store.TimeFilter) }); ok {
		fs.SetFilter(f)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().Int64Var(&analyzeStartTs, "start", 0, "Only messages at or after this unix timestamp")
	analyzeCmd.Flags().Int64Var(&analyzeEndTs, "end", 0, "Only messages at or before this unix timestamp")
	rootCmd.AddCommand(analyzeCmd)
}
