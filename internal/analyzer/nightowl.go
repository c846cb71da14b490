package analyzer

import (
	"context"
	"sort"
	"time"

	"github.com/chatlens/chatlens/internal/store"
)

// The night window is 00:00-05:59 local time.
const (
	nightStartHour = 0
	nightEndHour   = 5
)

// NightOwlReport ranks members by late-night activity.
type NightOwlReport struct {
	Leaderboard []LeaderboardItem      `json:"leaderboard"` // night message counts
	Rates       []RateItem             `json:"rates"`       // night share of each member's own messages
	HourCounts  []store.HourlyActivity `json:"hourCounts"`  // buckets for the night window only
	LastLights  []LeaderboardItem      `json:"lastLights"`  // days a member sent the final night message
	TotalNight  int                    `json:"totalNightMessages"`
}

// NightOwl counts messages in the night window per member.
func NightOwl(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*NightOwlReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	totals := make(map[int64]int)
	hourCounts := make(map[int]int)
	lastNightSender := make(map[string]int64) // day -> sender of that day's final night message
	totalNight := 0

	for _, msg := range scope.Messages {
		totals[msg.SenderID]++

		t := time.Unix(msg.Ts, 0)
		hour := t.Hour()
		if hour < nightStartHour || hour > nightEndHour {
			continue
		}
		counts[msg.SenderID]++
		hourCounts[hour]++
		totalNight++
		// Stream order makes the last write win.
		lastNightSender[t.Format("2006-01-02")] = msg.SenderID
	}

	lastLights := make(map[int64]int)
	for _, senderID := range lastNightSender {
		lastLights[senderID]++
	}

	report := &NightOwlReport{
		Leaderboard: scope.leaderboard(counts, totalNight),
		Rates:       scope.rateBoard(counts, totals),
		LastLights:  scope.leaderboard(lastLights, len(lastNightSender)),
		TotalNight:  totalNight,
	}
	for h := nightStartHour; h <= nightEndHour; h++ {
		report.HourCounts = append(report.HourCounts, store.HourlyActivity{Hour: h, MessageCount: hourCounts[h]})
	}
	sort.Slice(report.HourCounts, func(i, j int) bool {
		return report.HourCounts[i].Hour < report.HourCounts[j].Hour
	})
	return report, nil
}
