package analyzer

import (
	"context"
	"time"

	"github.com/chatlens/chatlens/internal/store"
)

// DragonKingReport ranks members by days won: a day is won by the member who
// sent the most messages that day, ties going to the lower member id.
type DragonKingReport struct {
	Leaderboard []LeaderboardItem `json:"leaderboard"` // crowns per member
	Rates       []RateItem        `json:"rates"`       // crowns over the member's active days
	ActiveDays  int               `json:"activeDays"`
}

// DragonKing finds the daily top speakers.
func DragonKing(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*DragonKingReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}

	dayCounts := make(map[string]map[int64]int)
	memberDays := make(map[int64]map[string]bool)
	for _, msg := range scope.Messages {
		day := time.Unix(msg.Ts, 0).Format("2006-01-02")
		if dayCounts[day] == nil {
			dayCounts[day] = make(map[int64]int)
		}
		dayCounts[day][msg.SenderID]++
		if memberDays[msg.SenderID] == nil {
			memberDays[msg.SenderID] = make(map[string]bool)
		}
		memberDays[msg.SenderID][day] = true
	}

	crowns := make(map[int64]int)
	for _, counts := range dayCounts {
		var winner int64
		best := -1
		for memberID, count := range counts {
			if count > best || (count == best && memberID < winner) {
				best = count
				winner = memberID
			}
		}
		crowns[winner]++
	}

	activeDays := make(map[int64]int)
	for memberID, days := range memberDays {
		activeDays[memberID] = len(days)
	}

	return &DragonKingReport{
		Leaderboard: scope.leaderboard(crowns, len(dayCounts)),
		Rates:       scope.rateBoard(crowns, activeDays),
		ActiveDays:  len(dayCounts),
	}, nil
}
