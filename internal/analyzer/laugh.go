package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/chatlens/chatlens/internal/store"
)

// KeywordCount is one laugh keyword with its total occurrences across the
// scanned messages.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// LaughReport ranks members by laughing messages.
type LaughReport struct {
	Leaderboard []LeaderboardItem `json:"leaderboard"` // laughing message counts
	Rates       []RateItem        `json:"rates"`       // laugh share of each member's messages
	Keywords    []KeywordCount    `json:"keywords"`
	TotalLaughs int               `json:"totalLaughs"`
}

// Laugh counts messages containing any of the given keywords (matched
// case-insensitively). An empty keyword list yields an empty report.
func Laugh(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter, keywords []string) (*LaughReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}

	counts := make(map[int64]int)
	totals := make(map[int64]int)
	keywordTotals := make(map[string]int)
	totalLaughs := 0

	for _, msg := range scope.Messages {
		if msg.Type != store.MessageText {
			continue
		}
		totals[msg.SenderID]++

		content := strings.ToLower(msg.Content)
		laughed := false
		for _, kw := range lowered {
			if n := strings.Count(content, kw); n > 0 {
				keywordTotals[kw] += n
				laughed = true
			}
		}
		if laughed {
			counts[msg.SenderID]++
			totalLaughs++
		}
	}

	report := &LaughReport{
		Leaderboard: scope.leaderboard(counts, totalLaughs),
		Rates:       scope.rateBoard(counts, totals),
		TotalLaughs: totalLaughs,
	}
	for kw, count := range keywordTotals {
		report.Keywords = append(report.Keywords, KeywordCount{Keyword: kw, Count: count})
	}
	sort.Slice(report.Keywords, func(i, j int) bool {
		if report.Keywords[i].Count != report.Keywords[j].Count {
			return report.Keywords[i].Count > report.Keywords[j].Count
		}
		return report.Keywords[i].Keyword < report.Keywords[j].Keyword
	})
	return report, nil
}
