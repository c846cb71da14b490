package analyzer

import (
	"context"

	"github.com/chatlens/chatlens/internal/store"
)

// MonologueOptions tune the monologue scan.
type MonologueOptions struct {
	MinRun int `json:"minRun,omitempty"` // consecutive messages to qualify (default 5)
}

// MonologueReport ranks members by unanswered message runs.
type MonologueReport struct {
	Leaderboard   []LeaderboardItem `json:"leaderboard"` // qualifying runs per member
	LongestRuns   []LeaderboardItem `json:"longestRuns"` // longest single run per member
	AvgRunLength  float64           `json:"avgRunLength"`
	TotalMonologs int               `json:"totalMonologues"`
}

// Monologue finds runs of at least MinRun consecutive messages from a single
// sender with no interleaved reply.
func Monologue(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter, opts MonologueOptions) (*MonologueReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}
	if opts.MinRun <= 0 {
		opts.MinRun = 5
	}

	runs := make(map[int64]int)
	longest := make(map[int64]int)
	total := 0
	totalLength := 0

	closeRun := func(senderID int64, length int) {
		if length < opts.MinRun {
			return
		}
		runs[senderID]++
		total++
		totalLength += length
		if length > longest[senderID] {
			longest[senderID] = length
		}
	}

	var runSender int64
	runLength := 0
	for _, msg := range scope.Messages {
		if runLength > 0 && msg.SenderID == runSender {
			runLength++
			continue
		}
		closeRun(runSender, runLength)
		runSender = msg.SenderID
		runLength = 1
	}
	closeRun(runSender, runLength)

	report := &MonologueReport{
		Leaderboard:   scope.leaderboard(runs, total),
		LongestRuns:   scope.leaderboard(longest, 0),
		TotalMonologs: total,
	}
	if total > 0 {
		report.AvgRunLength = store.Round2(float64(totalLength) / float64(total))
	}
	return report, nil
}
