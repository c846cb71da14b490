package analyzer

import (
	"context"
	"sort"

	"github.com/chatlens/chatlens/internal/store"
)

// MemeBattleOptions tune the meme-battle scan.
type MemeBattleOptions struct {
	MaxGap  int64 `json:"maxGap,omitempty"`  // max seconds between volleys (default 60)
	MinSize int   `json:"minSize,omitempty"` // images needed for a battle (default 3)
}

// BattleSizeBucket is one bar of the battle-size histogram.
type BattleSizeBucket struct {
	Size  int `json:"size"`
	Count int `json:"count"`
}

// MemeBattleReport is the meme-battle analysis result.
type MemeBattleReport struct {
	Participants []LeaderboardItem  `json:"participants"` // battles a member joined
	Victors      []LeaderboardItem  `json:"victors"`      // battles closed by the member's image
	BattleSizes  []BattleSizeBucket `json:"battleSizes"`
	TotalBattles int                `json:"totalBattles"`
}

// MemeBattle finds bursts of image and sticker messages: at least MinSize
// volleys from at least two distinct senders, each within MaxGap seconds of
// the previous one. The sender of the final volley is the victor.
func MemeBattle(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter, opts MemeBattleOptions) (*MemeBattleReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}
	if opts.MaxGap <= 0 {
		opts.MaxGap = 60
	}
	if opts.MinSize <= 0 {
		opts.MinSize = 3
	}

	participants := make(map[int64]int)
	victors := make(map[int64]int)
	sizes := make(map[int]int)
	totalBattles := 0

	var burst []store.ScanMessage
	closeBurst := func() {
		defer func() { burst = nil }()
		if len(burst) < opts.MinSize {
			return
		}
		distinct := make(map[int64]bool)
		for _, m := range burst {
			distinct[m.SenderID] = true
		}
		if len(distinct) < 2 {
			return
		}

		totalBattles++
		sizes[len(burst)]++
		for senderID := range distinct {
			participants[senderID]++
		}
		victors[burst[len(burst)-1].SenderID]++
	}

	for _, msg := range scope.Messages {
		if msg.Type != store.MessageImage && msg.Type != store.MessageSticker {
			closeBurst()
			continue
		}
		if len(burst) > 0 && msg.Ts-burst[len(burst)-1].Ts > opts.MaxGap {
			closeBurst()
		}
		burst = append(burst, msg)
	}
	closeBurst()

	report := &MemeBattleReport{
		Participants: scope.leaderboard(participants, totalBattles),
		Victors:      scope.leaderboard(victors, totalBattles),
		TotalBattles: totalBattles,
	}
	for size, count := range sizes {
		report.BattleSizes = append(report.BattleSizes, BattleSizeBucket{Size: size, Count: count})
	}
	sort.Slice(report.BattleSizes, func(i, j int) bool {
		return report.BattleSizes[i].Size < report.BattleSizes[j].Size
	})
	return report, nil
}
