// Package analyzer implements the pattern analyzer suite: independent,
// stateless scans over the ordered message stream of one analysis session,
// each producing a typed statistical report.
package analyzer

import (
	"context"
	"sort"

	"github.com/chatlens/chatlens/internal/store"
)

// Scope is the shared input of a scan: the ordered, filtered, non-system
// message stream plus participant info.
type Scope struct {
	Messages []store.ScanMessage
	Members  map[int64]store.Member
}

// LoadScope builds the scan input for a session and optional time filter.
// A missing session yields an empty scope, so scans report empty results
// instead of failing.
func LoadScope(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*Scope, error) {
	messages, err := st.ScanMessages(ctx, sessionID, f)
	if err != nil {
		return nil, err
	}
	members, err := st.Members(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]store.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return &Scope{Messages: messages, Members: byID}, nil
}

// member returns participant info for a sender id, tolerating unknown ids.
func (sc *Scope) member(id int64) store.Member {
	if m, ok := sc.Members[id]; ok {
		return m
	}
	return store.Member{ID: id, Name: "unknown"}
}

// LeaderboardItem is one absolute-count leaderboard row; Percentage is the
// member's share of the report total.
type LeaderboardItem struct {
	MemberID   int64   `json:"memberId"`
	PlatformID string  `json:"platformId"`
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RateItem is one rate leaderboard row; Rate is the member's count divided by
// their own message total in scope, as a 0-100 percentage.
type RateItem struct {
	MemberID      int64   `json:"memberId"`
	PlatformID    string  `json:"platformId"`
	Name          string  `json:"name"`
	Count         int     `json:"count"`
	TotalMessages int     `json:"totalMessages"`
	Rate          float64 `json:"rate"`
}

// leaderboard builds count rows sorted by count descending, ties broken by
// ascending member id.
func (sc *Scope) leaderboard(counts map[int64]int, total int) []LeaderboardItem {
	items := make([]LeaderboardItem, 0, len(counts))
	for memberID, count := range counts {
		m := sc.member(memberID)
		items = append(items, LeaderboardItem{
			MemberID:   memberID,
			PlatformID: m.PlatformID,
			Name:       m.Name,
			Count:      count,
			Percentage: store.Percentage(count, total),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].MemberID < items[j].MemberID
	})
	return items
}

// rateBoard builds rate rows sorted by rate descending, ties broken by
// ascending member id. Members with no messages in scope are skipped.
func (sc *Scope) rateBoard(counts, totals map[int64]int) []RateItem {
	items := make([]RateItem, 0, len(counts))
	for memberID, count := range counts {
		total := totals[memberID]
		if total == 0 {
			continue
		}
		m := sc.member(memberID)
		items = append(items, RateItem{
			MemberID:      memberID,
			PlatformID:    m.PlatformID,
			Name:          m.Name,
			Count:         count,
			TotalMessages: total,
			Rate:          store.Percentage(count, total),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Rate != items[j].Rate {
			return items[i].Rate > items[j].Rate
		}
		return items[i].MemberID < items[j].MemberID
	})
	return items
}
