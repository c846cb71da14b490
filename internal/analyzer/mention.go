package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/chatlens/chatlens/internal/store"
)

// MentionPair is one directed mentioner -> mentioned edge.
type MentionPair struct {
	FromMemberID int64  `json:"fromMemberId"`
	FromName     string `json:"fromName"`
	ToMemberID   int64  `json:"toMemberId"`
	ToName       string `json:"toName"`
	Count        int    `json:"count"`
}

// MentionReport is the mention-graph analysis result.
type MentionReport struct {
	TopMentioners []LeaderboardItem `json:"topMentioners"`
	TopMentioned  []LeaderboardItem `json:"topMentioned"`
	TopPairs      []MentionPair     `json:"topPairs"`
	TotalMentions int               `json:"totalMentions"`
}

// Mention scans text messages for @name references, matching both current and
// historical member names. Longer names are tried first so "@Ann Lee" is not
// claimed by a member named "Ann".
func Mention(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*MentionReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}
	history, err := st.HistoricalNames(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	type namedMember struct {
		name     string
		memberID int64
	}
	var names []namedMember
	seen := make(map[string]bool)
	addName := func(name string, memberID int64) {
		name = strings.TrimSpace(name)
		if name == "" || name == store.SystemSenderName || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, namedMember{name: name, memberID: memberID})
	}
	for id, m := range scope.Members {
		addName(m.Name, id)
	}
	for id, hist := range history {
		if _, ok := scope.Members[id]; !ok {
			continue
		}
		for _, name := range hist {
			addName(name, id)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i].name) != len(names[j].name) {
			return len(names[i].name) > len(names[j].name)
		}
		return names[i].memberID < names[j].memberID
	})

	mentioners := make(map[int64]int)
	mentioned := make(map[int64]int)
	pairs := make(map[[2]int64]int)
	total := 0

	for _, msg := range scope.Messages {
		if msg.Type != store.MessageText || !strings.Contains(msg.Content, "@") {
			continue
		}
		rest := msg.Content
		for {
			at := strings.Index(rest, "@")
			if at < 0 {
				break
			}
			rest = rest[at+1:]
			for _, nm := range names {
				if strings.HasPrefix(rest, nm.name) {
					mentioners[msg.SenderID]++
					mentioned[nm.memberID]++
					pairs[[2]int64{msg.SenderID, nm.memberID}]++
					total++
					rest = rest[len(nm.name):]
					break
				}
			}
		}
	}

	report := &MentionReport{
		TopMentioners: scope.leaderboard(mentioners, total),
		TopMentioned:  scope.leaderboard(mentioned, total),
		TotalMentions: total,
	}
	for pair, count := range pairs {
		report.TopPairs = append(report.TopPairs, MentionPair{
			FromMemberID: pair[0],
			FromName:     scope.member(pair[0]).Name,
			ToMemberID:   pair[1],
			ToName:       scope.member(pair[1]).Name,
			Count:        count,
		})
	}
	sort.Slice(report.TopPairs, func(i, j int) bool {
		pi, pj := report.TopPairs[i], report.TopPairs[j]
		if pi.Count != pj.Count {
			return pi.Count > pj.Count
		}
		if pi.FromMemberID != pj.FromMemberID {
			return pi.FromMemberID < pj.FromMemberID
		}
		return pi.ToMemberID < pj.ToMemberID
	})
	if len(report.TopPairs) > 10 {
		report.TopPairs = report.TopPairs[:10]
	}
	return report, nil
}
