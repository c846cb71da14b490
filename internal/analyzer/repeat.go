package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/chatlens/chatlens/internal/store"
)

// minChainParticipants is the smallest number of distinct senders that makes
// a run a repeat chain. Two people trading the same line back and forth is
// not a chain.
const minChainParticipants = 3

// ChainLengthBucket is one bar of the chain-length histogram.
type ChainLengthBucket struct {
	Length int `json:"length"`
	Count  int `json:"count"`
}

// HotContent is one entry of the top repeated contents, ranked by the longest
// chain a content ever achieved.
type HotContent struct {
	Content        string `json:"content"`
	Count          int    `json:"count"`
	MaxChainLength int    `json:"maxChainLength"`
	OriginatorName string `json:"originatorName"`
}

// RepeatReport is the repeat-chain analysis result.
type RepeatReport struct {
	Originators     []LeaderboardItem   `json:"originators"`
	Initiators      []LeaderboardItem   `json:"initiators"`
	Breakers        []LeaderboardItem   `json:"breakers"`
	OriginatorRates []RateItem          `json:"originatorRates"`
	InitiatorRates  []RateItem          `json:"initiatorRates"`
	BreakerRates    []RateItem          `json:"breakerRates"`
	ChainLengths    []ChainLengthBucket `json:"chainLengthDistribution"`
	HotContents     []HotContent        `json:"hotContents"`
	AvgChainLength  float64             `json:"avgChainLength"`
	TotalChains     int                 `json:"totalRepeatChains"`
}

type chainEntry struct {
	senderID int64
	content  string
}

type contentStat struct {
	count          int
	maxChainLength int
	originatorID   int64
}

// Repeat scans for repeat chains: runs of identical trimmed text content from
// distinct consecutive senders. A sender repeating their own line does not
// extend a chain; a differing message closes the chain and its sender is the
// breaker. Content reappearing after a break starts an unrelated chain.
func Repeat(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*RepeatReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}

	originators := make(map[int64]int)
	initiators := make(map[int64]int)
	breakers := make(map[int64]int)
	memberTotals := make(map[int64]int)
	chainLengths := make(map[int]int)
	contents := make(map[string]*contentStat)

	totalChains := 0
	totalLength := 0

	closeChain := func(chain []chainEntry, breakerID int64, hasBreaker bool) {
		participants := make(map[int64]struct{}, len(chain))
		for _, e := range chain {
			participants[e.senderID] = struct{}{}
		}
		if len(participants) < minChainParticipants {
			return
		}
		totalChains++
		totalLength += len(chain)

		originators[chain[0].senderID]++
		initiators[chain[1].senderID]++
		if hasBreaker {
			breakers[breakerID]++
		}
		chainLengths[len(chain)]++

		content := chain[0].content
		stat, ok := contents[content]
		if !ok {
			contents[content] = &contentStat{count: 1, maxChainLength: len(chain), originatorID: chain[0].senderID}
			return
		}
		stat.count++
		if len(chain) > stat.maxChainLength {
			stat.maxChainLength = len(chain)
			stat.originatorID = chain[0].senderID
		}
	}

	var currentContent string
	var chain []chainEntry
	for _, msg := range scope.Messages {
		if msg.Type != store.MessageText {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		memberTotals[msg.SenderID]++

		if len(chain) > 0 && content == currentContent {
			if chain[len(chain)-1].senderID != msg.SenderID {
				chain = append(chain, chainEntry{senderID: msg.SenderID, content: content})
			}
			// Same sender repeating themselves never extends the chain.
			continue
		}

		closeChain(chain, msg.SenderID, true)
		currentContent = content
		chain = []chainEntry{{senderID: msg.SenderID, content: content}}
	}
	// A chain still open at stream end has no breaker.
	closeChain(chain, 0, false)

	report := &RepeatReport{
		Originators:     scope.leaderboard(originators, totalChains),
		Initiators:      scope.leaderboard(initiators, totalChains),
		Breakers:        scope.leaderboard(breakers, totalChains),
		OriginatorRates: scope.rateBoard(originators, memberTotals),
		InitiatorRates:  scope.rateBoard(initiators, memberTotals),
		BreakerRates:    scope.rateBoard(breakers, memberTotals),
		TotalChains:     totalChains,
	}

	for length, count := range chainLengths {
		report.ChainLengths = append(report.ChainLengths, ChainLengthBucket{Length: length, Count: count})
	}
	sort.Slice(report.ChainLengths, func(i, j int) bool {
		return report.ChainLengths[i].Length < report.ChainLengths[j].Length
	})

	for content, stat := range contents {
		report.HotContents = append(report.HotContents, HotContent{
			Content:        content,
			Count:          stat.count,
			MaxChainLength: stat.maxChainLength,
			OriginatorName: scope.member(stat.originatorID).Name,
		})
	}
	sort.Slice(report.HotContents, func(i, j int) bool {
		if report.HotContents[i].MaxChainLength != report.HotContents[j].MaxChainLength {
			return report.HotContents[i].MaxChainLength > report.HotContents[j].MaxChainLength
		}
		return report.HotContents[i].Content < report.HotContents[j].Content
	})
	if len(report.HotContents) > 10 {
		report.HotContents = report.HotContents[:10]
	}

	if totalChains > 0 {
		report.AvgChainLength = store.Round2(float64(totalLength) / float64(totalChains))
	}
	return report, nil
}
