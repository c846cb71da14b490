package analyzer

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	tokenizerunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"

	"github.com/chatlens/chatlens/internal/store"
)

// Tokenizer splits message text into candidate phrase tokens. Tokenization is
// an external concern; the scan only consumes the token stream.
type Tokenizer interface {
	Tokens(text string) []string
}

// BleveTokenizer tokenizes with bleve's unicode segmenter, lowercased.
type BleveTokenizer struct{}

// Tokens implements Tokenizer.
func (BleveTokenizer) Tokens(text string) []string {
	stream := tokenizerunicode.NewUnicodeTokenizer().Tokenize([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		tokens = append(tokens, strings.ToLower(string(tok.Term)))
	}
	return tokens
}

// catchphraseStopwords are tokens too generic to count as a catchphrase.
var catchphraseStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"you": true, "are": true, "not": true, "but": true, "with": true,
	"的": true, "了": true, "是": true, "我": true, "你": true,
	"吗": true, "吧": true, "啊": true, "就": true, "都": true,
}

// CatchphraseOptions tune the catchphrase scan.
type CatchphraseOptions struct {
	MinCount int `json:"minCount,omitempty"` // minimum occurrences to qualify (default 5)
	TopN     int `json:"topN,omitempty"`     // phrases kept per member (default 10)
}

// PhraseCount is one phrase with its occurrence count.
type PhraseCount struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// MemberCatchphrases groups one member's top phrases.
type MemberCatchphrases struct {
	MemberID   int64         `json:"memberId"`
	PlatformID string        `json:"platformId"`
	Name       string        `json:"name"`
	Phrases    []PhraseCount `json:"phrases"`
}

// CatchphraseReport is the catchphrase analysis result.
type CatchphraseReport struct {
	Members     []MemberCatchphrases `json:"members"`
	Leaderboard []LeaderboardItem    `json:"leaderboard"` // ranked by top-phrase count
}

// Catchphrase finds each member's most-repeated phrases in text messages.
func Catchphrase(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter, tok Tokenizer, opts CatchphraseOptions) (*CatchphraseReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		tok = BleveTokenizer{}
	}
	if opts.MinCount <= 0 {
		opts.MinCount = 5
	}
	if opts.TopN <= 0 {
		opts.TopN = 10
	}

	phraseCounts := make(map[int64]map[string]int)
	for _, msg := range scope.Messages {
		if msg.Type != store.MessageText || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		for _, token := range tok.Tokens(msg.Content) {
			if !keepToken(token) {
				continue
			}
			if phraseCounts[msg.SenderID] == nil {
				phraseCounts[msg.SenderID] = make(map[string]int)
			}
			phraseCounts[msg.SenderID][token]++
		}
	}

	report := &CatchphraseReport{}
	topCounts := make(map[int64]int)
	for memberID, counts := range phraseCounts {
		var phrases []PhraseCount
		for phrase, count := range counts {
			if count >= opts.MinCount {
				phrases = append(phrases, PhraseCount{Phrase: phrase, Count: count})
			}
		}
		if len(phrases) == 0 {
			continue
		}
		sort.Slice(phrases, func(i, j int) bool {
			if phrases[i].Count != phrases[j].Count {
				return phrases[i].Count > phrases[j].Count
			}
			return phrases[i].Phrase < phrases[j].Phrase
		})
		if len(phrases) > opts.TopN {
			phrases = phrases[:opts.TopN]
		}

		m := scope.member(memberID)
		report.Members = append(report.Members, MemberCatchphrases{
			MemberID:   memberID,
			PlatformID: m.PlatformID,
			Name:       m.Name,
			Phrases:    phrases,
		})
		topCounts[memberID] = phrases[0].Count
	}

	sort.Slice(report.Members, func(i, j int) bool {
		ci, cj := topCounts[report.Members[i].MemberID], topCounts[report.Members[j].MemberID]
		if ci != cj {
			return ci > cj
		}
		return report.Members[i].MemberID < report.Members[j].MemberID
	})

	total := 0
	for _, c := range topCounts {
		total += c
	}
	report.Leaderboard = scope.leaderboard(topCounts, total)
	return report, nil
}

// keepToken drops stopwords and short non-ideographic fragments.
func keepToken(token string) bool {
	if token == "" || catchphraseStopwords[token] {
		return false
	}
	if utf8.RuneCountInString(token) >= 2 {
		return true
	}
	r, _ := utf8.DecodeRuneInString(token)
	return unicode.Is(unicode.Han, r) && !catchphraseStopwords[token]
}
