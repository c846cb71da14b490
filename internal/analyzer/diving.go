package analyzer

import (
	"context"
	"sort"

	"github.com/chatlens/chatlens/internal/store"
)

// DiveRecord is one member's longest silence.
type DiveRecord struct {
	MemberID       int64  `json:"memberId"`
	PlatformID     string `json:"platformId"`
	Name           string `json:"name"`
	LongestGap     int64  `json:"longestGap"`     // seconds between their consecutive messages
	GapStartTs     int64  `json:"gapStartTs"`     // last message before the dive
	GapEndTs       int64  `json:"gapEndTs"`       // the surfacing message, 0 while still under
	CurrentSilence int64  `json:"currentSilence"` // seconds from their last message to stream end
}

// DivingReport ranks members by their longest stretch of silence.
type DivingReport struct {
	Records []DiveRecord `json:"records"`
}

// Diving measures per-member silences between consecutive messages, plus the
// open-ended silence up to the end of the stream.
func Diving(ctx context.Context, st *store.Store, sessionID string, f *store.TimeFilter) (*DivingReport, error) {
	scope, err := LoadScope(ctx, st, sessionID, f)
	if err != nil {
		return nil, err
	}
	if len(scope.Messages) == 0 {
		return &DivingReport{}, nil
	}
	streamEnd := scope.Messages[len(scope.Messages)-1].Ts

	records := make(map[int64]*DiveRecord)
	lastTs := make(map[int64]int64)
	for _, msg := range scope.Messages {
		rec, ok := records[msg.SenderID]
		if !ok {
			m := scope.member(msg.SenderID)
			rec = &DiveRecord{MemberID: msg.SenderID, PlatformID: m.PlatformID, Name: m.Name}
			records[msg.SenderID] = rec
			lastTs[msg.SenderID] = msg.Ts
			continue
		}
		if gap := msg.Ts - lastTs[msg.SenderID]; gap > rec.LongestGap {
			rec.LongestGap = gap
			rec.GapStartTs = lastTs[msg.SenderID]
			rec.GapEndTs = msg.Ts
		}
		lastTs[msg.SenderID] = msg.Ts
	}

	report := &DivingReport{Records: make([]DiveRecord, 0, len(records))}
	for memberID, rec := range records {
		rec.CurrentSilence = streamEnd - lastTs[memberID]
		report.Records = append(report.Records, *rec)
	}
	sort.Slice(report.Records, func(i, j int) bool {
		if report.Records[i].LongestGap != report.Records[j].LongestGap {
			return report.Records[i].LongestGap > report.Records[j].LongestGap
		}
		return report.Records[i].MemberID < report.Records[j].MemberID
	})
	return report, nil
}
