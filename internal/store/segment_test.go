package store

import (
	"context"
	"testing"
	"time"
)

func TestRebuildChatSessionsGapRule(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	// Three bursts separated by gaps larger than the threshold.
	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a1"),
		textMsg("u2", "Bob", base+60, "a2"),
		textMsg("u1", "Alice", base+120, "a3"),
		textMsg("u2", "Bob", base+5000, "b1"),
		textMsg("u1", "Alice", base+5100, "b2"),
		textMsg("u3", "Carol", base+20000, "c1"),
	}))

	count, err := s.RebuildChatSessions(context.Background(), id, 1800)
	if err != nil {
		t.Fatalf("RebuildChatSessions failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 sessions, got %d", count)
	}

	sessions, err := s.ChatSessions(context.Background(), id, 0, 0)
	if err != nil {
		t.Fatalf("ChatSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}

	want := []struct {
		start, end int64
		count      int
	}{
		{base, base + 120, 3},
		{base + 5000, base + 5100, 2},
		{base + 20000, base + 20000, 1},
	}
	for i, w := range want {
		got := sessions[i]
		if got.StartTs != w.start || got.EndTs != w.end || got.MessageCount != w.count {
			t.Errorf("session %d = {%d %d %d}, want {%d %d %d}",
				i, got.StartTs, got.EndTs, got.MessageCount, w.start, w.end, w.count)
		}
	}
}

func TestRebuildChatSessionsGapBoundary(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	// A gap exactly equal to the threshold stays in one session; one second
	// more splits it.
	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a"),
		textMsg("u1", "Alice", base+1800, "still same"),
		textMsg("u1", "Alice", base+1800+1801, "new session"),
	}))

	count, err := s.RebuildChatSessions(context.Background(), id, 1800)
	if err != nil {
		t.Fatalf("RebuildChatSessions failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 sessions, got %d", count)
	}
}

func TestRebuildChatSessionsIdempotent(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a"),
		textMsg("u2", "Bob", base+100, "b"),
		textMsg("u1", "Alice", base+9000, "c"),
	}))

	first, err := s.RebuildChatSessions(context.Background(), id, 1800)
	if err != nil {
		t.Fatalf("first rebuild failed: %v", err)
	}
	second, err := s.RebuildChatSessions(context.Background(), id, 1800)
	if err != nil {
		t.Fatalf("second rebuild failed: %v", err)
	}
	if first != second {
		t.Errorf("rebuild not deterministic: %d then %d", first, second)
	}

	sessions, err := s.ChatSessions(context.Background(), id, 0, 0)
	if err != nil {
		t.Fatalf("ChatSessions failed: %v", err)
	}
	if len(sessions) != second {
		t.Errorf("index holds %d sessions, rebuild reported %d", len(sessions), second)
	}
}

func TestUpdateGapThresholdRebuilds(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a"),
		textMsg("u2", "Bob", base+600, "b"),
		textMsg("u1", "Alice", base+1200, "c"),
	}))

	count, err := s.UpdateGapThreshold(context.Background(), id, 300)
	if err != nil {
		t.Fatalf("UpdateGapThreshold failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 sessions at threshold 300, got %d", count)
	}

	threshold, err := s.GapThreshold(context.Background(), id)
	if err != nil {
		t.Fatalf("GapThreshold failed: %v", err)
	}
	if threshold != 300 {
		t.Errorf("threshold not persisted: %d", threshold)
	}

	if _, err := s.UpdateGapThreshold(context.Background(), id, 0); err == nil {
		t.Error("expected error for non-positive threshold")
	}
}

func TestChatSessionSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a"),
	}))
	if _, err := s.RebuildChatSessions(context.Background(), id, 1800); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	sessions, err := s.ChatSessions(context.Background(), id, 0, 0)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ChatSessions = %v, %v", sessions, err)
	}

	csID := sessions[0].ID
	if got, err := s.ChatSessionSummary(context.Background(), id, csID); err != nil || got != "" {
		t.Fatalf("fresh summary = %q, %v", got, err)
	}
	if err := s.SaveChatSessionSummary(context.Background(), id, csID, "a short chat"); err != nil {
		t.Fatalf("SaveChatSessionSummary failed: %v", err)
	}
	if got, err := s.ChatSessionSummary(context.Background(), id, csID); err != nil || got != "a short chat" {
		t.Fatalf("summary = %q, %v", got, err)
	}
	if got, err := s.ChatSessionSummary(context.Background(), id, 9999); err != nil || got != "" {
		t.Fatalf("missing summary = %q, %v", got, err)
	}
}
