package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.CloseAll() })
	return s
}

// ts builds a local-time timestamp so bucket assertions hold in any zone.
func ts(year int, month time.Month, day, hour, min, sec int) int64 {
	return time.Date(year, month, day, hour, min, sec, 0, time.Local).Unix()
}

func textMsg(platformID, name string, at int64, content string) ParsedMessage {
	return ParsedMessage{
		SenderPlatformID: platformID,
		SenderName:       name,
		Timestamp:        at,
		Type:             MessageText,
		Content:          content,
	}
}

func basicParseResult(messages []ParsedMessage) *ParseResult {
	return &ParseResult{
		Meta: ParsedMeta{Name: "test chat", Platform: "wechat", Type: "group"},
		Members: []ParsedMember{
			{PlatformID: "u1", Name: "Alice"},
			{PlatformID: "u2", Name: "Bob"},
			{PlatformID: "u3", Name: "Carol"},
		},
		Messages: messages,
	}
}

func mustImport(t *testing.T, s *Store, pr *ParseResult) string {
	t.Helper()
	id, err := s.Import(context.Background(), pr)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return id
}

func memberIDByPlatform(t *testing.T, s *Store, sessionID, platformID string) int64 {
	t.Helper()
	members, err := s.Members(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	for _, m := range members {
		if m.PlatformID == platformID {
			return m.ID
		}
	}
	t.Fatalf("member %s not found", platformID)
	return 0
}
