package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// appendMessages writes rows directly, emulating a later incremental import
// appending to an existing session.
func appendMessages(t *testing.T, s *Store, sessionID string, msgs []ParsedMessage) {
	t.Helper()
	ctx := context.Background()
	db, err := s.handle(ctx, sessionID)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	ids := map[string]int64{}
	for _, m := range msgs {
		id, ok := ids[m.SenderPlatformID]
		if !ok {
			if err := db.QueryRowContext(ctx,
				`SELECT id FROM member WHERE platform_id = ?`, m.SenderPlatformID,
			).Scan(&id); err != nil {
				t.Fatalf("member lookup failed: %v", err)
			}
			ids[m.SenderPlatformID] = id
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO message (sender_id, ts, type, content) VALUES (?, ?, ?, ?)`,
			id, m.Timestamp, int(m.Type), m.Content,
		); err != nil {
			t.Fatalf("message insert failed: %v", err)
		}
	}
}

func TestExtendChatSessionsMatchesRebuild(t *testing.T) {
	base := ts(2024, time.March, 1, 10, 0, 0)
	initial := []ParsedMessage{
		textMsg("u1", "Alice", base, "a1"),
		textMsg("u2", "Bob", base+100, "a2"),
		textMsg("u1", "Alice", base+5000, "b1"),
	}

	cases := []struct {
		name  string
		extra []ParsedMessage
	}{
		{
			name: "reopens last session",
			extra: []ParsedMessage{
				textMsg("u2", "Bob", base+5000+900, "still b"),
				textMsg("u1", "Alice", base+5000+1200, "still b too"),
			},
		},
		{
			name: "starts new session",
			extra: []ParsedMessage{
				textMsg("u3", "Carol", base+5000+3000, "c1"),
			},
		},
		{
			name: "reopen then split",
			extra: []ParsedMessage{
				textMsg("u2", "Bob", base+5000+1800, "boundary, still b"),
				textMsg("u1", "Alice", base+5000+1800+2000, "c1"),
				textMsg("u3", "Carol", base+5000+1800+2100, "c2"),
			},
		},
		{
			name:  "no new messages",
			extra: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)

			// Incremental path: index the initial stream, append, extend.
			incremental := mustImport(t, s, basicParseResult(initial))
			if _, err := s.RebuildChatSessions(ctx, incremental, 1800); err != nil {
				t.Fatalf("initial rebuild failed: %v", err)
			}
			appendMessages(t, s, incremental, tc.extra)
			extendCount, err := s.ExtendChatSessions(ctx, incremental)
			if err != nil {
				t.Fatalf("ExtendChatSessions failed: %v", err)
			}

			// Reference path: one rebuild over the combined stream.
			combined := mustImport(t, s, basicParseResult(append(append([]ParsedMessage{}, initial...), tc.extra...)))
			rebuildCount, err := s.RebuildChatSessions(ctx, combined, 1800)
			if err != nil {
				t.Fatalf("reference rebuild failed: %v", err)
			}

			if extendCount != rebuildCount {
				t.Fatalf("extend produced %d sessions, rebuild %d", extendCount, rebuildCount)
			}

			got, err := s.ChatSessions(ctx, incremental, 0, 0)
			if err != nil {
				t.Fatalf("ChatSessions failed: %v", err)
			}
			want, err := s.ChatSessions(ctx, combined, 0, 0)
			if err != nil {
				t.Fatalf("ChatSessions failed: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("session count mismatch: %d vs %d", len(got), len(want))
			}
			for i := range got {
				if got[i].StartTs != want[i].StartTs ||
					got[i].EndTs != want[i].EndTs ||
					got[i].MessageCount != want[i].MessageCount {
					t.Errorf("session %d: extend {%d %d %d}, rebuild {%d %d %d}", i,
						got[i].StartTs, got[i].EndTs, got[i].MessageCount,
						want[i].StartTs, want[i].EndTs, want[i].MessageCount)
				}
			}
		})
	}
}

func TestExtendChatSessionsEmptyIndexFallsBackToRebuild(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "a"),
		textMsg("u2", "Bob", base+9000, "b"),
	}))

	count, err := s.ExtendChatSessions(ctx, id)
	if err != nil {
		t.Fatalf("ExtendChatSessions failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 sessions from fallback rebuild, got %d", count)
	}
}

func TestExtendChatSessionsManyAppends(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "start"),
	}))
	if _, err := s.RebuildChatSessions(ctx, id, 1800); err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}

	// Repeated extends over staggered appends must keep matching a rebuild.
	at := base
	for i := 0; i < 5; i++ {
		at += int64(1000 * (i + 1)) // gaps of 1000..5000 seconds
		appendMessages(t, s, id, []ParsedMessage{
			textMsg("u2", "Bob", at, fmt.Sprintf("m%d", i)),
		})
		extendCount, err := s.ExtendChatSessions(ctx, id)
		if err != nil {
			t.Fatalf("extend %d failed: %v", i, err)
		}
		rebuildCount, err := s.RebuildChatSessions(ctx, id, 1800)
		if err != nil {
			t.Fatalf("rebuild %d failed: %v", i, err)
		}
		if extendCount != rebuildCount {
			t.Fatalf("step %d: extend %d, rebuild %d", i, extendCount, rebuildCount)
		}
	}
}
