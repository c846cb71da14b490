package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ChatSession is one derived conversational run inside a session's message
// stream. It is fully reconstructible from the message table and the gap
// threshold.
type ChatSession struct {
	ID             int64  `json:"id"`
	StartTs        int64  `json:"startTs"`
	EndTs          int64  `json:"endTs"`
	MessageCount   int    `json:"messageCount"`
	FirstMessageID int64  `json:"firstMessageId"`
	Summary        string `json:"summary,omitempty"`
}

type streamMsg struct {
	id int64
	ts int64
}

// GapThreshold returns the session-level gap threshold (seconds).
func (s *Store) GapThreshold(ctx context.Context, sessionID string) (int64, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return 0, err
	}

	var threshold int64
	if err := db.QueryRowContext(ctx, `SELECT gap_threshold FROM meta LIMIT 1`).Scan(&threshold); err != nil {
		return 0, fmt.Errorf("gap threshold query failed: %w", err)
	}
	return threshold, nil
}

// RebuildChatSessions clears and regenerates the full session index using the
// given threshold (seconds); a non-positive threshold means the stored one.
// Returns the number of sessions produced. Deterministic for a given message
// set and threshold.
func (s *Store) RebuildChatSessions(ctx context.Context, sessionID string, threshold int64) (int, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return 0, err
	}

	if threshold <= 0 {
		if threshold, err = s.GapThreshold(ctx, sessionID); err != nil {
			return 0, err
		}
	}

	stream, err := s.eligibleStream(ctx, db, 0)
	if err != nil {
		return 0, err
	}

	sessions := segmentStream(stream, threshold)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_session`); err != nil {
		return 0, fmt.Errorf("failed to clear session index: %w", err)
	}
	for _, cs := range sessions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_session (start_ts, end_ts, message_count, first_message_id)
			VALUES (?, ?, ?, ?)`,
			cs.StartTs, cs.EndTs, cs.MessageCount, cs.FirstMessageID,
		); err != nil {
			return 0, fmt.Errorf("failed to insert chat session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session index: %w", err)
	}
	return len(sessions), nil
}

// ExtendChatSessions processes only messages appended since the index was
// last built: the last indexed session is reopened when the first new message
// falls within the gap threshold, otherwise a fresh session starts. The
// result matches a full rebuild over the combined message set.
func (s *Store) ExtendChatSessions(ctx context.Context, sessionID string) (int, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return 0, err
	}

	var indexed int
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(message_count), 0) FROM chat_session`,
	).Scan(&count, &indexed); err != nil {
		return 0, fmt.Errorf("index stats query failed: %w", err)
	}
	if count == 0 {
		return s.RebuildChatSessions(ctx, sessionID, 0)
	}

	threshold, err := s.GapThreshold(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	stream, err := s.eligibleStream(ctx, db, indexed)
	if err != nil {
		return 0, err
	}
	if len(stream) == 0 {
		return count, nil
	}

	var last ChatSession
	if err := db.QueryRowContext(ctx, `
		SELECT id, start_ts, end_ts, message_count, first_message_id
		FROM chat_session
		ORDER BY start_ts DESC, id DESC
		LIMIT 1`,
	).Scan(&last.ID, &last.StartTs, &last.EndTs, &last.MessageCount, &last.FirstMessageID); err != nil {
		return 0, fmt.Errorf("last session query failed: %w", err)
	}

	// Replay the gap rule starting from the tail of the existing index:
	// tail[0] is the last indexed session (possibly reopened), anything
	// after it is brand new.
	tail := []ChatSession{last}
	for _, m := range stream {
		n := len(tail)
		if m.ts-tail[n-1].EndTs <= threshold {
			tail[n-1].EndTs = m.ts
			tail[n-1].MessageCount++
			continue
		}
		tail = append(tail, ChatSession{StartTs: m.ts, EndTs: m.ts, MessageCount: 1, FirstMessageID: m.id})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_session SET end_ts = ?, message_count = ? WHERE id = ?`,
		tail[0].EndTs, tail[0].MessageCount, tail[0].ID,
	); err != nil {
		return 0, fmt.Errorf("failed to extend session index: %w", err)
	}
	for _, cs := range tail[1:] {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_session (start_ts, end_ts, message_count, first_message_id)
			VALUES (?, ?, ?, ?)`,
			cs.StartTs, cs.EndTs, cs.MessageCount, cs.FirstMessageID,
		); err != nil {
			return 0, fmt.Errorf("failed to extend session index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit session index: %w", err)
	}
	return count + len(tail) - 1, nil
}

// UpdateGapThreshold persists a new threshold and rebuilds the index.
func (s *Store) UpdateGapThreshold(ctx context.Context, sessionID string, threshold int64) (int, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return 0, err
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("gap threshold must be positive, got %d", threshold)
	}

	if _, err := db.ExecContext(ctx, `UPDATE meta SET gap_threshold = ?`, threshold); err != nil {
		return 0, fmt.Errorf("failed to update gap threshold: %w", err)
	}
	return s.RebuildChatSessions(ctx, sessionID, threshold)
}

// ClearChatSessions drops the derived index.
func (s *Store) ClearChatSessions(ctx context.Context, sessionID string) error {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM chat_session`); err != nil {
		return fmt.Errorf("failed to clear session index: %w", err)
	}
	return nil
}

// ChatSessions returns the derived sessions ordered by start time.
// limit <= 0 means no limit.
func (s *Store) ChatSessions(ctx context.Context, sessionID string, limit, offset int) ([]ChatSession, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, start_ts, end_ts, message_count, first_message_id, COALESCE(summary, '')
		FROM chat_session
		ORDER BY start_ts ASC, id ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("chat sessions query failed: %w", err)
	}
	defer rows.Close()

	var sessions []ChatSession
	for rows.Next() {
		var cs ChatSession
		if err := rows.Scan(&cs.ID, &cs.StartTs, &cs.EndTs, &cs.MessageCount, &cs.FirstMessageID, &cs.Summary); err != nil {
			return nil, fmt.Errorf("chat sessions scan failed: %w", err)
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

// SaveChatSessionSummary stores a summary for one derived session.
func (s *Store) SaveChatSessionSummary(ctx context.Context, sessionID string, chatSessionID int64, summary string) error {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE chat_session SET summary = ? WHERE id = ?`, summary, chatSessionID,
	); err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}
	return nil
}

// ChatSessionSummary returns a derived session's summary, empty if unset.
func (s *Store) ChatSessionSummary(ctx context.Context, sessionID string, chatSessionID int64) (string, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return "", err
	}

	var summary sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT summary FROM chat_session WHERE id = ?`, chatSessionID,
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session summary query failed: %w", err)
	}
	return summary.String, nil
}

// TranscriptMessage is one line of a derived session's transcript, resolved
// to the sender's current name.
type TranscriptMessage struct {
	SenderName string      `json:"senderName"`
	Ts         int64       `json:"ts"`
	Type       MessageType `json:"type"`
	Content    string      `json:"content"`
}

// ChatSessionMessages returns the messages covered by one derived session,
// in stream order. System messages are excluded like everywhere else.
func (s *Store) ChatSessionMessages(ctx context.Context, sessionID string, chatSessionID int64) ([]TranscriptMessage, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	var startTs, endTs int64
	err = db.QueryRowContext(ctx,
		`SELECT start_ts, end_ts FROM chat_session WHERE id = ?`, chatSessionID,
	).Scan(&startTs, &endTs)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat session %d not found", chatSessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("chat session query failed: %w", err)
	}

	preds := append(
		[]Predicate{{Expr: "msg.ts BETWEEN ? AND ?", Args: []any{startTs, endTs}}},
		excludeSystem("m", "msg")...,
	)
	clause, args := whereClause(preds)
	rows, err := db.QueryContext(ctx, `
		SELECT m.name, msg.ts, msg.type, COALESCE(msg.content, '')
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		ORDER BY msg.ts ASC, msg.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript query failed: %w", err)
	}
	defer rows.Close()

	var msgs []TranscriptMessage
	for rows.Next() {
		var m TranscriptMessage
		if err := rows.Scan(&m.SenderName, &m.Ts, &m.Type, &m.Content); err != nil {
			return nil, fmt.Errorf("transcript scan failed: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// eligibleStream loads the segmentation input: non-system messages in
// (ts, id) order, skipping the first offset rows.
func (s *Store) eligibleStream(ctx context.Context, db *sql.DB, offset int) ([]streamMsg, error) {
	clause, args := whereClause(excludeSystem("m", "msg"))
	rows, err := db.QueryContext(ctx, `
		SELECT msg.id, msg.ts
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		ORDER BY msg.ts ASC, msg.id ASC
		LIMIT -1 OFFSET ?`, append(args, offset)...)
	if err != nil {
		return nil, fmt.Errorf("stream query failed: %w", err)
	}
	defer rows.Close()

	var stream []streamMsg
	for rows.Next() {
		var m streamMsg
		if err := rows.Scan(&m.id, &m.ts); err != nil {
			return nil, fmt.Errorf("stream scan failed: %w", err)
		}
		stream = append(stream, m)
	}
	return stream, rows.Err()
}

// segmentStream applies the gap rule: adjacent messages stay in one session
// iff their timestamp gap is within the threshold.
func segmentStream(stream []streamMsg, threshold int64) []ChatSession {
	var sessions []ChatSession
	for _, m := range stream {
		if n := len(sessions); n > 0 && m.ts-sessions[n-1].EndTs <= threshold {
			sessions[n-1].EndTs = m.ts
			sessions[n-1].MessageCount++
			continue
		}
		sessions = append(sessions, ChatSession{
			StartTs:        m.ts,
			EndTs:          m.ts,
			MessageCount:   1,
			FirstMessageID: m.id,
		})
	}
	return sessions
}
