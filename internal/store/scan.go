package store

import (
	"context"
	"fmt"
)

// ScanMessage is the analyzer view of one message: the ordered, filtered
// stream every pattern scan consumes.
type ScanMessage struct {
	ID       int64
	SenderID int64
	Ts       int64
	Type     MessageType
	Content  string
}

// ScanMessages returns the non-system message stream in (ts, id) order,
// optionally narrowed by a time filter. Missing sessions yield an empty
// stream.
func (s *Store) ScanMessages(ctx context.Context, sessionID string, f *TimeFilter) ([]ScanMessage, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	preds := append(timePredicates(f, "msg.ts"), excludeSystem("m", "msg")...)
	clause, args := whereClause(preds)

	rows, err := db.QueryContext(ctx, `
		SELECT msg.id, msg.sender_id, msg.ts, msg.type, COALESCE(msg.content, '')
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		ORDER BY msg.ts ASC, msg.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("scan query failed: %w", err)
	}
	defer rows.Close()

	var stream []ScanMessage
	for rows.Next() {
		var m ScanMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.Ts, &m.Type, &m.Content); err != nil {
			return nil, fmt.Errorf("scan row failed: %w", err)
		}
		stream = append(stream, m)
	}
	return stream, rows.Err()
}

// HistoricalNames returns every name each member has ever used, current name
// included, keyed by member id.
func (s *Store) HistoricalNames(ctx context.Context, sessionID string) (map[int64][]string, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT member_id, name FROM member_name_history
		ORDER BY member_id, start_ts`)
	if err != nil {
		return nil, fmt.Errorf("historical names query failed: %w", err)
	}
	defer rows.Close()

	names := make(map[int64][]string)
	for rows.Next() {
		var memberID int64
		var name string
		if err := rows.Scan(&memberID, &name); err != nil {
			return nil, fmt.Errorf("historical names scan failed: %w", err)
		}
		names[memberID] = append(names[memberID], name)
	}
	return names, rows.Err()
}
