package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MemberActivity is one row of the per-member message leaderboard.
type MemberActivity struct {
	MemberID     int64   `json:"memberId"`
	PlatformID   string  `json:"platformId"`
	Name         string  `json:"name"`
	MessageCount int     `json:"messageCount"`
	Percentage   float64 `json:"percentage"`
}

// HourlyActivity is the message count for one hour of day (local time).
type HourlyActivity struct {
	Hour         int `json:"hour"`
	MessageCount int `json:"messageCount"`
}

// DailyActivity is the message count for one calendar day.
type DailyActivity struct {
	Date         string `json:"date"` // YYYY-MM-DD
	MessageCount int    `json:"messageCount"`
}

// WeekdayActivity is the message count for one weekday (0 = Sunday).
type WeekdayActivity struct {
	Weekday      int `json:"weekday"`
	MessageCount int `json:"messageCount"`
}

// MonthlyActivity is the message count for one calendar month.
type MonthlyActivity struct {
	Month        string `json:"month"` // YYYY-MM
	MessageCount int    `json:"messageCount"`
}

// TypeCount is the message count for one message type.
type TypeCount struct {
	Type  MessageType `json:"type"`
	Count int         `json:"count"`
}

// TimeRange is the inclusive timestamp span of a session's messages.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// NameHistoryEntry is one interval of a member's nickname timeline.
// A nil EndTs marks the name currently in use.
type NameHistoryEntry struct {
	Name    string `json:"name"`
	StartTs int64  `json:"startTs"`
	EndTs   *int64 `json:"endTs"`
}

// Member is a participant row.
type Member struct {
	ID         int64  `json:"id"`
	PlatformID string `json:"platformId"`
	Name       string `json:"name"`
}

// reader resolves a session handle for a read operation. Missing sessions
// report ok=false with no error so callers can return empty results.
func (s *Store) reader(ctx context.Context, sessionID string) (*sql.DB, bool, error) {
	db, err := s.handle(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return db, true, nil
}

// MemberActivity returns the per-member message leaderboard, percentage of
// all in-scope messages included. System traffic is excluded.
func (s *Store) MemberActivity(ctx context.Context, sessionID string, f *TimeFilter) ([]MemberActivity, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	preds := append(timePredicates(f, "msg.ts"), excludeSystem("m", "msg")...)
	clause, args := whereClause(preds)

	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.platform_id, m.name, COUNT(msg.id) AS message_count
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		GROUP BY m.id
		ORDER BY message_count DESC, m.id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("member activity query failed: %w", err)
	}
	defer rows.Close()

	var result []MemberActivity
	total := 0
	for rows.Next() {
		var a MemberActivity
		if err := rows.Scan(&a.MemberID, &a.PlatformID, &a.Name, &a.MessageCount); err != nil {
			return nil, fmt.Errorf("member activity scan failed: %w", err)
		}
		total += a.MessageCount
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("member activity rows error: %w", err)
	}

	for i := range result {
		result[i].Percentage = Percentage(result[i].MessageCount, total)
	}
	return result, nil
}

// HourlyActivity returns all 24 hour buckets, zero-filled.
func (s *Store) HourlyActivity(ctx context.Context, sessionID string, f *TimeFilter) ([]HourlyActivity, error) {
	counts, err := s.bucketCounts(ctx, sessionID, f,
		`CAST(strftime('%H', msg.ts, 'unixepoch', 'localtime') AS INTEGER)`)
	if err != nil || counts == nil {
		return nil, err
	}

	result := make([]HourlyActivity, 24)
	for h := 0; h < 24; h++ {
		result[h] = HourlyActivity{Hour: h, MessageCount: counts[fmt.Sprintf("%d", h)]}
	}
	return result, nil
}

// WeekdayActivity returns all 7 weekday buckets, zero-filled. 0 is Sunday.
func (s *Store) WeekdayActivity(ctx context.Context, sessionID string, f *TimeFilter) ([]WeekdayActivity, error) {
	counts, err := s.bucketCounts(ctx, sessionID, f,
		`CAST(strftime('%w', msg.ts, 'unixepoch', 'localtime') AS INTEGER)`)
	if err != nil || counts == nil {
		return nil, err
	}

	result := make([]WeekdayActivity, 7)
	for d := 0; d < 7; d++ {
		result[d] = WeekdayActivity{Weekday: d, MessageCount: counts[fmt.Sprintf("%d", d)]}
	}
	return result, nil
}

// DailyActivity returns per-day counts ordered by date.
func (s *Store) DailyActivity(ctx context.Context, sessionID string, f *TimeFilter) ([]DailyActivity, error) {
	pairs, err := s.orderedBucketCounts(ctx, sessionID, f,
		`strftime('%Y-%m-%d', msg.ts, 'unixepoch', 'localtime')`)
	if err != nil {
		return nil, err
	}
	result := make([]DailyActivity, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, DailyActivity{Date: p.key, MessageCount: p.count})
	}
	return result, nil
}

// MonthlyActivity returns per-month counts ordered by month.
func (s *Store) MonthlyActivity(ctx context.Context, sessionID string, f *TimeFilter) ([]MonthlyActivity, error) {
	pairs, err := s.orderedBucketCounts(ctx, sessionID, f,
		`strftime('%Y-%m', msg.ts, 'unixepoch', 'localtime')`)
	if err != nil {
		return nil, err
	}
	result := make([]MonthlyActivity, 0, len(pairs))
	for _, p := range pairs {
		result = append(result, MonthlyActivity{Month: p.key, MessageCount: p.count})
	}
	return result, nil
}

type bucketPair struct {
	key   string
	count int
}

func (s *Store) bucketCounts(ctx context.Context, sessionID string, f *TimeFilter, bucketExpr string) (map[string]int, error) {
	pairs, err := s.orderedBucketCounts(ctx, sessionID, f, bucketExpr)
	if err != nil || pairs == nil {
		return nil, err
	}
	counts := make(map[string]int, len(pairs))
	for _, p := range pairs {
		counts[p.key] = p.count
	}
	return counts, nil
}

func (s *Store) orderedBucketCounts(ctx context.Context, sessionID string, f *TimeFilter, bucketExpr string) ([]bucketPair, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	preds := append(timePredicates(f, "msg.ts"), excludeSystem("m", "msg")...)
	clause, args := whereClause(preds)

	rows, err := db.QueryContext(ctx, `
		SELECT `+bucketExpr+` AS bucket, COUNT(*) AS message_count
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		GROUP BY bucket
		ORDER BY bucket`, args...)
	if err != nil {
		return nil, fmt.Errorf("bucket query failed: %w", err)
	}
	defer rows.Close()

	pairs := []bucketPair{}
	for rows.Next() {
		var p bucketPair
		if err := rows.Scan(&p.key, &p.count); err != nil {
			return nil, fmt.Errorf("bucket scan failed: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bucket rows error: %w", err)
	}
	return pairs, nil
}

// MessageTypeDistribution returns counts per message type, descending.
func (s *Store) MessageTypeDistribution(ctx context.Context, sessionID string, f *TimeFilter) ([]TypeCount, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	preds := append(timePredicates(f, "msg.ts"), excludeSystem("m", "msg")...)
	clause, args := whereClause(preds)

	rows, err := db.QueryContext(ctx, `
		SELECT msg.type, COUNT(*) AS cnt
		FROM message msg
		JOIN member m ON msg.sender_id = m.id`+clause+`
		GROUP BY msg.type
		ORDER BY cnt DESC, msg.type ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("type distribution query failed: %w", err)
	}
	defer rows.Close()

	var result []TypeCount
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, fmt.Errorf("type distribution scan failed: %w", err)
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}

// TimeRange returns the min/max message timestamps, or nil for an empty or
// missing session.
func (s *Store) TimeRange(ctx context.Context, sessionID string) (*TimeRange, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	var start, end sql.NullInt64
	if err := db.QueryRowContext(ctx,
		`SELECT MIN(ts), MAX(ts) FROM message`,
	).Scan(&start, &end); err != nil {
		return nil, fmt.Errorf("time range query failed: %w", err)
	}
	if !start.Valid || !end.Valid {
		return nil, nil
	}
	return &TimeRange{Start: start.Int64, End: end.Int64}, nil
}

// AvailableYears returns the distinct message years, newest first.
func (s *Store) AvailableYears(ctx context.Context, sessionID string) ([]int, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT CAST(strftime('%Y', ts, 'unixepoch', 'localtime') AS INTEGER) AS year
		FROM message
		ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("years query failed: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("years scan failed: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// MemberNameHistory returns a member's nickname intervals, most recent first.
func (s *Store) MemberNameHistory(ctx context.Context, sessionID string, memberID int64) ([]NameHistoryEntry, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT name, start_ts, end_ts
		FROM member_name_history
		WHERE member_id = ?
		ORDER BY start_ts DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("name history query failed: %w", err)
	}
	defer rows.Close()

	var entries []NameHistoryEntry
	for rows.Next() {
		var e NameHistoryEntry
		var end sql.NullInt64
		if err := rows.Scan(&e.Name, &e.StartTs, &end); err != nil {
			return nil, fmt.Errorf("name history scan failed: %w", err)
		}
		if end.Valid {
			v := end.Int64
			e.EndTs = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Members returns all non-system participants ordered by id.
func (s *Store) Members(ctx context.Context, sessionID string) ([]Member, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, platform_id, name FROM member WHERE name != ? ORDER BY id`, SystemSenderName)
	if err != nil {
		return nil, fmt.Errorf("members query failed: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.PlatformID, &m.Name); err != nil {
			return nil, fmt.Errorf("members scan failed: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
