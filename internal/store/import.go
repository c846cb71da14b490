package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ParseResult is the normalized output of a platform-specific log parser,
// the input contract of the import pipeline. Timestamps are integer seconds.
type ParseResult struct {
	Meta     ParsedMeta      `json:"meta"`
	Members  []ParsedMember  `json:"members"`
	Messages []ParsedMessage `json:"messages"`
}

// ParsedMeta describes the imported chat log.
type ParsedMeta struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Type     string `json:"type"` // direct or group
}

// ParsedMember declares a participant with their first-seen name.
type ParsedMember struct {
	PlatformID string `json:"platformId"`
	Name       string `json:"name"`
}

// ParsedMessage is one normalized message.
type ParsedMessage struct {
	SenderPlatformID string      `json:"senderPlatformId"`
	SenderName       string      `json:"senderName"`
	Timestamp        int64       `json:"timestamp"`
	Type             MessageType `json:"type"`
	Content          string      `json:"content,omitempty"`
}

// Import creates a new analysis session from a parse result and returns its
// id. The whole import runs in one transaction; on any failure the fresh
// store file is removed so no partial session is ever visible.
func (s *Store) Import(ctx context.Context, pr *ParseResult) (string, error) {
	if err := ValidateParseResult(pr); err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	db, err := s.createSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	if err := s.runImport(ctx, db, pr); err != nil {
		// Drop the half-born session entirely.
		s.Close(sessionID)
		os.Remove(s.Path(sessionID))
		os.Remove(s.Path(sessionID) + "-wal")
		os.Remove(s.Path(sessionID) + "-shm")
		return "", err
	}
	return sessionID, nil
}

func (s *Store) runImport(ctx context.Context, db *sql.DB, pr *ParseResult) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	threshold := s.defaultGapThreshold
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (name, platform, type, imported_at, gap_threshold) VALUES (?, ?, ?, ?, ?)`,
		pr.Meta.Name, pr.Meta.Platform, pr.Meta.Type, time.Now().Unix(), threshold,
	); err != nil {
		return fmt.Errorf("failed to insert meta: %w", err)
	}

	// Declared members with their first-seen names.
	memberIDs := make(map[string]int64, len(pr.Members))
	for _, m := range pr.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO member (platform_id, name) VALUES (?, ?)`,
			m.PlatformID, m.Name,
		); err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.PlatformID, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM member WHERE platform_id = ?`, m.PlatformID,
		).Scan(&id); err != nil {
			return fmt.Errorf("failed to resolve member %s: %w", m.PlatformID, err)
		}
		memberIDs[m.PlatformID] = id
	}

	// Stable sort by timestamp keeps input position as the total-order
	// tiebreaker the replay depends on.
	sorted := make([]ParsedMessage, len(pr.Messages))
	copy(sorted, pr.Messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	insertMessage, err := tx.PrepareContext(ctx,
		`INSERT INTO message (sender_id, ts, type, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer insertMessage.Close()

	insertHistory, err := tx.PrepareContext(ctx,
		`INSERT INTO member_name_history (member_id, name, start_ts, end_ts) VALUES (?, ?, ?, NULL)`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer insertHistory.Close()

	closeHistory, err := tx.PrepareContext(ctx,
		`UPDATE member_name_history SET end_ts = ? WHERE member_id = ? AND end_ts IS NULL`)
	if err != nil {
		return fmt.Errorf("failed to prepare history close: %w", err)
	}
	defer closeHistory.Close()

	// Replay in order, keeping one open name interval per member.
	currentNames := make(map[string]string)
	for _, msg := range sorted {
		senderID, ok := memberIDs[msg.SenderPlatformID]
		if !ok {
			// Undeclared sender: drop the message, not an error.
			continue
		}

		if _, err := insertMessage.ExecContext(ctx, senderID, msg.Timestamp, int(msg.Type), msg.Content); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		name, seen := currentNames[msg.SenderPlatformID]
		switch {
		case !seen:
			if _, err := insertHistory.ExecContext(ctx, senderID, msg.SenderName, msg.Timestamp); err != nil {
				return fmt.Errorf("failed to open name interval: %w", err)
			}
			currentNames[msg.SenderPlatformID] = msg.SenderName
		case name != msg.SenderName:
			if _, err := closeHistory.ExecContext(ctx, msg.Timestamp, senderID); err != nil {
				return fmt.Errorf("failed to close name interval: %w", err)
			}
			if _, err := insertHistory.ExecContext(ctx, senderID, msg.SenderName, msg.Timestamp); err != nil {
				return fmt.Errorf("failed to open name interval: %w", err)
			}
			currentNames[msg.SenderPlatformID] = msg.SenderName
		}
	}

	// The stored current name is the name of the open interval.
	for platformID, name := range currentNames {
		if _, err := tx.ExecContext(ctx,
			`UPDATE member SET name = ? WHERE platform_id = ?`, name, platformID,
		); err != nil {
			return fmt.Errorf("failed to update member name: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}
