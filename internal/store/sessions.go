package store

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docker/go-units"
)

// SessionInfo describes one analysis session for listing.
type SessionInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	Type         string `json:"type"`
	ImportedAt   int64  `json:"importedAt"`
	MessageCount int    `json:"messageCount"`
	MemberCount  int    `json:"memberCount"`
	Path         string `json:"path"`
	Size         string `json:"size"` // human-readable store file size
}

// ListSessions enumerates every store file in the data directory, newest
// import first. Unreadable files are skipped with a logged reason; they never
// abort the rest of the listing.
func (s *Store) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".db")

		info, err := s.GetSession(ctx, sessionID)
		if err != nil {
			log.Printf("[store] skipping unreadable store %s: %v", entry.Name(), err)
			// A handle may have been registered before the failure.
			s.Close(sessionID)
			continue
		}
		if info != nil {
			sessions = append(sessions, *info)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ImportedAt != sessions[j].ImportedAt {
			return sessions[i].ImportedAt > sessions[j].ImportedAt
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// GetSession returns one session's info, or nil if its store file is missing.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	db, ok, err := s.reader(ctx, sessionID)
	if err != nil || !ok {
		return nil, err
	}

	info := SessionInfo{ID: sessionID, Path: s.Path(sessionID)}
	if err := db.QueryRowContext(ctx,
		`SELECT name, platform, type, imported_at FROM meta LIMIT 1`,
	).Scan(&info.Name, &info.Platform, &info.Type, &info.ImportedAt); err != nil {
		return nil, fmt.Errorf("meta query failed: %w", err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM message msg
		JOIN member m ON msg.sender_id = m.id
		WHERE m.name != ? AND msg.type != ?`,
		SystemSenderName, int(MessageSystem),
	).Scan(&info.MessageCount); err != nil {
		return nil, fmt.Errorf("message count query failed: %w", err)
	}

	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM member WHERE name != ?`, SystemSenderName,
	).Scan(&info.MemberCount); err != nil {
		return nil, fmt.Errorf("member count query failed: %w", err)
	}

	if st, err := os.Stat(info.Path); err == nil {
		info.Size = units.HumanSize(float64(st.Size()))
	}
	return &info, nil
}

// DeleteSession removes a session's store file along with its WAL and SHM
// side files. Deleting a missing session is a no-op.
func (s *Store) DeleteSession(sessionID string) error {
	if err := s.Close(sessionID); err != nil {
		log.Printf("[store] close before delete failed for %s: %v", sessionID, err)
	}

	path := s.Path(sessionID)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}
