// Package summarize generates natural-language summaries for derived
// conversational sessions via an LLM provider.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chatlens/chatlens/internal/store"
)

// Client is the minimal completion surface the summarizer needs from a
// provider.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = `You summarize group chat conversations. Given a transcript, produce a short summary in the transcript's dominant language: what was discussed, who drove the conversation, and how the topic resolved. Two to four sentences, no preamble.`

// maxTranscriptLines caps the prompt size for very long sessions. The head
// and tail are kept, the middle elided.
const maxTranscriptLines = 400

// Summarizer loads a derived session's transcript, asks the provider for a
// summary, and persists it on the session row.
type Summarizer struct {
	store  *store.Store
	client Client
}

// New creates a Summarizer.
func New(st *store.Store, client Client) *Summarizer {
	return &Summarizer{store: st, client: client}
}

// Summarize generates, saves, and returns the summary for one derived
// session. A session with no eligible messages yields an error rather than an
// empty prompt.
func (s *Summarizer) Summarize(ctx context.Context, sessionID string, chatSessionID int64) (string, error) {
	msgs, err := s.store.ChatSessionMessages(ctx, sessionID, chatSessionID)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("chat session %d has no messages to summarize", chatSessionID)
	}

	summary, err := s.client.Complete(ctx, systemPrompt, renderTranscript(msgs))
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("provider returned an empty summary")
	}

	if err := s.store.SaveChatSessionSummary(ctx, sessionID, chatSessionID, summary); err != nil {
		return "", err
	}
	return summary, nil
}

// renderTranscript flattens messages into "[15:04] name: content" lines.
// Non-text messages render as a bracketed type marker.
func renderTranscript(msgs []store.TranscriptMessage) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		stamp := time.Unix(m.Ts, 0).Format("15:04")
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", stamp, m.SenderName, renderContent(m)))
	}
	if len(lines) > maxTranscriptLines {
		half := maxTranscriptLines / 2
		elided := len(lines) - maxTranscriptLines
		head := lines[:half]
		tail := lines[len(lines)-half:]
		lines = append(append(head, fmt.Sprintf("... (%d messages elided) ...", elided)), tail...)
	}
	return strings.Join(lines, "\n")
}

func renderContent(m store.TranscriptMessage) string {
	switch m.Type {
	case store.MessageText:
		return m.Content
	case store.MessageImage:
		return "[image]"
	case store.MessageVoice:
		return "[voice]"
	case store.MessageVideo:
		return "[video]"
	case store.MessageFile:
		return "[file]"
	case store.MessageSticker:
		return "[sticker]"
	default:
		return "[unknown]"
	}
}
