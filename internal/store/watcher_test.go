package store

import (
	"os"
	"testing"
	"time"
)

func TestWatcherDropsHandleOnExternalDelete(t *testing.T) {
	s := newTestStore(t)
	base := ts(2024, time.March, 1, 10, 0, 0)

	id := mustImport(t, s, basicParseResult([]ParsedMessage{
		textMsg("u1", "Alice", base, "hello"),
	}))

	w, err := NewWatcher(s)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	// Delete the store file behind the store's back.
	if err := os.Remove(s.Path(id)); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		_, open := s.open[id]
		s.mu.Unlock()
		if !open {
			return
		}
		select {
		case <-deadline:
			t.Fatal("handle not dropped after external delete")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
