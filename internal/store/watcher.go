package store

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the data directory and drops open handles for store files
// that disappear underneath the process (user deleting files, external
// cleanup). Without it a removed store would keep a stale handle registered
// until the next explicit close.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher

	debounceTime time.Duration
	mu           sync.Mutex
	pending      map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the store's data directory.
func NewWatcher(s *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:        s,
		watcher:      fw,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins watching. Events are debounced so WAL checkpoint churn does
// not trigger handle invalidation storms.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("failed to watch data dir: %w", err)
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.flushLoop()
	return nil
}

// Stop stops the watcher and waits for its goroutines.
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".db") {
				continue
			}
			w.mu.Lock()
			w.pending[strings.TrimSuffix(name, ".db")] = true
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[store] watcher error: %v", err)
		}
	}
}

func (w *Watcher) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			ids := make([]string, 0, len(w.pending))
			for id := range w.pending {
				ids = append(ids, id)
			}
			w.pending = make(map[string]bool)
			w.mu.Unlock()

			for _, id := range ids {
				if err := w.store.Close(id); err != nil {
					log.Printf("[store] failed to close removed store %s: %v", id, err)
				} else {
					log.Printf("[store] store file for %s removed externally, handle dropped", id)
				}
			}
		}
	}
}
