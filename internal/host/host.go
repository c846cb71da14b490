package host

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chatlens/chatlens/internal/analyzer"
	"github.com/chatlens/chatlens/internal/store"
)

// DefaultTimeout bounds how long a caller waits for the worker before the
// pending slot is reclaimed.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout reports that the worker did not answer in time. The
	// operation may still complete inside the worker; only the wait is
	// abandoned.
	ErrTimeout = errors.New("host: operation timed out")

	// ErrWorkerLost reports that the worker terminated while requests were
	// in flight. A later call starts a fresh worker.
	ErrWorkerLost = errors.New("host: worker lost")
)

// Options configures a Host.
type Options struct {
	// DataDir is the directory holding the per-session store files.
	DataDir string
	// GapThreshold is the default session gap threshold for new imports.
	GapThreshold int64
	// LaughKeywords override the laugh analyzer defaults.
	LaughKeywords []string
	// Watch drops open handles for store files removed externally.
	Watch bool
	// Timeout overrides DefaultTimeout. Zero keeps the default.
	Timeout time.Duration
}

type request struct {
	id  string
	ctx context.Context
	cmd Command
}

// worker is one incarnation of the store-owning goroutine. The done channel
// closes when the goroutine exits for any reason; stop asks it to exit. Each
// incarnation tracks its own pending slots so a crashing worker can only fail
// requests that were sent to it, never those of its successor.
type worker struct {
	requests chan request
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// guarded by Host.mu
	pending map[string]chan Response
}

// Host runs every store and analyzer operation on a single worker goroutine
// and correlates responses back to callers by request id. The worker starts
// lazily on first use and is restarted lazily after a crash.
type Host struct {
	opts    Options
	timeout time.Duration

	mu     sync.Mutex
	worker *worker
}

// New creates a Host. No worker is started until the first Call.
func New(opts Options) *Host {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Host{
		opts:    opts,
		timeout: timeout,
	}
}

// Call submits a command and waits for its response, at most the configured
// timeout. The returned value is the operation result on success.
func (h *Host) Call(ctx context.Context, cmd Command) (any, error) {
	id := NewRequestID()
	ch := make(chan Response, 1)

	h.mu.Lock()
	w := h.worker
	if w != nil {
		// A crashed worker may not have unregistered itself yet.
		select {
		case <-w.done:
			w = nil
		default:
		}
	}
	if w == nil {
		w = h.startWorker()
		h.worker = w
	}
	w.pending[id] = ch
	h.mu.Unlock()

	select {
	case w.requests <- request{id: id, ctx: ctx, cmd: cmd}:
	case <-w.done:
		h.unregister(w, id)
		return nil, ErrWorkerLost
	case <-ctx.Done():
		h.unregister(w, id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if !resp.OK {
			return nil, errors.New(resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		h.unregister(w, id)
		return nil, ErrTimeout
	case <-w.done:
		h.unregister(w, id)
		return nil, ErrWorkerLost
	case <-ctx.Done():
		h.unregister(w, id)
		return nil, ctx.Err()
	}
}

// Close shuts the current worker down, closing all open store handles on the
// worker's own goroutine first.
func (h *Host) Close() error {
	h.mu.Lock()
	w := h.worker
	h.mu.Unlock()
	if w == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	_, err := h.Call(ctx, &CloseAllCommand{})

	h.mu.Lock()
	if h.worker == w {
		h.worker = nil
	}
	h.mu.Unlock()
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	return err
}

func (h *Host) unregister(w *worker, id string) {
	h.mu.Lock()
	delete(w.pending, id)
	h.mu.Unlock()
}

// deliver hands a response to its waiting caller. Responses arriving after
// the caller timed out find no pending slot and are dropped.
func (h *Host) deliver(w *worker, resp Response) {
	h.mu.Lock()
	ch, ok := w.pending[resp.ID]
	if ok {
		delete(w.pending, resp.ID)
	}
	h.mu.Unlock()
	if ok {
		ch <- resp
	}
}

// dropPending clears the dead worker's in-flight slots. Waiting callers
// observe the closed done channel and report ErrWorkerLost. Slots registered
// on a successor worker are untouched.
func (h *Host) dropPending(w *worker) {
	h.mu.Lock()
	w.pending = make(map[string]chan Response)
	h.mu.Unlock()
}

func (h *Host) startWorker() *worker {
	w := &worker{
		requests: make(chan request, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		pending:  make(map[string]chan Response),
	}
	go h.run(w)
	return w
}

// run is the worker goroutine. It owns the Store exclusively; nothing else
// touches session handles. A panic in any operation tears the incarnation
// down, fails the in-flight requests, and leaves restart to the next Call.
func (h *Host) run(w *worker) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[host] worker crashed: %v", r)
		}
		close(w.done)
		h.mu.Lock()
		if h.worker == w {
			h.worker = nil
		}
		h.mu.Unlock()
		h.dropPending(w)
	}()

	st, err := store.New(h.opts.DataDir, store.Options{GapThreshold: h.opts.GapThreshold})
	if err != nil {
		log.Printf("[host] store init failed: %v", err)
		return
	}
	defer st.CloseAll()

	if h.opts.Watch {
		watcher, err := store.NewWatcher(st)
		if err != nil {
			log.Printf("[host] data dir watcher unavailable: %v", err)
		} else if err := watcher.Start(); err != nil {
			log.Printf("[host] data dir watcher failed to start: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	for {
		select {
		case req := <-w.requests:
			result, err := h.execute(req.ctx, st, req.cmd)
			resp := Response{ID: req.id, OK: err == nil, Result: result}
			if err != nil {
				resp.Error = err.Error()
			}
			h.deliver(w, resp)
		case <-w.stop:
			return
		}
	}
}

func (h *Host) execute(ctx context.Context, st *store.Store, cmd Command) (any, error) {
	switch c := cmd.(type) {
	case *ImportCommand:
		return st.Import(ctx, &c.Payload)
	case *ListSessionsCommand:
		return st.ListSessions(ctx)
	case *GetSessionCommand:
		return st.GetSession(ctx, c.SessionID)
	case *DeleteSessionCommand:
		return nil, st.DeleteSession(c.SessionID)
	case *CloseSessionCommand:
		return nil, st.Close(c.SessionID)
	case *CloseAllCommand:
		return nil, st.CloseAll()

	case *MemberActivityCommand:
		return st.MemberActivity(ctx, c.SessionID, c.Filter)
	case *HourlyActivityCommand:
		return st.HourlyActivity(ctx, c.SessionID, c.Filter)
	case *DailyActivityCommand:
		return st.DailyActivity(ctx, c.SessionID, c.Filter)
	case *WeekdayActivityCommand:
		return st.WeekdayActivity(ctx, c.SessionID, c.Filter)
	case *MonthlyActivityCommand:
		return st.MonthlyActivity(ctx, c.SessionID, c.Filter)
	case *MessageTypesCommand:
		return st.MessageTypeDistribution(ctx, c.SessionID, c.Filter)
	case *TimeRangeCommand:
		return st.TimeRange(ctx, c.SessionID)
	case *AvailableYearsCommand:
		return st.AvailableYears(ctx, c.SessionID)
	case *NameHistoryCommand:
		return st.MemberNameHistory(ctx, c.SessionID, c.MemberID)

	case *RebuildIndexCommand:
		threshold := c.Threshold
		if threshold <= 0 {
			var err error
			threshold, err = st.GapThreshold(ctx, c.SessionID)
			if err != nil {
				return nil, err
			}
		}
		return st.RebuildChatSessions(ctx, c.SessionID, threshold)
	case *ExtendIndexCommand:
		return st.ExtendChatSessions(ctx, c.SessionID)
	case *UpdateThresholdCommand:
		return st.UpdateGapThreshold(ctx, c.SessionID, c.Threshold)
	case *ChatSessionsCommand:
		return st.ChatSessions(ctx, c.SessionID, c.Limit, c.Offset)
	case *ClearIndexCommand:
		return nil, st.ClearChatSessions(ctx, c.SessionID)
	case *SaveSummaryCommand:
		return nil, st.SaveChatSessionSummary(ctx, c.SessionID, c.ChatSessionID, c.Summary)
	case *GetSummaryCommand:
		return st.ChatSessionSummary(ctx, c.SessionID, c.ChatSessionID)

	case *RepeatCommand:
		return analyzer.Repeat(ctx, st, c.SessionID, c.Filter)
	case *CatchphraseCommand:
		opts := analyzer.CatchphraseOptions{MinCount: c.MinCount, TopN: c.TopN}
		return analyzer.Catchphrase(ctx, st, c.SessionID, c.Filter, nil, opts)
	case *NightOwlCommand:
		return analyzer.NightOwl(ctx, st, c.SessionID, c.Filter)
	case *DragonKingCommand:
		return analyzer.DragonKing(ctx, st, c.SessionID, c.Filter)
	case *DivingCommand:
		return analyzer.Diving(ctx, st, c.SessionID, c.Filter)
	case *MonologueCommand:
		return analyzer.Monologue(ctx, st, c.SessionID, c.Filter, analyzer.MonologueOptions{MinRun: c.MinRun})
	case *MentionCommand:
		return analyzer.Mention(ctx, st, c.SessionID, c.Filter)
	case *LaughCommand:
		keywords := c.Keywords
		if len(keywords) == 0 {
			keywords = h.opts.LaughKeywords
		}
		return analyzer.Laugh(ctx, st, c.SessionID, c.Filter, keywords)
	case *MemeBattleCommand:
		opts := analyzer.MemeBattleOptions{MaxGap: c.MaxGap, MinSize: c.MinSize}
		return analyzer.MemeBattle(ctx, st, c.SessionID, c.Filter, opts)

	case *PingCommand:
		return "pong", nil

	case *sleepCommand:
		select {
		case <-time.After(c.d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return "slept", nil
	case *crashCommand:
		panic("induced worker crash")

	default:
		return nil, fmt.Errorf("unsupported command: %T", cmd)
	}
}

// sleepCommand and crashCommand exist so tests can exercise the timeout and
// crash-recovery paths without a genuinely slow or faulty store operation.
// They are deliberately unexported and undecodable from the wire.
type sleepCommand struct{ d time.Duration }

func (*sleepCommand) GetOp() Op { return "sleep" }

type crashCommand struct{}

func (*crashCommand) GetOp() Op { return "crash" }
