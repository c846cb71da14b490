package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatlens/chatlens/internal/store"
)

func newTestHost(t *testing.T, timeout time.Duration) *Host {
	t.Helper()
	h := New(Options{DataDir: t.TempDir(), Timeout: timeout})
	t.Cleanup(func() { h.Close() })
	return h
}

func TestCallPing(t *testing.T) {
	h := newTestHost(t, 0)

	result, err := h.Call(context.Background(), &PingCommand{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result != "pong" {
		t.Errorf("result = %v, want pong", result)
	}
}

func TestCallRunsStoreOperations(t *testing.T) {
	h := newTestHost(t, 0)
	ctx := context.Background()

	result, err := h.Call(ctx, &ImportCommand{Payload: store.ParseResult{
		Meta:    store.ParsedMeta{Name: "chat", Platform: "wechat", Type: "group"},
		Members: []store.ParsedMember{{PlatformID: "u1", Name: "Alice"}},
		Messages: []store.ParsedMessage{{
			SenderPlatformID: "u1",
			SenderName:       "Alice",
			Timestamp:        1700000000,
			Type:             store.MessageText,
			Content:          "hello",
		}},
	}})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	sessionID, ok := result.(string)
	if !ok || sessionID == "" {
		t.Fatalf("import result = %v", result)
	}

	listed, err := h.Call(ctx, &ListSessionsCommand{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	sessions, _ := listed.([]store.SessionInfo)
	if len(sessions) != 1 || sessions[0].ID != sessionID {
		t.Errorf("sessions = %+v", sessions)
	}

	get := &GetSessionCommand{}
	get.SessionID = sessionID
	info, err := h.Call(ctx, get)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if si, _ := info.(*store.SessionInfo); si == nil || si.MessageCount != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestCallTimeoutFreesSlot(t *testing.T) {
	h := newTestHost(t, 50*time.Millisecond)
	ctx := context.Background()

	_, err := h.Call(ctx, &sleepCommand{d: time.Second})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	// The worker finishes the stale operation, discards its late response,
	// and keeps serving.
	deadline := time.After(3 * time.Second)
	for {
		result, err := h.Call(ctx, &PingCommand{})
		if err == nil && result == "pong" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not recover after timeout: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWorkerCrashRecovery(t *testing.T) {
	h := newTestHost(t, time.Second)
	ctx := context.Background()

	if _, err := h.Call(ctx, &PingCommand{}); err != nil {
		t.Fatalf("warmup ping failed: %v", err)
	}

	_, err := h.Call(ctx, &crashCommand{})
	if !errors.Is(err, ErrWorkerLost) {
		t.Fatalf("err = %v, want ErrWorkerLost", err)
	}

	// The next call lazily starts a fresh worker.
	result, err := h.Call(ctx, &PingCommand{})
	if err != nil {
		t.Fatalf("ping after crash failed: %v", err)
	}
	if result != "pong" {
		t.Errorf("result = %v, want pong", result)
	}
}

func TestCrashCleanupScopedToDeadWorker(t *testing.T) {
	// A dying worker's cleanup must only clear slots registered on that
	// incarnation. A slot on its successor stays live so the successor's
	// response still reaches the caller.
	h := New(Options{DataDir: t.TempDir()})

	dead := &worker{pending: map[string]chan Response{
		"old": make(chan Response, 1),
	}}
	fresh := &worker{pending: map[string]chan Response{
		"new": make(chan Response, 1),
	}}

	h.dropPending(dead)

	if len(dead.pending) != 0 {
		t.Errorf("dead worker slots not cleared: %v", dead.pending)
	}
	ch, ok := fresh.pending["new"]
	if !ok {
		t.Fatal("successor's pending slot was erased by the dead worker's cleanup")
	}
	h.deliver(fresh, Response{ID: "new", OK: true, Result: "pong"})
	select {
	case resp := <-ch:
		if !resp.OK || resp.Result != "pong" {
			t.Errorf("response = %+v", resp)
		}
	default:
		t.Error("response not delivered to successor's caller")
	}
}

func TestCallsDuringRepeatedCrashesNeverTimeOut(t *testing.T) {
	// Calls racing a crashing worker may see ErrWorkerLost, but must never
	// eat a timeout because a successor's slot was wiped by the old
	// worker's cleanup.
	h := newTestHost(t, 2*time.Second)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		go h.Call(ctx, &crashCommand{})
		for j := 0; j < 5; j++ {
			_, err := h.Call(ctx, &PingCommand{})
			if errors.Is(err, ErrTimeout) {
				t.Fatalf("iteration %d: ping timed out instead of completing or reporting worker loss", i)
			}
		}
	}
}

func TestCallContextCancellation(t *testing.T) {
	h := newTestHost(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.Call(ctx, &sleepCommand{d: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := New(Options{DataDir: t.TempDir()})
	if _, err := h.Call(context.Background(), &PingCommand{}); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestUnknownSessionOperationsAreEmptyNotFatal(t *testing.T) {
	h := newTestHost(t, 0)

	c := &MemberActivityCommand{}
	c.SessionID = "no-such-session"
	result, err := h.Call(context.Background(), c)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if rows, _ := result.([]store.MemberActivity); rows != nil {
		t.Errorf("expected empty result, got %+v", rows)
	}

	cl := &CloseSessionCommand{}
	cl.SessionID = "no-such-session"
	if _, err := h.Call(context.Background(), cl); err != nil {
		t.Errorf("closing an unopened session errored: %v", err)
	}
}
