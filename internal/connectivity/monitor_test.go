package connectivity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marcus/taskdock/internal/outbox"
)

// fakeDrainer counts drains and reports a scripted queue depth.
type fakeDrainer struct {
	mu      sync.Mutex
	drains  int
	pending int
	syncing bool
}

func (f *fakeDrainer) Drain(context.Context) (*outbox.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drains++
	return &outbox.Result{Success: true, Processed: f.pending}, nil
}

func (f *fakeDrainer) Pending() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending, nil
}

func (f *fakeDrainer) Syncing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncing
}

func (f *fakeDrainer) drainCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drains
}

func TestStartsOffline(t *testing.T) {
	m := New(&fakeDrainer{}, nil, Options{})
	if m.Online() {
		t.Error("monitor online before any signal")
	}
}

func TestOnlineTransitionDrains(t *testing.T) {
	q := &fakeDrainer{pending: 3}
	m := New(q, nil, Options{})

	m.SetOnline(context.Background(), true)
	if !m.Online() {
		t.Error("not online after signal")
	}
	if q.drainCount() != 1 {
		t.Errorf("drains = %d, want 1 on the offline-to-online edge", q.drainCount())
	}

	// Repeating the same state is not a transition.
	m.SetOnline(context.Background(), true)
	if q.drainCount() != 1 {
		t.Errorf("drains = %d after repeated online signal, want 1", q.drainCount())
	}

	// Going offline never drains.
	m.SetOnline(context.Background(), false)
	if q.drainCount() != 1 {
		t.Errorf("drains = %d after offline signal, want 1", q.drainCount())
	}

	// A second round trip drains again.
	m.SetOnline(context.Background(), true)
	if q.drainCount() != 2 {
		t.Errorf("drains = %d after second transition, want 2", q.drainCount())
	}
}

func TestOnChangeNotifications(t *testing.T) {
	m := New(&fakeDrainer{}, nil, Options{})

	var states []bool
	m.OnChange(func(online bool) { states = append(states, online) })

	m.SetOnline(context.Background(), true)
	m.SetOnline(context.Background(), true) // no transition, no callback
	m.SetOnline(context.Background(), false)

	want := []bool{true, false}
	if len(states) != len(want) {
		t.Fatalf("callbacks = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("callback %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestRunProbesAndSyncs(t *testing.T) {
	q := &fakeDrainer{pending: 1}
	var probeMu sync.Mutex
	reachable := true
	probe := func(context.Context) bool {
		probeMu.Lock()
		defer probeMu.Unlock()
		return reachable
	}
	m := New(q, probe, Options{ProbeInterval: 5 * time.Millisecond, SyncInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	defer m.Stop()

	waitFor(t, func() bool { return m.Online() }, "initial probe never flipped online")
	waitFor(t, func() bool { return q.drainCount() >= 2 }, "periodic sync never drained")

	probeMu.Lock()
	reachable = false
	probeMu.Unlock()
	waitFor(t, func() bool { return !m.Online() }, "failing probe never flipped offline")

	// Offline: the sync ticker must leave the queue alone.
	settled := q.drainCount()
	time.Sleep(50 * time.Millisecond)
	if q.drainCount() != settled {
		t.Errorf("drained %d times while offline", q.drainCount()-settled)
	}
}

func TestRunSkipsWhenNothingPending(t *testing.T) {
	q := &fakeDrainer{pending: 0}
	probe := func(context.Context) bool { return true }
	m := New(q, probe, Options{ProbeInterval: time.Hour, SyncInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	defer m.Stop()

	waitFor(t, func() bool { return m.Online() }, "initial probe never flipped online")
	time.Sleep(50 * time.Millisecond)
	// One drain from the offline-to-online edge; none from the empty-queue ticks.
	if n := q.drainCount(); n != 1 {
		t.Errorf("drains = %d, want only the transition drain", n)
	}
}

func TestRunSkipsWhileSyncing(t *testing.T) {
	q := &fakeDrainer{pending: 1, syncing: true}
	probe := func(context.Context) bool { return true }
	m := New(q, probe, Options{ProbeInterval: time.Hour, SyncInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	defer m.Stop()

	waitFor(t, func() bool { return m.Online() }, "initial probe never flipped online")
	time.Sleep(50 * time.Millisecond)
	if n := q.drainCount(); n != 1 {
		t.Errorf("drains = %d while a drain was already running, want 1", n)
	}
}

func TestStopEndsRun(t *testing.T) {
	m := New(&fakeDrainer{}, func(context.Context) bool { return false }, Options{})

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	m.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}
