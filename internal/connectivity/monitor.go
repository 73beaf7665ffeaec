// Package connectivity watches online/offline transitions and drives the
// outbox: one drain on regaining connectivity, periodic drains while
// online, nothing while offline.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/taskdock/internal/outbox"
)

// Prober checks whether the remote side is reachable. The remote client's
// health check is the default implementation; tests use fakes.
type Prober func(ctx context.Context) bool

// Drainer is the slice of the outbox the monitor drives.
type Drainer interface {
	Drain(ctx context.Context) (*outbox.Result, error)
	Pending() (int, error)
	Syncing() bool
}

// Options tune monitor cadence. Zero values take the defaults.
type Options struct {
	ProbeInterval time.Duration // how often to re-check reachability
	SyncInterval  time.Duration // periodic drain cadence while online
}

const (
	defaultProbeInterval = 30 * time.Second
	defaultSyncInterval  = 5 * time.Minute
)

// Monitor is the two-state online/offline machine. Construct one per
// process and stop it at shutdown.
type Monitor struct {
	queue Drainer
	probe Prober
	opts  Options

	mu        sync.Mutex
	online    bool
	listeners []func(online bool)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a monitor. It starts in the Offline state until the first
// probe or signal says otherwise.
func New(queue Drainer, probe Prober, opts Options) *Monitor {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = defaultProbeInterval
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	return &Monitor{
		queue: queue,
		probe: probe,
		opts:  opts,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a callback fired on every connectivity transition.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// SetOnline feeds a platform connectivity signal into the state machine.
// The Offline-to-Online transition triggers one best-effort drain; a
// failed drain does not flip the state back.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(online)
	}
	if online {
		m.drain(ctx)
	}
}

// Run probes connectivity and schedules periodic drains until ctx is
// cancelled or Stop is called. Blocking; callers run it on a goroutine.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	// Initial probe so the state is meaningful immediately.
	m.SetOnline(ctx, m.probe(ctx))

	probeTick := time.NewTicker(m.opts.ProbeInterval)
	defer probeTick.Stop()
	syncTick := time.NewTicker(m.opts.SyncInterval)
	defer syncTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-probeTick.C:
			m.SetOnline(ctx, m.probe(ctx))
		case <-syncTick.C:
			if !m.Online() || m.queue.Syncing() {
				continue
			}
			pending, err := m.queue.Pending()
			if err != nil {
				slog.Warn("queue depth check", "err", err)
				continue
			}
			if pending > 0 {
				m.drain(ctx)
			}
		}
	}
}

// Stop ends Run and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func (m *Monitor) drain(ctx context.Context) {
	res, err := m.queue.Drain(ctx)
	if err != nil {
		slog.Warn("sync drain", "err", err)
		return
	}
	if res.InProgress {
		return
	}
	slog.Debug("sync drain finished",
		"success", res.Success, "processed", res.Processed, "failed", res.Failed)
}
