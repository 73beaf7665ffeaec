// Package outbox is the durable queue of pending remote operations. Local
// mutations enqueue here and a drain delivers them at-least-once once
// connectivity allows.
package outbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/remote"
	"github.com/marcus/taskdock/internal/storage"
)

// DefaultMaxRetries bounds how often a failing item is reattempted before
// it is skipped and left for inspection.
const DefaultMaxRetries = 3

// DefaultItemDelay spaces out deliveries so a drain does not hammer the
// remote endpoint.
const DefaultItemDelay = 100 * time.Millisecond

// DefaultPriority is used when callers do not care about ordering bands.
const DefaultPriority = 1

// Options tune queue behavior. Zero values take the defaults above; a
// negative ItemDelay disables the inter-item delay entirely.
type Options struct {
	MaxRetries int
	ItemDelay  time.Duration
}

// Queue is the outbox. One Queue exists per store; its drain is
// serialized by an in-process flag so at most one runs at a time.
type Queue struct {
	store   *storage.Store
	apply   remote.Applier
	max     int
	delay   time.Duration
	syncing atomic.Bool
	sig     signals
}

// Result summarizes one drain pass.
type Result struct {
	Success    bool `json:"success"`
	Processed  int  `json:"processed"`
	Failed     int  `json:"failed"`
	InProgress bool `json:"in_progress,omitempty"`
}

// New creates a queue draining through the given applier.
func New(store *storage.Store, apply remote.Applier, opts Options) *Queue {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	} else if opts.ItemDelay == 0 {
		opts.ItemDelay = DefaultItemDelay
	}
	return &Queue{store: store, apply: apply, max: opts.MaxRetries, delay: opts.ItemDelay}
}

// OnSyncStarted registers a callback fired when a drain begins.
func (q *Queue) OnSyncStarted(fn func()) { q.sig.onStarted(fn) }

// OnSyncCompleted registers a callback fired when a drain finishes.
func (q *Queue) OnSyncCompleted(fn func(success bool)) { q.sig.onCompleted(fn) }

// OnSyncProgress registers a callback fired after each item.
func (q *Queue) OnSyncProgress(fn func(current, total int)) { q.sig.onProgress(fn) }

// OnReauthRequired registers a callback fired when the remote side
// reports stale credentials during a drain.
func (q *Queue) OnReauthRequired(fn func()) { q.sig.onReauth(fn) }

// ItemID computes the deterministic queue id for an operation. Updates
// and deletes share one id per (entity, entity id) so later operations
// coalesce into the existing pending item; creates always get a fresh id.
func ItemID(op models.Operation, entity models.Entity, entityID string) string {
	if op == models.OpCreate {
		return fmt.Sprintf("%s_%d_%s", entity, time.Now().UnixMilli(), randomSuffix())
	}
	return fmt.Sprintf("%s_%s", entity, entityID)
}

func randomSuffix() string {
	b := make([]byte, 3)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// EnqueueTx appends (or coalesces) an item inside an existing store
// transaction. Entity services use this so the queue entry commits
// atomically with the local write it mirrors.
func EnqueueTx(tx storage.Querier, op models.Operation, entity models.Entity, entityID string, payload json.RawMessage, priority int) (string, error) {
	item := &models.SyncQueueItem{
		ID:         ItemID(op, entity, entityID),
		Operation:  op,
		Entity:     entity,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
		Priority:   priority,
	}
	if err := storage.UpsertQueueItem(tx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

// Enqueue appends (or coalesces) an item in its own transaction.
func (q *Queue) Enqueue(op models.Operation, entity models.Entity, entityID string, payload json.RawMessage, priority int) (string, error) {
	var id string
	err := q.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		var err error
		id, err = EnqueueTx(tx, op, entity, entityID, payload, priority)
		return err
	})
	return id, err
}

// Drain attempts delivery of every currently-pending item, strictly in
// priority-then-age order. A drain already in progress is refused, not
// queued. Items enqueued while draining wait for the next pass.
func (q *Queue) Drain(ctx context.Context) (*Result, error) {
	if !q.syncing.CompareAndSwap(false, true) {
		return &Result{InProgress: true}, nil
	}
	defer q.syncing.Store(false)

	q.sig.emitStarted()
	res := &Result{}

	items, err := storage.ListQueueItems(q.store.Conn())
	if err != nil {
		q.sig.emitCompleted(false)
		return nil, fmt.Errorf("load pending items: %w", err)
	}

	total := len(items)
	for i, item := range items {
		if item.RetryCount >= q.max {
			// Skipped, not reattempted; kept for inspection.
			res.Failed++
			q.sig.emitProgress(i+1, total)
			continue
		}

		now := time.Now()
		if err := q.recordAttempt(item.ID, item.RetryCount, now, item.LastError); err != nil {
			slog.Warn("stamp retry time", "item", item.ID, "err", err)
		}

		err := q.apply(ctx, item.Operation, item.Entity, item.Payload)
		switch {
		case err == nil:
			if err := q.remove(item.ID); err != nil {
				slog.Warn("remove delivered item", "item", item.ID, "err", err)
				res.Failed++
			} else {
				res.Processed++
			}
		case errors.Is(err, remote.ErrValidation):
			// Structurally invalid payloads can never succeed; resolve
			// the item instead of retrying forever.
			slog.Warn("payload rejected, dropping item", "item", item.ID, "err", err)
			if rmErr := q.remove(item.ID); rmErr != nil {
				slog.Warn("remove rejected item", "item", item.ID, "err", rmErr)
			}
			res.Processed++
		case errors.Is(err, remote.ErrUnauthorized):
			if recErr := q.recordAttempt(item.ID, item.RetryCount+1, now, err.Error()); recErr != nil {
				slog.Warn("record auth failure", "item", item.ID, "err", recErr)
			}
			res.Failed++
			q.sig.emitReauth()
		default:
			if recErr := q.recordAttempt(item.ID, item.RetryCount+1, now, err.Error()); recErr != nil {
				slog.Warn("record failure", "item", item.ID, "err", recErr)
			}
			res.Failed++
		}

		q.sig.emitProgress(i+1, total)

		if q.delay > 0 && i < total-1 {
			select {
			case <-time.After(q.delay):
			case <-ctx.Done():
				res.Success = false
				q.sig.emitCompleted(false)
				return res, ctx.Err()
			}
		}
	}

	res.Success = res.Failed == 0
	q.sig.emitCompleted(res.Success)
	return res, nil
}

// Syncing reports whether a drain is currently running.
func (q *Queue) Syncing() bool {
	return q.syncing.Load()
}

// Stats returns aggregate queue statistics for observability.
func (q *Queue) Stats() (*storage.QueueStats, error) {
	return storage.GetQueueStats(q.store.Conn())
}

// Pending reports how many items are waiting.
func (q *Queue) Pending() (int, error) {
	stats, err := q.Stats()
	if err != nil {
		return 0, err
	}
	return stats.Pending, nil
}

// Purge deletes items enqueued before the cutoff, optionally restricted
// to an operation or entity. Bounds growth of permanently-failed items.
func (q *Queue) Purge(before time.Time, op models.Operation, entity models.Entity) (int64, error) {
	var n int64
	err := q.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		var err error
		n, err = storage.PurgeQueue(tx, before, op, entity)
		return err
	})
	return n, err
}

func (q *Queue) recordAttempt(id string, retryCount int, at time.Time, lastError string) error {
	return q.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.RecordQueueAttempt(tx, id, retryCount, at, lastError)
	})
}

func (q *Queue) remove(id string) error {
	return q.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.DeleteQueueItem(tx, id)
	})
}
