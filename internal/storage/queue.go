package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/taskdock/internal/models"
)

const queueSelectCols = `id, operation, entity, entity_id, payload,
	enqueued_at, retry_count, priority, last_retry_at, last_error`

// UpsertQueueItem inserts a queue item, replacing any existing item with
// the same id. Replacement refreshes payload and enqueue time and resets
// retry bookkeeping, which is how update/delete coalescing works.
func UpsertQueueItem(q Querier, item *models.SyncQueueItem) error {
	_, err := q.Exec(`
		INSERT OR REPLACE INTO sync_queue (id, operation, entity, entity_id, payload, enqueued_at, retry_count, priority, last_retry_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Operation, item.Entity, item.EntityID, string(item.Payload),
		item.EnqueuedAt, item.RetryCount, item.Priority, item.LastRetryAt, item.LastError)
	return classify("upsert queue item", err)
}

// GetQueueItem looks up one queue item by id.
func GetQueueItem(q Querier, id string) (*models.SyncQueueItem, error) {
	row := q.QueryRow(`SELECT `+queueSelectCols+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanQueueItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify("get queue item", err)
	}
	return item, nil
}

// ListQueueItems returns all pending items in drain order: priority
// descending, then enqueue time ascending for fairness within a band.
func ListQueueItems(q Querier) ([]models.SyncQueueItem, error) {
	rows, err := q.Query(`SELECT ` + queueSelectCols + `
		FROM sync_queue ORDER BY priority DESC, enqueued_at ASC`)
	if err != nil {
		return nil, classify("list queue items", err)
	}
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows.Scan)
		if err != nil {
			return nil, classify("scan queue item", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteQueueItem removes a queue item after a confirmed remote apply (or
// a permanently unrecoverable payload).
func DeleteQueueItem(q Querier, id string) error {
	_, err := q.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
	return classify("delete queue item", err)
}

// RecordQueueAttempt updates retry bookkeeping for a failed item.
func RecordQueueAttempt(q Querier, id string, retryCount int, at time.Time, lastError string) error {
	_, err := q.Exec(`UPDATE sync_queue SET retry_count = ?, last_retry_at = ?, last_error = ? WHERE id = ?`,
		retryCount, at, lastError, id)
	return classify("record queue attempt", err)
}

// QueueStats aggregates queue contents for observability.
type QueueStats struct {
	Pending     int                      `json:"pending"`
	Retrying    int                      `json:"retrying"`
	OldestAt    *time.Time               `json:"oldest_at,omitempty"`
	ByEntity    map[models.Entity]int    `json:"by_entity"`
	ByOperation map[models.Operation]int `json:"by_operation"`
}

// GetQueueStats computes aggregate statistics over pending items.
func GetQueueStats(q Querier) (*QueueStats, error) {
	stats := &QueueStats{
		ByEntity:    make(map[models.Entity]int),
		ByOperation: make(map[models.Operation]int),
	}

	var oldest sql.NullTime
	err := q.QueryRow(`
		SELECT COUNT(*),
		       SUM(CASE WHEN retry_count > 0 THEN 1 ELSE 0 END),
		       MIN(enqueued_at)
		FROM sync_queue
	`).Scan(&stats.Pending, &sqlNullInt{&stats.Retrying}, &oldest)
	if err != nil {
		return nil, classify("queue stats", err)
	}
	if oldest.Valid {
		stats.OldestAt = &oldest.Time
	}

	rows, err := q.Query(`
		SELECT 'entity' AS category, entity AS value, COUNT(*) FROM sync_queue GROUP BY entity
		UNION ALL
		SELECT 'operation' AS category, operation AS value, COUNT(*) FROM sync_queue GROUP BY operation
	`)
	if err != nil {
		return nil, classify("queue stats breakdown", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, value string
		var count int
		if err := rows.Scan(&category, &value, &count); err != nil {
			return nil, classify("scan queue stats", err)
		}
		switch category {
		case "entity":
			stats.ByEntity[models.Entity(value)] = count
		case "operation":
			stats.ByOperation[models.Operation(value)] = count
		}
	}
	return stats, rows.Err()
}

// PurgeQueue deletes items enqueued before the cutoff, optionally
// restricted to an operation or entity, returning how many were removed.
func PurgeQueue(q Querier, before time.Time, op models.Operation, entity models.Entity) (int64, error) {
	query := `DELETE FROM sync_queue WHERE enqueued_at < ?`
	args := []any{before}
	if op != "" {
		query += " AND operation = ?"
		args = append(args, op)
	}
	if entity != "" {
		query += " AND entity = ?"
		args = append(args, entity)
	}
	res, err := q.Exec(query, args...)
	if err != nil {
		return 0, classify("purge queue", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// sqlNullInt scans a nullable integer aggregate into an int, treating
// NULL (empty table) as zero.
type sqlNullInt struct{ dst *int }

func (n *sqlNullInt) Scan(v any) error {
	if v == nil {
		*n.dst = 0
		return nil
	}
	switch x := v.(type) {
	case int64:
		*n.dst = int(x)
	case int:
		*n.dst = x
	default:
		return fmt.Errorf("unexpected aggregate type %T", v)
	}
	return nil
}

func scanQueueItem(scan scanFn) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	var lastRetry sql.NullTime
	var payload string
	err := scan(&item.ID, &item.Operation, &item.Entity, &item.EntityID, &payload,
		&item.EnqueuedAt, &item.RetryCount, &item.Priority, &lastRetry, &item.LastError)
	if err != nil {
		return nil, err
	}
	if lastRetry.Valid {
		item.LastRetryAt = &lastRetry.Time
	}
	item.Payload = []byte(payload)
	return &item, nil
}
