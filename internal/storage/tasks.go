package storage

import (
	"database/sql"
	"fmt"

	"github.com/marcus/taskdock/internal/models"
)

const taskSelectCols = `id, title, description, status, priority, due_date,
	project_id, assignee_id, created_at, updated_at, demo, owner_id`

// InsertTask writes a new task row. The caller stamps ids and timestamps.
func InsertTask(q Querier, t *models.Task) error {
	_, err := q.Exec(`
		INSERT INTO tasks (id, title, description, status, priority, due_date, project_id, assignee_id, created_at, updated_at, demo, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.ProjectID, t.AssigneeID, t.CreatedAt, t.UpdatedAt, t.Demo, t.OwnerID)
	return classify("insert task", err)
}

// GetTask retrieves a task visible under the scope. A task outside the
// caller's partition reports ErrNotFound, not an authorization failure.
func GetTask(q Querier, sc Scope, id string) (*models.Task, error) {
	where, args := sc.taskFilter()
	row := q.QueryRow(`SELECT `+taskSelectCols+` FROM tasks WHERE id = ? AND `+where,
		append([]any{id}, args...)...)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify("get task", err)
	}
	return t, nil
}

// UpdateTask rewrites a task row in place.
func UpdateTask(q Querier, t *models.Task) error {
	_, err := q.Exec(`
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
		                 due_date = ?, project_id = ?, assignee_id = ?, updated_at = ?
		WHERE id = ?
	`, t.Title, t.Description, t.Status, t.Priority, t.DueDate,
		t.ProjectID, t.AssigneeID, t.UpdatedAt, t.ID)
	return classify("update task", err)
}

// DeleteTask removes a task row visible under the scope. Deleting a row
// outside the scope is a no-op reported as ErrNotFound.
func DeleteTask(q Querier, sc Scope, id string) error {
	where, args := sc.taskFilter()
	res, err := q.Exec(`DELETE FROM tasks WHERE id = ? AND `+where,
		append([]any{id}, args...)...)
	if err != nil {
		return classify("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// TaskFilter narrows ListTasks beyond the partition scope.
type TaskFilter struct {
	Status    models.TaskStatus
	ProjectID string
}

// ListTasks returns all tasks visible under the scope, optionally
// filtered, ordered by creation time.
func ListTasks(q Querier, sc Scope, f TaskFilter) ([]models.Task, error) {
	where, args := sc.taskFilter()
	query := `SELECT ` + taskSelectCols + ` FROM tasks WHERE ` + where
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, f.ProjectID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, classify("list tasks", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTaskRows(rows)
		if err != nil {
			return nil, classify("scan task", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ReassignTaskOwner rewrites owner and assignee references from one user
// id to another. Used by guest-to-authenticated migration.
func ReassignTaskOwner(q Querier, fromUser, toUser string) error {
	if _, err := q.Exec(`UPDATE tasks SET owner_id = ? WHERE owner_id = ?`, toUser, fromUser); err != nil {
		return classify("reassign task owner", err)
	}
	if _, err := q.Exec(`UPDATE tasks SET assignee_id = ? WHERE assignee_id = ?`, toUser, fromUser); err != nil {
		return classify("reassign task assignee", err)
	}
	return nil
}

func scanTask(row *sql.Row) (*models.Task, error) {
	var t models.Task
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &due,
		&t.ProjectID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &t.Demo, &t.OwnerID)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	return &t, nil
}

func scanTaskRows(rows *sql.Rows) (*models.Task, error) {
	var t models.Task
	var due sql.NullTime
	err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &due,
		&t.ProjectID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt, &t.Demo, &t.OwnerID)
	if err != nil {
		return nil, err
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	return &t, nil
}
