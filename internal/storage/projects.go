package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/marcus/taskdock/internal/models"
)

const projectSelectCols = `id, title, description, status, progress, start_date,
	end_date, team_members, created_at, updated_at, demo, owner_id`

// InsertProject writes a new project row.
func InsertProject(q Querier, p *models.Project) error {
	_, err := q.Exec(`
		INSERT INTO projects (id, title, description, status, progress, start_date, end_date, team_members, created_at, updated_at, demo, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, p.Status, models.ClampProgress(p.Progress),
		p.StartDate, p.EndDate, strings.Join(p.TeamMembers, ","),
		p.CreatedAt, p.UpdatedAt, p.Demo, p.OwnerID)
	return classify("insert project", err)
}

// GetProject retrieves a project visible under the scope.
func GetProject(q Querier, sc Scope, id string) (*models.Project, error) {
	where, args := sc.projectFilter()
	row := q.QueryRow(`SELECT `+projectSelectCols+` FROM projects WHERE id = ? AND `+where,
		append([]any{id}, args...)...)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify("get project", err)
	}
	return p, nil
}

// UpdateProject rewrites a project row in place.
func UpdateProject(q Querier, p *models.Project) error {
	_, err := q.Exec(`
		UPDATE projects SET title = ?, description = ?, status = ?, progress = ?,
		                    start_date = ?, end_date = ?, team_members = ?, updated_at = ?
		WHERE id = ?
	`, p.Title, p.Description, p.Status, models.ClampProgress(p.Progress),
		p.StartDate, p.EndDate, strings.Join(p.TeamMembers, ","), p.UpdatedAt, p.ID)
	return classify("update project", err)
}

// DeleteProject removes a project row visible under the scope.
func DeleteProject(q Querier, sc Scope, id string) error {
	where, args := sc.projectFilter()
	res, err := q.Exec(`DELETE FROM projects WHERE id = ? AND `+where,
		append([]any{id}, args...)...)
	if err != nil {
		return classify("delete project", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListProjects returns all projects visible under the scope, optionally
// filtered by status.
func ListProjects(q Querier, sc Scope, status models.ProjectStatus) ([]models.Project, error) {
	where, args := sc.projectFilter()
	query := `SELECT ` + projectSelectCols + ` FROM projects WHERE ` + where
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, classify("list projects", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, classify("scan project", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ReassignProjectOwner rewrites owner and team-member references from one
// user id to another. Used by guest-to-authenticated migration.
func ReassignProjectOwner(q Querier, fromUser, toUser string) error {
	if _, err := q.Exec(`UPDATE projects SET owner_id = ? WHERE owner_id = ?`, toUser, fromUser); err != nil {
		return classify("reassign project owner", err)
	}
	rows, err := q.Query(`SELECT id, team_members FROM projects WHERE (',' || team_members || ',') LIKE ?`,
		"%,"+fromUser+",%")
	if err != nil {
		return classify("find team memberships", err)
	}
	type member struct{ id, members string }
	var hits []member
	for rows.Next() {
		var m member
		if err := rows.Scan(&m.id, &m.members); err != nil {
			rows.Close()
			return classify("scan team membership", err)
		}
		hits = append(hits, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return classify("iterate team memberships", err)
	}

	for _, m := range hits {
		parts := strings.Split(m.members, ",")
		for i, p := range parts {
			if p == fromUser {
				parts[i] = toUser
			}
		}
		if _, err := q.Exec(`UPDATE projects SET team_members = ? WHERE id = ?`,
			strings.Join(parts, ","), m.id); err != nil {
			return classify("rewrite team members", err)
		}
	}
	return nil
}

type scanFn func(dest ...any) error

func scanProject(scan scanFn) (*models.Project, error) {
	var p models.Project
	var start, end sql.NullTime
	var members string
	err := scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.Progress, &start,
		&end, &members, &p.CreatedAt, &p.UpdatedAt, &p.Demo, &p.OwnerID)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		p.StartDate = &start.Time
	}
	if end.Valid {
		p.EndDate = &end.Time
	}
	if members != "" {
		p.TeamMembers = strings.Split(members, ",")
	}
	return &p, nil
}
