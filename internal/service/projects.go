package service

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/storage"
)

// ProjectService is the CRUD facade over the projects table.
type ProjectService struct {
	*core
}

// GetAll returns every project visible under the caller's partition.
func (s *ProjectService) GetAll() ([]models.Project, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.ListProjects(s.store.Conn(), sc, "")
}

// GetByID returns one project, or storage.ErrNotFound when the id is
// absent or outside the caller's partition.
func (s *ProjectService) GetByID(id string) (*models.Project, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.GetProject(s.store.Conn(), sc, id)
}

// GetByStatus returns the caller's projects with the given status.
func (s *ProjectService) GetByStatus(status models.ProjectStatus) ([]models.Project, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.ListProjects(s.store.Conn(), sc, status)
}

// Search returns projects whose title or description contains text,
// case-insensitively, matched in memory over the scoped result set.
func (s *ProjectService) Search(text string) ([]models.Project, error) {
	projects, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	var out []models.Project
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Add creates a project, stamping identity, timestamps, and partition
// attributes. End dates before start dates are accepted; that check lives
// in the form layer, not here.
func (s *ProjectService) Add(p models.Project) (*models.Project, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrTitleRequired
	}
	if p.Status == "" {
		p.Status = models.ProjectPlanning
	}
	p.Progress = models.ClampProgress(p.Progress)

	now := time.Now()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Demo = sc.Demo
	p.OwnerID = sc.OwnerID

	err = s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if err := storage.InsertProject(tx, &p); err != nil {
			return err
		}
		return s.enqueue(tx, sc, models.OpCreate, models.EntityProject, p.ID, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectPatch is a partial project update. A nil Progress derives the
// value from the project's current tasks instead of leaving it unchanged.
type ProjectPatch struct {
	Title       *string
	Description *string
	Status      *models.ProjectStatus
	Progress    *int
	StartDate   *time.Time
	EndDate     *time.Time
	TeamMembers *[]string
}

// Update merges the patch over the stored project inside one transaction.
// When no explicit progress is supplied it is recomputed as the done
// fraction of the project's tasks, 0 when the project has none.
func (s *ProjectService) Update(id string, patch ProjectPatch) (*models.Project, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}

	var updated *models.Project
	err = s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		p, err := storage.GetProject(tx, sc, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			if strings.TrimSpace(*patch.Title) == "" {
				return ErrTitleRequired
			}
			p.Title = *patch.Title
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Status != nil {
			p.Status = *patch.Status
		}
		if patch.StartDate != nil {
			p.StartDate = patch.StartDate
		}
		if patch.EndDate != nil {
			p.EndDate = patch.EndDate
		}
		if patch.TeamMembers != nil {
			p.TeamMembers = *patch.TeamMembers
		}
		if patch.Progress != nil {
			p.Progress = models.ClampProgress(*patch.Progress)
		} else {
			progress, err := deriveProgress(tx, sc, p.ID)
			if err != nil {
				return err
			}
			p.Progress = progress
		}
		p.UpdatedAt = bumpedNow(p.UpdatedAt)

		if err := storage.UpdateProject(tx, p); err != nil {
			return err
		}
		updated = p
		return s.enqueue(tx, sc, models.OpUpdate, models.EntityProject, p.ID, p)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a project and, in the same transaction, clears the
// project reference on every task that pointed at it. Each cascaded task
// gets its own updated_at bump and its own outbox entry; the local write
// is one atomic transaction that produces multiple queue items.
func (s *ProjectService) Delete(id string) error {
	sc, err := s.scopes.Scope()
	if err != nil {
		return err
	}
	return s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if _, err := storage.GetProject(tx, sc, id); err != nil {
			return err
		}

		tasks, err := storage.ListTasks(tx, sc, storage.TaskFilter{ProjectID: id})
		if err != nil {
			return err
		}
		for i := range tasks {
			t := &tasks[i]
			t.ProjectID = ""
			t.UpdatedAt = bumpedNow(t.UpdatedAt)
			if err := storage.UpdateTask(tx, t); err != nil {
				return err
			}
			if err := s.enqueue(tx, sc, models.OpUpdate, models.EntityTask, t.ID, t); err != nil {
				return err
			}
		}

		if err := storage.DeleteProject(tx, sc, id); err != nil {
			return err
		}
		return s.enqueue(tx, sc, models.OpDelete, models.EntityProject, id, deleteRef{ID: id})
	})
}

// deriveProgress computes round(100 * done / total) over the project's
// tasks within the same transaction as the project write.
func deriveProgress(tx storage.Querier, sc storage.Scope, projectID string) (int, error) {
	tasks, err := storage.ListTasks(tx, sc, storage.TaskFilter{ProjectID: projectID})
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	done := 0
	for _, t := range tasks {
		if t.Status == models.TaskDone {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(tasks)))), nil
}
