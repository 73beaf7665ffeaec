package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/storage"
)

// ErrTitleRequired rejects tasks created or renamed with an empty title.
var ErrTitleRequired = errors.New("title must not be empty")

// TaskService is the CRUD facade over the tasks table.
type TaskService struct {
	*core
}

// GetAll returns every task visible under the caller's partition.
func (s *TaskService) GetAll() ([]models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.ListTasks(s.store.Conn(), sc, storage.TaskFilter{})
}

// GetByID returns one task, or storage.ErrNotFound when the id is absent
// or outside the caller's partition.
func (s *TaskService) GetByID(id string) (*models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.GetTask(s.store.Conn(), sc, id)
}

// GetByStatus returns the caller's tasks with the given status.
func (s *TaskService) GetByStatus(status models.TaskStatus) ([]models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.ListTasks(s.store.Conn(), sc, storage.TaskFilter{Status: status})
}

// GetByProject returns the caller's tasks referencing the given project.
func (s *TaskService) GetByProject(projectID string) ([]models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	return storage.ListTasks(s.store.Conn(), sc, storage.TaskFilter{ProjectID: projectID})
}

// Search returns tasks whose title or description contains text,
// case-insensitively. The match runs in memory over the partition-scoped
// result set; there is no full-text index.
func (s *TaskService) Search(text string) ([]models.Task, error) {
	tasks, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)
	var out []models.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Add creates a task. Identity, timestamps, and partition attributes are
// stamped here; callers never supply them. A project reference must point
// to an existing project in the caller's partition at write time.
func (s *TaskService) Add(t models.Task) (*models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Title) == "" {
		return nil, ErrTitleRequired
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}

	now := time.Now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Demo = sc.Demo
	t.OwnerID = sc.OwnerID

	err = s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if t.ProjectID != "" {
			if _, err := storage.GetProject(tx, sc, t.ProjectID); err != nil {
				return fmt.Errorf("project reference: %w", err)
			}
		}
		if err := storage.InsertTask(tx, &t); err != nil {
			return err
		}
		return s.enqueue(tx, sc, models.OpCreate, models.EntityTask, t.ID, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskPatch is a partial task update. Nil fields are left unchanged; a
// non-nil empty ProjectID or AssigneeID clears the reference.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     *time.Time
	ProjectID   *string
	AssigneeID  *string
}

// Update merges the patch over the stored task inside one transaction.
// The record's partition attributes are preserved; a task outside the
// caller's partition reports storage.ErrNotFound.
func (s *TaskService) Update(id string, patch TaskPatch) (*models.Task, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}

	var updated *models.Task
	err = s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		t, err := storage.GetTask(tx, sc, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			if strings.TrimSpace(*patch.Title) == "" {
				return ErrTitleRequired
			}
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = *patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.DueDate != nil {
			t.DueDate = patch.DueDate
		}
		if patch.ProjectID != nil {
			if *patch.ProjectID != "" {
				if _, err := storage.GetProject(tx, sc, *patch.ProjectID); err != nil {
					return fmt.Errorf("project reference: %w", err)
				}
			}
			t.ProjectID = *patch.ProjectID
		}
		if patch.AssigneeID != nil {
			t.AssigneeID = *patch.AssigneeID
		}
		t.UpdatedAt = bumpedNow(t.UpdatedAt)

		if err := storage.UpdateTask(tx, t); err != nil {
			return err
		}
		updated = t
		return s.enqueue(tx, sc, models.OpUpdate, models.EntityTask, t.ID, t)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a task and mirrors the deletion to the outbox.
func (s *TaskService) Delete(id string) error {
	sc, err := s.scopes.Scope()
	if err != nil {
		return err
	}
	return s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if err := storage.DeleteTask(tx, sc, id); err != nil {
			return err
		}
		return s.enqueue(tx, sc, models.OpDelete, models.EntityTask, id, deleteRef{ID: id})
	})
}
