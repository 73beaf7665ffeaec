package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents task workflow state
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "inProgress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// TaskPriority represents task priority
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// ProjectStatus represents project lifecycle state
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "onHold"
	ProjectCompleted ProjectStatus = "completed"
)

// Provider identifies how a session was authenticated
type Provider string

const (
	ProviderEmail    Provider = "email"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderGuest    Provider = "guest"
	ProviderDemo     Provider = "demo"
)

// IsDemo reports whether the provider partitions against demo data.
func (p Provider) IsDemo() bool {
	return p == ProviderDemo
}

// Operation represents a pending remote operation type
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Entity identifies the entity type a queue item applies to
type Entity string

const (
	EntityTask     Entity = "task"
	EntityProject  Entity = "project"
	EntityUser     Entity = "user"
	EntitySettings Entity = "settings"
)

// Task represents a task record.
// ProjectID is a soft reference: it may be cleared when the project is
// deleted but is never enforced as a foreign key after the fact.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	ProjectID   string       `json:"project_id,omitempty"`
	AssigneeID  string       `json:"assignee_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Demo        bool         `json:"demo"`
	OwnerID     string       `json:"owner_id"`
}

// Project represents a project record.
// EndDate is not required to be after StartDate; the original system only
// checks that at the form layer, so the store does not reject it.
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"` // clamped to [0,100]
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	TeamMembers []string      `json:"team_members,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Demo        bool          `json:"demo"`
	OwnerID     string        `json:"owner_id"`
}

// Settings is the per-user preference record, one per partition/user.
type Settings struct {
	ID            string          `json:"id"`
	Theme         string          `json:"theme,omitempty"`
	Notifications bool            `json:"notifications"`
	AppPrefs      json.RawMessage `json:"app_prefs,omitempty"`
	Demo          bool            `json:"demo"`
	OwnerID       string          `json:"owner_id"`
}

// AuthSession represents an authentication session bound to a device.
type AuthSession struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Provider     Provider        `json:"provider"`
	DeviceID     string          `json:"device_id"`
	Demo         bool            `json:"demo"`
	LastActive   time.Time       `json:"last_active"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Expired reports whether the session's expiry has passed.
func (s *AuthSession) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// SyncQueueItem is one pending remote operation in the outbox.
type SyncQueueItem struct {
	ID          string          `json:"id"`
	Operation   Operation       `json:"operation"`
	Entity      Entity          `json:"entity"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	RetryCount  int             `json:"retry_count"`
	Priority    int             `json:"priority"`
	LastRetryAt *time.Time      `json:"last_retry_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
}

// ClampProgress clamps a progress value into [0,100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
