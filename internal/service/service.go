// Package service implements the entity storage services: scoped CRUD
// over the store that stamps identity and partition attributes, keeps
// multi-table invariants inside one transaction, and mirrors every
// eligible mutation into the outbox.
package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/outbox"
	"github.com/marcus/taskdock/internal/storage"
)

// ScopeResolver yields the caller's active partition scope. The session
// manager implements it; tests substitute fixed scopes.
type ScopeResolver interface {
	Scope() (storage.Scope, error)
}

// StaticScope is a fixed-scope resolver for tests and tooling.
type StaticScope storage.Scope

// Scope implements ScopeResolver.
func (s StaticScope) Scope() (storage.Scope, error) {
	return storage.Scope(s), nil
}

// Registry bundles the entity services over one store and scope source.
type Registry struct {
	Tasks    *TaskService
	Projects *ProjectService
	Settings *SettingsService
}

// New builds the service registry. eligible gates outbox writes: it
// reports whether this device should mirror mutations to the remote side
// at all (demo sessions are excluded separately, per scope). A nil
// eligible means always eligible.
func New(store *storage.Store, scopes ScopeResolver, eligible func() bool) *Registry {
	c := &core{store: store, scopes: scopes, eligible: eligible}
	return &Registry{
		Tasks:    &TaskService{c},
		Projects: &ProjectService{c},
		Settings: &SettingsService{c},
	}
}

type core struct {
	store    *storage.Store
	scopes   ScopeResolver
	eligible func() bool
}

// enqueue mirrors a mutation into the outbox inside the caller's
// transaction. Demo-partition mutations never sync; neither do mutations
// on a device that is not sync-eligible.
func (c *core) enqueue(tx storage.Querier, sc storage.Scope, op models.Operation, entity models.Entity, entityID string, payload any) error {
	if sc.Demo {
		return nil
	}
	if c.eligible != nil && !c.eligible() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", entity, err)
	}
	_, err = outbox.EnqueueTx(tx, op, entity, entityID, data, outbox.DefaultPriority)
	return err
}

// bumpedNow returns the current time, nudged forward if the clock has not
// advanced past the previous stamp, so updated_at strictly increases.
func bumpedNow(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

// deleteRef is the payload for delete operations: the remote side only
// needs the id.
type deleteRef struct {
	ID string `json:"id"`
}
