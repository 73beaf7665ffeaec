package session

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/storage"
)

func setupManager(t *testing.T, ttl time.Duration) (*Manager, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Initialize(dir)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	slots, err := NewSlots(dir)
	if err != nil {
		t.Fatalf("init slots: %v", err)
	}
	return NewManager(store, slots, ttl), store
}

func TestCreateAndCurrent(t *testing.T) {
	m, _ := setupManager(t, 0)

	sess, err := m.Create("alice", "tok-1", models.ProviderEmail, "refresh-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.DeviceID == "" {
		t.Error("device id not stamped")
	}
	if sess.Demo {
		t.Error("email session flagged demo")
	}
	if sess.ExpiresAt == nil || time.Until(*sess.ExpiresAt) < 29*24*time.Hour {
		t.Errorf("expiry = %v, want ~30 days out", sess.ExpiresAt)
	}

	got, err := m.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got.ID != sess.ID || got.UserID != "alice" || got.Token != "tok-1" {
		t.Errorf("current = %+v, want the created session", got)
	}

	sc, err := m.Scope()
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if sc.OwnerID != "alice" || sc.Demo {
		t.Errorf("scope = %+v", sc)
	}
}

func TestCurrentWithoutSession(t *testing.T) {
	m, _ := setupManager(t, 0)

	if _, err := m.Current(); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if _, err := m.Scope(); !errors.Is(err, ErrNoSession) {
		t.Errorf("scope err = %v, want ErrNoSession", err)
	}
}

func TestExpiredSessionPurgedLazily(t *testing.T) {
	m, store := setupManager(t, 10*time.Millisecond)

	sess, err := m.Create("alice", "tok", models.ProviderEmail, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := m.Current(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession for expired session", err)
	}
	// The read deleted the record and cleared the pointer.
	if _, err := storage.GetSession(store.Conn(), sess.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired record still stored: %v", err)
	}
	if id, _ := m.slots.CurrentSessionID(); id != "" {
		t.Errorf("current pointer = %q, want cleared", id)
	}
}

func TestDanglingPointerCleared(t *testing.T) {
	m, store := setupManager(t, 0)

	sess, err := m.Create("alice", "tok", models.ProviderEmail, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Simulate a database reset that outlives the pointer file.
	err = store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.DeleteSession(tx, sess.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := m.Current(); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if id, _ := m.slots.CurrentSessionID(); id != "" {
		t.Errorf("dangling pointer = %q, want cleared", id)
	}
}

func TestListExcludesExpiredWithoutDeleting(t *testing.T) {
	m, store := setupManager(t, 0)

	live, err := m.Create("alice", "tok-1", models.ProviderEmail, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	expired := &models.AuthSession{
		ID: "old", UserID: "alice", Token: "tok-0", Provider: models.ProviderEmail,
		DeviceID: "dev-x", LastActive: past, ExpiresAt: &past,
	}
	err = store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.InsertSession(tx, expired)
	})
	if err != nil {
		t.Fatalf("insert expired: %v", err)
	}

	sessions, err := m.List("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != live.ID {
		t.Errorf("list = %v, want only the live session", sessions)
	}
	// List is read-only; the expired row stays until Current sweeps it.
	if _, err := storage.GetSession(store.Conn(), "old"); err != nil {
		t.Errorf("expired row deleted by List: %v", err)
	}
}

func TestTerminateRefusesCurrent(t *testing.T) {
	m, _ := setupManager(t, 0)

	sess, err := m.Create("alice", "tok", models.ProviderEmail, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Terminate(sess.ID); !errors.Is(err, ErrCurrentSession) {
		t.Errorf("err = %v, want ErrCurrentSession", err)
	}
	if _, err := m.Current(); err != nil {
		t.Errorf("current session gone after refused terminate: %v", err)
	}
}

func TestTerminateAllSparesCurrent(t *testing.T) {
	m, store := setupManager(t, 0)

	current, err := m.Create("alice", "tok-cur", models.ProviderEmail, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, id := range []string{"other-1", "other-2"} {
		other := &models.AuthSession{
			ID: id, UserID: "alice", Token: "t", Provider: models.ProviderEmail,
			DeviceID: "dev-other", LastActive: time.Now(),
		}
		err = store.With(storage.ReadWrite, func(tx storage.Querier) error {
			return storage.InsertSession(tx, other)
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := m.TerminateAll("alice")
	if err != nil {
		t.Fatalf("terminate all: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got, err := m.Current(); err != nil || got.ID != current.ID {
		t.Errorf("current = %+v, %v, want survivor", got, err)
	}
}

func TestLogout(t *testing.T) {
	m, store := setupManager(t, 0)

	sess, err := m.Create("alice", "tok", models.ProviderDemo, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sess.Demo {
		t.Error("demo provider did not flag the session")
	}
	if demo, _ := m.slots.DemoDevice(); !demo {
		t.Error("device demo flag not set")
	}

	if err := m.Logout(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := m.Current(); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession after logout", err)
	}
	if _, err := storage.GetSession(store.Conn(), sess.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("session record survived logout: %v", err)
	}
	if demo, _ := m.slots.DemoDevice(); demo {
		t.Error("device demo flag survived logout")
	}

	if err := m.Logout(); !errors.Is(err, ErrNoSession) {
		t.Errorf("second logout err = %v, want ErrNoSession", err)
	}
}

func TestDeviceIDPersists(t *testing.T) {
	dir := t.TempDir()
	slots, err := NewSlots(dir)
	if err != nil {
		t.Fatalf("init slots: %v", err)
	}
	first, err := slots.DeviceID()
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	if first == "" {
		t.Fatal("empty device id")
	}

	// A fresh Slots over the same dir sees the same id.
	again, err := NewSlots(dir)
	if err != nil {
		t.Fatalf("reopen slots: %v", err)
	}
	second, err := again.DeviceID()
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	if second != first {
		t.Errorf("device id changed across reopen: %s vs %s", first, second)
	}
}

func TestMigrateGuestData(t *testing.T) {
	m, store := setupManager(t, 0)

	guest := &models.Task{
		ID: "t1", Title: "guest task", Status: models.TaskTodo, Priority: models.PriorityMedium,
		CreatedAt: time.Now(), UpdatedAt: time.Now(), OwnerID: "guest-1",
	}
	proj := &models.Project{
		ID: "p1", Title: "guest project", Status: models.ProjectPlanning,
		CreatedAt: time.Now(), UpdatedAt: time.Now(), OwnerID: "guest-1",
		TeamMembers: []string{"guest-1", "carol"},
	}
	guestSess := &models.AuthSession{
		ID: "s-guest", UserID: "guest-1", Token: "t", Provider: models.ProviderGuest,
		DeviceID: "dev-x", LastActive: time.Now(),
	}
	err := store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if err := storage.InsertTask(tx, guest); err != nil {
			return err
		}
		if err := storage.InsertProject(tx, proj); err != nil {
			return err
		}
		return storage.InsertSession(tx, guestSess)
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := m.MigrateGuestData("guest-1", "alice"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	aliceScope := storage.Scope{OwnerID: "alice"}
	task, err := storage.GetTask(store.Conn(), aliceScope, "t1")
	if err != nil {
		t.Fatalf("migrated task: %v", err)
	}
	if task.OwnerID != "alice" {
		t.Errorf("task owner = %s", task.OwnerID)
	}
	p, err := storage.GetProject(store.Conn(), aliceScope, "p1")
	if err != nil {
		t.Fatalf("migrated project: %v", err)
	}
	if p.OwnerID != "alice" {
		t.Errorf("project owner = %s", p.OwnerID)
	}
	for _, member := range p.TeamMembers {
		if member == "guest-1" {
			t.Errorf("team members still reference the guest: %v", p.TeamMembers)
		}
	}
	if _, err := storage.GetSession(store.Conn(), "s-guest"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("guest session survived migration: %v", err)
	}
}

func TestMigrateGuestDataValidation(t *testing.T) {
	m, _ := setupManager(t, 0)

	if err := m.MigrateGuestData("", "alice"); err == nil {
		t.Error("empty guest id accepted")
	}
	if err := m.MigrateGuestData("alice", "alice"); err == nil {
		t.Error("same-id migration accepted")
	}
}
