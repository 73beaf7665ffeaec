// Package session manages the authentication session lifecycle for one
// device: creation, lazy expiry, enumeration, termination, and the
// guest-to-authenticated data migration.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/storage"
)

// DefaultTTL is how long a session stays valid without re-authentication.
const DefaultTTL = 30 * 24 * time.Hour

var (
	// ErrNoSession means no current session exists on this device.
	ErrNoSession = errors.New("no active session")
	// ErrCurrentSession means the operation would terminate the device's
	// active session; only the logout path may do that.
	ErrCurrentSession = errors.New("cannot terminate the current session; log out instead")
)

// Manager owns session records in the store plus the device-scoped slots.
// One Manager is constructed per process and torn down at shutdown; tests
// build independent instances over temp dirs.
type Manager struct {
	store *storage.Store
	slots *Slots
	ttl   time.Duration
}

// NewManager creates a session manager. ttl <= 0 takes DefaultTTL.
func NewManager(store *storage.Store, slots *Slots, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, slots: slots, ttl: ttl}
}

// Create starts a new session for the user, marks it current for this
// device, and flags the device for demo partitioning when the provider is
// a demo account.
func (m *Manager) Create(userID, token string, provider models.Provider, refreshToken string) (*models.AuthSession, error) {
	deviceID, err := m.slots.DeviceID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expires := now.Add(m.ttl)
	sess := &models.AuthSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		Token:        token,
		RefreshToken: refreshToken,
		Provider:     provider,
		DeviceID:     deviceID,
		Demo:         provider.IsDemo(),
		LastActive:   now,
		ExpiresAt:    &expires,
	}

	err = m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.InsertSession(tx, sess)
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := m.slots.SetCurrent(sess.ID, sess.Demo); err != nil {
		return nil, fmt.Errorf("set current session: %w", err)
	}
	return sess, nil
}

// Current resolves the device's current session. An expired session is
// deleted and the pointer cleared as a side effect of the read; there is
// no background sweep.
func (m *Manager) Current() (*models.AuthSession, error) {
	id, err := m.slots.CurrentSessionID()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrNoSession
	}

	sess, err := storage.GetSession(m.store.Conn(), id)
	if errors.Is(err, storage.ErrNotFound) {
		// Pointer outlived the record, e.g. after a database reset.
		m.slots.ClearCurrent()
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	if sess.Expired(time.Now()) {
		if err := m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
			return storage.DeleteSession(tx, sess.ID)
		}); err != nil {
			slog.Warn("purge expired session", "session", sess.ID, "err", err)
		}
		if err := m.slots.ClearCurrent(); err != nil {
			slog.Warn("clear current pointer", "err", err)
		}
		return nil, ErrNoSession
	}
	return sess, nil
}

// Scope resolves the partition scope for the current session. Every
// entity service read and write goes through this.
func (m *Manager) Scope() (storage.Scope, error) {
	sess, err := m.Current()
	if err != nil {
		return storage.Scope{}, err
	}
	return storage.Scope{OwnerID: sess.UserID, Demo: sess.Demo}, nil
}

// UpdateActivity refreshes a session's last_active stamp. Intended to be
// called on user interaction, not on every request.
func (m *Manager) UpdateActivity(sessionID string) error {
	return m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.UpdateSessionActivity(tx, sessionID, time.Now())
	})
}

// List returns the user's non-expired sessions for a manage-devices view.
// Expired ones are excluded without being mutated; cleanup only happens
// through Current.
func (m *Manager) List(userID string) ([]models.AuthSession, error) {
	all, err := storage.ListSessionsByUser(m.store.Conn(), userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	live := all[:0]
	for _, s := range all {
		if !s.Expired(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// Terminate hard-deletes one session. The device's current session is
// refused; ending it is only valid through Logout.
func (m *Manager) Terminate(sessionID string) error {
	current, err := m.slots.CurrentSessionID()
	if err != nil {
		return err
	}
	if sessionID == current {
		return ErrCurrentSession
	}
	return m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.DeleteSession(tx, sessionID)
	})
}

// TerminateAll hard-deletes all of a user's sessions except the device's
// current one, returning how many were removed.
func (m *Manager) TerminateAll(userID string) (int, error) {
	current, _ := m.slots.CurrentSessionID()
	sessions, err := storage.ListSessionsByUser(m.store.Conn(), userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	err = m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		for _, s := range sessions {
			if s.ID == current {
				continue
			}
			if err := storage.DeleteSession(tx, s.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Logout ends the device's current session: the record is deleted and the
// current pointer and demo flag are cleared.
func (m *Manager) Logout() error {
	id, err := m.slots.CurrentSessionID()
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNoSession
	}
	if err := m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		return storage.DeleteSession(tx, id)
	}); err != nil {
		return err
	}
	return m.slots.ClearCurrent()
}

// MigrateGuestData reassigns everything the guest identity owns to the
// authenticated identity in one transaction, then removes the guest's
// sessions. Reassignments are no-ops on a second call, so invoking it
// once per login transition is safe.
func (m *Manager) MigrateGuestData(guestUserID, authenticatedUserID string) error {
	if guestUserID == "" || authenticatedUserID == "" || guestUserID == authenticatedUserID {
		return fmt.Errorf("invalid migration from %q to %q", guestUserID, authenticatedUserID)
	}
	return m.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		if err := storage.ReassignTaskOwner(tx, guestUserID, authenticatedUserID); err != nil {
			return err
		}
		if err := storage.ReassignProjectOwner(tx, guestUserID, authenticatedUserID); err != nil {
			return err
		}
		if _, err := storage.DeleteSessionsByUser(tx, guestUserID); err != nil {
			return err
		}
		return nil
	})
}
