package service

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/marcus/taskdock/internal/models"
	"github.com/marcus/taskdock/internal/storage"
)

// SettingsService manages the singleton settings record per
// partition/user.
type SettingsService struct {
	*core
}

// defaultSettings are what a partition sees before anything is saved.
func defaultSettings(sc storage.Scope) *models.Settings {
	return &models.Settings{
		ID:            uuid.NewString(),
		Theme:         "system",
		Notifications: true,
		Demo:          sc.Demo,
		OwnerID:       sc.OwnerID,
	}
}

// Get returns the caller's settings, or in-memory defaults when nothing
// has been saved yet. Defaults are not persisted until Update runs.
func (s *SettingsService) Get() (*models.Settings, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}
	settings, err := storage.GetSettings(s.store.Conn(), sc)
	if errors.Is(err, storage.ErrNotFound) {
		return defaultSettings(sc), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// SettingsPatch is a partial settings update.
type SettingsPatch struct {
	Theme         *string
	Notifications *bool
	AppPrefs      json.RawMessage
}

// Update merges the patch over the stored (or default) settings and
// upserts the singleton row, mirroring the result to the outbox.
func (s *SettingsService) Update(patch SettingsPatch) (*models.Settings, error) {
	sc, err := s.scopes.Scope()
	if err != nil {
		return nil, err
	}

	var updated *models.Settings
	err = s.store.With(storage.ReadWrite, func(tx storage.Querier) error {
		settings, err := storage.GetSettings(tx, sc)
		if errors.Is(err, storage.ErrNotFound) {
			settings = defaultSettings(sc)
		} else if err != nil {
			return err
		}
		if patch.Theme != nil {
			settings.Theme = *patch.Theme
		}
		if patch.Notifications != nil {
			settings.Notifications = *patch.Notifications
		}
		if patch.AppPrefs != nil {
			settings.AppPrefs = patch.AppPrefs
		}
		if err := storage.PutSettings(tx, settings); err != nil {
			return err
		}
		updated = settings
		return s.enqueue(tx, sc, models.OpUpdate, models.EntitySettings, settings.ID, settings)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
