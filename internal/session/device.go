package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const deviceFileName = "device.json"

// deviceState is the device-scoped state kept outside the versioned
// database so it survives schema wipes and resets.
type deviceState struct {
	DeviceID         string `json:"device_id"`
	CurrentSessionID string `json:"current_session_id,omitempty"`
	Demo             bool   `json:"demo,omitempty"`
}

// Slots persists the device id and the current-session pointer as a small
// JSON file. Writes are atomic (temp file + rename); last writer wins.
type Slots struct {
	dir string
}

// NewSlots returns slot storage rooted at dir, creating it if needed.
func NewSlots(dir string) (*Slots, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create slots dir: %w", err)
	}
	return &Slots{dir: dir}, nil
}

func (s *Slots) path() string {
	return filepath.Join(s.dir, deviceFileName)
}

func (s *Slots) load() (*deviceState, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return &deviceState{}, nil
		}
		return nil, fmt.Errorf("read device state: %w", err)
	}
	var st deviceState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse device state: %w", err)
	}
	return &st, nil
}

func (s *Slots) save(st *deviceState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "device-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path())
}

// DeviceID returns the persistent device identifier, generating and
// storing one on first use.
func (s *Slots) DeviceID() (string, error) {
	st, err := s.load()
	if err != nil {
		return "", err
	}
	if st.DeviceID != "" {
		return st.DeviceID, nil
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	st.DeviceID = "dev-" + hex.EncodeToString(b)
	if err := s.save(st); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return st.DeviceID, nil
}

// CurrentSessionID returns the device's current-session pointer, or ""
// when no session is active.
func (s *Slots) CurrentSessionID() (string, error) {
	st, err := s.load()
	if err != nil {
		return "", err
	}
	return st.CurrentSessionID, nil
}

// SetCurrent marks a session as the device's current one and records
// whether it partitions against demo data.
func (s *Slots) SetCurrent(sessionID string, demo bool) error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.CurrentSessionID = sessionID
	st.Demo = demo
	return s.save(st)
}

// ClearCurrent drops the current-session pointer and the demo flag.
func (s *Slots) ClearCurrent() error {
	st, err := s.load()
	if err != nil {
		return err
	}
	st.CurrentSessionID = ""
	st.Demo = false
	return s.save(st)
}

// DemoDevice reports whether the device is flagged for demo data.
func (s *Slots) DemoDevice() (bool, error) {
	st, err := s.load()
	if err != nil {
		return false, err
	}
	return st.Demo, nil
}
