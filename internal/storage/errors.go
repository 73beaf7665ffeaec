package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the storage failure taxonomy. Callers match with
// errors.Is; the original driver error text is preserved in the message so
// nothing is swallowed.
var (
	ErrConstraint       = errors.New("constraint violation")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrAccessRestricted = errors.New("storage access restricted")
	ErrNotFound         = errors.New("not found")
	ErrStaleSchema      = errors.New("database schema is newer than this build")
)

// classify maps a driver error onto the taxonomy, attaching the cause.
// SQLite surfaces these conditions only as message text, so matching is
// string-based.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed"):
		return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
	case strings.Contains(msg, "database or disk is full"):
		return fmt.Errorf("%s: %w: %v", op, ErrQuotaExceeded, err)
	case strings.Contains(msg, "readonly database") || strings.Contains(msg, "unable to open database") || strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%s: %w: %v", op, ErrAccessRestricted, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Remediation returns user-facing guidance for a storage failure, and
// whether a retry without reinitializing is worthwhile.
func Remediation(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return "local storage is full; free disk space and retry", true
	case errors.Is(err, ErrAccessRestricted):
		return "local storage is not writable; check directory permissions", true
	case errors.Is(err, ErrStaleSchema):
		return "data was written by a newer version; upgrade this binary", false
	case errors.Is(err, ErrConstraint):
		return "a record with this identity already exists", false
	default:
		return "unexpected storage failure", true
	}
}
