package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const dbFile = "taskdock.db"

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Table operations accept it so they run either standalone or inside a
// transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// TxMode selects transaction behavior for With.
type TxMode int

const (
	// ReadOnly transactions always roll back; writes made inside them are
	// never committed.
	ReadOnly TxMode = iota
	ReadWrite
)

// Store wraps the local database connection. All multi-table invariants go
// through With so no reader observes a partial write.
type Store struct {
	conn    *sql.DB
	baseDir string

	// Serializes writers within the process; SQLite allows one writer and
	// the busy timeout alone makes contention errors user-visible.
	mu sync.Mutex
}

// Open opens an existing database and applies any pending migrations.
// A database written by a newer build fails with ErrStaleSchema so the
// host can prompt for an upgrade instead of corrupting data.
func Open(baseDir string) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found in %s: %w", baseDir, ErrNotFound)
	}
	return open(baseDir, false)
}

// Initialize creates the database (and its directory) if needed, then
// applies the schema and migrations.
func Initialize(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, classify("create data dir", err)
	}
	return open(baseDir, true)
}

func open(baseDir string, create bool) (*Store, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, classify("open database", err)
	}

	// WAL for concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, classify("enable WAL mode", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, classify("set busy timeout", err)
	}
	// Slightly faster writes, still safe with WAL
	conn.Exec("PRAGMA synchronous=NORMAL")

	s := &Store{conn: conn, baseDir: baseDir}

	if create {
		if _, err := conn.Exec(schema); err != nil {
			conn.Close()
			return nil, classify("create schema", err)
		}
	}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// BaseDir returns the directory holding the database file
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Conn exposes the underlying connection for read paths that do not need
// transaction scoping.
func (s *Store) Conn() Querier {
	return s.conn
}

// With runs fn inside one transaction. If fn returns an error the
// transaction rolls back and no partial writes are observable. ReadOnly
// transactions roll back unconditionally.
func (s *Store) With(mode TxMode, fn func(tx Querier) error) error {
	if mode == ReadWrite {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return classify("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if mode == ReadOnly {
		return tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return classify("commit transaction", err)
	}
	return nil
}

// SchemaVersionStored returns the schema version recorded in the database.
func (s *Store) SchemaVersionStored() (int, error) {
	var v string
	err := s.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		// Table might not exist yet on a pre-versioned database
		return 0, nil
	}
	var n int
	fmt.Sscanf(v, "%d", &n)
	return n, nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// migrate brings the schema up to SchemaVersion. Databases ahead of this
// build are refused.
func (s *Store) migrate() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return classify("create schema_info", err)
	}

	current, err := s.SchemaVersionStored()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("database at version %d, build supports %d: %w", current, SchemaVersion, ErrStaleSchema)
	}

	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if _, err := s.conn.Exec(m.SQL); err != nil {
			return classify(fmt.Sprintf("migration %d (%s)", m.Version, m.Description), err)
		}
		if err := s.setSchemaVersion(m.Version); err != nil {
			return classify(fmt.Sprintf("set version %d", m.Version), err)
		}
	}

	if current == 0 {
		if err := s.setSchemaVersion(SchemaVersion); err != nil {
			return classify("set schema version", err)
		}
	}
	return nil
}
