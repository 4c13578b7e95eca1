package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/grovetools/mirror/errors"
	"github.com/grovetools/mirror/pkg/models"

	_ "modernc.org/sqlite" // register sqlite driver
)

const tabSchema = `
CREATE TABLE IF NOT EXISTS tabs (
	workspace TEXT NOT NULL,
	position  INTEGER NOT NULL,
	id        TEXT NOT NULL,
	content   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (workspace, position)
);
CREATE TABLE IF NOT EXISTS active_tab (
	workspace  TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLiteStore is a Store backed by a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and runs
// schema migrations. Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, errors.StateIO(dbPath, fmt.Errorf("create state directory: %w", err))
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.StateIO(dbPath, fmt.Errorf("open sqlite db: %w", err))
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.StateIO(dbPath, fmt.Errorf("set WAL mode: %w", err))
	}

	if _, err := db.Exec(tabSchema); err != nil {
		db.Close()
		return nil, errors.StateIO(dbPath, fmt.Errorf("run schema migrations: %w", err))
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Load returns the state for workspace in tab order.
func (s *SQLiteStore) Load(workspace string) (models.TabState, error) {
	var st models.TabState

	rows, err := s.db.Query(`SELECT id, content FROM tabs WHERE workspace = ? ORDER BY position`, workspace)
	if err != nil {
		return st, errors.StateIO(s.path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec models.TabRecord
		if err := rows.Scan(&rec.ID, &rec.Content); err != nil {
			return st, errors.StateIO(s.path, err)
		}
		st.Tabs = append(st.Tabs, rec)
	}
	if err := rows.Err(); err != nil {
		return st, errors.StateIO(s.path, err)
	}

	err = s.db.QueryRow(`SELECT id FROM active_tab WHERE workspace = ?`, workspace).Scan(&st.ActiveID)
	if err != nil && err != sql.ErrNoRows {
		return st, errors.StateIO(s.path, err)
	}
	return st, nil
}

// Save replaces the state for workspace in one transaction.
func (s *SQLiteStore) Save(workspace string, st models.TabState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.StateIO(s.path, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tabs WHERE workspace = ?`, workspace); err != nil {
		return errors.StateIO(s.path, err)
	}
	if _, err := tx.Exec(`DELETE FROM active_tab WHERE workspace = ?`, workspace); err != nil {
		return errors.StateIO(s.path, err)
	}
	for i, rec := range st.Tabs {
		if _, err := tx.Exec(`INSERT INTO tabs (workspace, position, id, content) VALUES (?, ?, ?, ?)`,
			workspace, i, rec.ID, rec.Content); err != nil {
			return errors.StateIO(s.path, err)
		}
	}
	if st.ActiveID != "" {
		if _, err := tx.Exec(`INSERT INTO active_tab (workspace, id, updated_at) VALUES (?, ?, ?)`,
			workspace, st.ActiveID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return errors.StateIO(s.path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.StateIO(s.path, err)
	}
	return nil
}

// Workspaces lists the workspaces with saved tabs or an active tab.
func (s *SQLiteStore) Workspaces() ([]string, error) {
	rows, err := s.db.Query(`SELECT workspace FROM tabs UNION SELECT workspace FROM active_tab`)
	if err != nil {
		return nil, errors.StateIO(s.path, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ws string
		if err := rows.Scan(&ws); err != nil {
			return nil, errors.StateIO(s.path, err)
		}
		out = append(out, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StateIO(s.path, err)
	}
	return sortedStrings(out), nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sortedStrings(in []string) []string {
	sort.Strings(in)
	return in
}

var (
	_ Store = (*YAMLStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
