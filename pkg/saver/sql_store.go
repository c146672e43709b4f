package saver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS save_slots (
	namespace  TEXT    NOT NULL,
	slot       INTEGER NOT NULL,
	payload    BLOB    NOT NULL,
	updated_at TEXT    NOT NULL,
	PRIMARY KEY (namespace, slot)
)`

// SQLStore keeps slots in a save_slots table. Several players can share a
// database through distinct namespaces.
type SQLStore struct {
	db        *sql.DB
	namespace string
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

// OpenSQLite opens (creating if needed) a SQLite save database and applies
// the schema.
func OpenSQLite(ctx context.Context, path, namespace string) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := NewSQLStore(db, namespace)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the save_slots table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create save_slots: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Put(ctx context.Context, slot int, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO save_slots (namespace, slot, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		s.namespace, slot, payload, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLStore) Get(ctx context.Context, slot int) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM save_slots WHERE namespace = ? AND slot = ?`,
		s.namespace, slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSave
	}
	return payload, err
}

func (s *SQLStore) Delete(ctx context.Context, slot int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM save_slots WHERE namespace = ? AND slot = ?`,
		s.namespace, slot)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSave
	}
	return nil
}
