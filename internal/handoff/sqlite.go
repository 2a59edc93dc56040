// Package handoff persists selection handoffs so that an edit screen opened
// from a list can be reopened after the console restarts.
package handoff

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/mdconsole/internal/logging"
	"github.com/me/mdconsole/pkg/model"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS handoffs (
		key        TEXT PRIMARY KEY,
		workflow   TEXT NOT NULL,
		record_id  INTEGER NOT NULL,
		display    TEXT NOT NULL DEFAULT '{}',
		record     TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_handoffs_expires_at ON handoffs(expires_at)`,
}

// SQLiteStore implements listflow.HandoffStore on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithNow overrides the time source used for expiry.
func WithNow(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// Open opens (or creates) the handoff database at dbPath and creates its
// table. Use ":memory:" in tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate handoffs: %w", err)
		}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	s := &SQLiteStore{
		db:     db,
		logger: logger.With("component", "handoff"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Persist stores h under key, replacing any previous handoff.
func (s *SQLiteStore) Persist(ctx context.Context, key string, h *model.Handoff) error {
	s.logger.Debug("sql", "op", "upsert", "table", "handoffs", "key", key, "record_id", h.RecordID)

	display, err := json.Marshal(h.Display)
	if err != nil {
		return fmt.Errorf("marshal display: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO handoffs (key, workflow, record_id, display, record, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   workflow = excluded.workflow,
		   record_id = excluded.record_id,
		   display = excluded.display,
		   record = excluded.record,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		key, h.Workflow, h.RecordID, string(display), string(h.Record),
		h.CreatedAt.Unix(), h.ExpiresAt.Unix(),
	)
	return err
}

// Read returns the handoff stored under key, or nil if there is none or it
// has expired. Expired rows are removed.
func (s *SQLiteStore) Read(ctx context.Context, key string) (*model.Handoff, error) {
	s.logger.Debug("sql", "op", "select", "table", "handoffs", "key", key)

	var h model.Handoff
	var display, record string
	var createdAt, expiresAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT workflow, record_id, display, record, created_at, expires_at
		 FROM handoffs WHERE key = ?`, key,
	).Scan(&h.Workflow, &h.RecordID, &display, &record, &createdAt, &expiresAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h.CreatedAt = time.Unix(createdAt, 0)
	h.ExpiresAt = time.Unix(expiresAt, 0)
	if h.IsExpired(s.now()) {
		s.logger.Info("handoff expired", "key", key, "expired_at", h.ExpiresAt)
		return nil, s.Clear(ctx, key)
	}
	if err := json.Unmarshal([]byte(display), &h.Display); err != nil {
		return nil, fmt.Errorf("unmarshal display: %w", err)
	}
	h.Record = json.RawMessage(record)
	return &h, nil
}

// Clear removes the handoff stored under key.
func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	s.logger.Debug("sql", "op", "delete", "table", "handoffs", "key", key)

	_, err := s.db.ExecContext(ctx, `DELETE FROM handoffs WHERE key = ?`, key)
	return err
}

// List returns every unexpired handoff keyed by workflow key.
func (s *SQLiteStore) List(ctx context.Context) (map[string]*model.Handoff, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, workflow, record_id, display, record, created_at, expires_at
		 FROM handoffs WHERE expires_at >= ? ORDER BY created_at`, s.now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*model.Handoff)
	for rows.Next() {
		var key, display, record string
		var createdAt, expiresAt int64
		var h model.Handoff
		if err := rows.Scan(&key, &h.Workflow, &h.RecordID, &display, &record, &createdAt, &expiresAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(display), &h.Display); err != nil {
			return nil, fmt.Errorf("unmarshal display for %s: %w", key, err)
		}
		h.Record = json.RawMessage(record)
		h.CreatedAt = time.Unix(createdAt, 0)
		h.ExpiresAt = time.Unix(expiresAt, 0)
		out[key] = &h
	}
	return out, rows.Err()
}

// DeleteExpired removes every expired handoff and reports how many went.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.logger.Debug("sql", "op", "delete_expired", "table", "handoffs")

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM handoffs WHERE expires_at < ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
