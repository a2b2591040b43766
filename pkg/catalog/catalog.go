package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/itohio/loadrig/pkg/storage"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Entry is one recorded session.
type Entry struct {
	ID        string
	File      string
	StartedAt time.Time
	EndedAt   time.Time
	Rows      int
	Dropped   int
	Failed    bool
}

// Duration returns the wall-clock length of the session.
func (e Entry) Duration() time.Duration {
	return e.EndedAt.Sub(e.StartedAt)
}

// Catalog indexes session files in a SQLite database.
type Catalog struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ storage.Sink = (*Catalog)(nil)

// Open opens or creates the catalog database at path.
func Open(path string, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	c := &Catalog{db: db, logger: logger}
	if err := c.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  file TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  rows INTEGER NOT NULL,
  dropped INTEGER NOT NULL,
  failed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions(started_at);
`
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Record stores a session summary under a new ID.
func (c *Catalog) Record(ctx context.Context, s storage.Summary) (Entry, error) {
	const stmt = `
INSERT INTO sessions (id, file, started_at, ended_at, rows, dropped, failed)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	e := Entry{
		ID:        uuid.NewString(),
		File:      s.Name,
		StartedAt: s.Started,
		EndedAt:   s.Ended,
		Rows:      s.Rows,
		Dropped:   s.Dropped,
		Failed:    s.Failed,
	}
	_, err := c.db.ExecContext(ctx, stmt,
		e.ID,
		e.File,
		e.StartedAt.UTC().Format(timeLayout),
		e.EndedAt.UTC().Format(timeLayout),
		e.Rows,
		e.Dropped,
		e.Failed,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert session: %w", err)
	}
	return e, nil
}

// SessionClosed records s, logging failures. It lets the catalog act as the
// storage writer's sink.
func (c *Catalog) SessionClosed(s storage.Summary) {
	e, err := c.Record(context.Background(), s)
	if err != nil {
		c.logger.Error("[catalog] error recording session", zap.Error(err), zap.String("file", s.Name))
		return
	}
	c.logger.Debug("[catalog] session recorded", zap.String("id", e.ID), zap.String("file", e.File))
}

// List returns all sessions, oldest first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT id, file, started_at, ended_at, rows, dropped, failed
FROM sessions
ORDER BY started_at, file;
`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                  Entry
			startedAt, endedAt string
		)
		if err := rows.Scan(&e.ID, &e.File, &startedAt, &endedAt, &e.Rows, &e.Dropped, &e.Failed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if e.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", e.ID, err)
		}
		if e.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
			return nil, fmt.Errorf("parse ended_at of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded sessions.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
