package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps the run state in a single-row SQLite table. Suited
// to hosts where the bot shares a data directory with other tooling.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite state backend requires a database path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_run_id TEXT NOT NULL,
			last_run_date TEXT NOT NULL,
			sequence INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run_state table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger.Named("state")}, nil
}

// Load reads the single state row. An empty table yields the zero state.
func (s *SQLiteStore) Load(ctx context.Context) (RunState, error) {
	var st RunState
	err := s.db.QueryRowContext(ctx,
		`SELECT last_run_id, last_run_date, sequence FROM run_state WHERE id = 1`,
	).Scan(&st.LastRunID, &st.LastRunDate, &st.Sequence)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunState{}, nil
		}
		s.logger.Warn("state row unreadable, starting empty", zap.Error(err))
		return RunState{}, nil
	}
	return st, nil
}

// Save upserts the single state row.
func (s *SQLiteStore) Save(ctx context.Context, st RunState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_state (id, last_run_id, last_run_date, sequence)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_run_id = excluded.last_run_id,
			last_run_date = excluded.last_run_date,
			sequence = excluded.sequence`,
		st.LastRunID, st.LastRunDate, st.Sequence)
	if err != nil {
		return fmt.Errorf("save run state: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
