// Package state persists the daily run record between invocations.
// Each invocation starts in a fresh process (cron, CI runner, dispatch),
// so the record lives in an external medium: a JSON file, a GitHub Gist,
// or a SQLite database.
package state

import (
	"context"
	"fmt"
	"time"

	"geodaily/internal/config"

	"go.uber.org/zap"
)

// DateLayout is the calendar-date format stored in RunState.
const DateLayout = "2006-01-02"

// RunState is the durable record of the last announced run.
// The zero value means "no prior run".
type RunState struct {
	LastRunID   string `json:"last_challenge_id"`
	LastRunDate string `json:"last_challenge_date"` // YYYY-MM-DD
	Sequence    int    `json:"challenges_today_count"`
}

// IsZero reports whether no prior run has been recorded.
func (s RunState) IsZero() bool {
	return s.LastRunID == "" && s.LastRunDate == "" && s.Sequence == 0
}

// SameDay reports whether the last run happened on the given day.
func (s RunState) SameDay(day time.Time) bool {
	return s.LastRunDate == day.Format(DateLayout)
}

// Store is the durable state medium contract. Load degrades to the zero
// state where the medium allows (missing or corrupt record); Save must
// surface failures so the orchestrator can abort without losing the
// previous record.
type Store interface {
	Load(ctx context.Context) (RunState, error)
	Save(ctx context.Context, s RunState) error
}

// FromConfig builds the configured store backend.
func FromConfig(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.State.Backend {
	case "", "file":
		return NewFileStore(cfg.State.FilePath, logger), nil
	case "gist":
		return NewGistStore(GistConfig{
			BaseURL: cfg.State.GistBaseURL,
			GistID:  cfg.State.GistID,
			Token:   cfg.State.GistToken,
			Timeout: cfg.GetStateTimeout(),
		}, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.State.DatabasePath, logger)
	default:
		return nil, fmt.Errorf("unknown state backend: %q", cfg.State.Backend)
	}
}
