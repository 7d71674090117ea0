// Package provision obtains a new challenge identifier. Two creation
// strategies implement the same contract: the v3 API (primary) and
// headless-browser automation (fallback when the API path breaks).
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Access is the challenge visibility.
type Access int

const (
	AccessPublic  Access = 0
	AccessPrivate Access = 1
)

// ParseAccess maps a config string onto an Access level.
func ParseAccess(s string) (Access, error) {
	switch s {
	case "public":
		return AccessPublic, nil
	case "", "private":
		return AccessPrivate, nil
	default:
		return AccessPrivate, fmt.Errorf("unknown access level: %q", s)
	}
}

func (a Access) String() string {
	if a == AccessPublic {
		return "public"
	}
	return "private"
}

// RunRecord is a freshly created challenge.
type RunRecord struct {
	RunID       string
	AccessLevel Access
	CreatedAt   time.Time
	URL         string
	Source      string // which creator produced it
}

// Creator is one creation strategy.
type Creator interface {
	// Name identifies the strategy in logs and RunRecord.Source.
	Name() string
	Create(ctx context.Context, access Access) (RunRecord, error)
}

// Chain tries creators in order, first success wins.
type Chain struct {
	creators []Creator
	logger   *zap.Logger
}

// NewChain builds a provisioning chain. Nil creators are skipped so a
// disabled fallback can simply be omitted.
func NewChain(logger *zap.Logger, creators ...Creator) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]Creator, 0, len(creators))
	for _, c := range creators {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Chain{creators: kept, logger: logger.Named("provision")}
}

// Create runs the chain. When every creator fails the joined error is
// returned; the run cannot proceed without a new identifier.
func (c *Chain) Create(ctx context.Context, access Access) (RunRecord, error) {
	if len(c.creators) == 0 {
		return RunRecord{}, errors.New("no creators configured")
	}

	var errs []error
	for _, creator := range c.creators {
		rec, err := creator.Create(ctx, access)
		if err == nil {
			rec.Source = creator.Name()
			c.logger.Info("challenge created",
				zap.String("source", rec.Source),
				zap.String("run_id", rec.RunID))
			return rec, nil
		}
		c.logger.Warn("creator failed, trying next",
			zap.String("source", creator.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", creator.Name(), err))
	}
	return RunRecord{}, fmt.Errorf("all creators failed: %w", errors.Join(errs...))
}
