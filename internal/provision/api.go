package provision

import (
	"context"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/geoguessr"

	"go.uber.org/zap"
)

// APICreator provisions challenges through the v3 REST API.
type APICreator struct {
	client *geoguessr.Client
	cfg    config.ChallengeConfig
	logger *zap.Logger
}

// NewAPICreator wraps a GeoGuessr client as a Creator.
func NewAPICreator(client *geoguessr.Client, cfg config.ChallengeConfig, logger *zap.Logger) *APICreator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APICreator{client: client, cfg: cfg, logger: logger.Named("provision")}
}

// Name implements Creator.
func (a *APICreator) Name() string { return "api" }

// Create implements Creator.
func (a *APICreator) Create(ctx context.Context, access Access) (RunRecord, error) {
	mapID := a.client.ResolveMapID(ctx, a.cfg.MapSlug)

	token, err := a.client.CreateChallenge(ctx, geoguessr.CreateRequest{
		MapID:          mapID,
		Rounds:         a.cfg.Rounds,
		TimeLimit:      a.cfg.TimePerRound,
		AccessLevel:    int(access),
		AllowGuests:    a.cfg.AllowGuests,
		ForbidMoving:   a.cfg.ForbidMoving,
		ForbidRotating: a.cfg.ForbidRotating,
		ForbidZooming:  a.cfg.ForbidZooming,
	})
	if err != nil {
		return RunRecord{}, err
	}

	return RunRecord{
		RunID:       token,
		AccessLevel: access,
		CreatedAt:   time.Now().UTC(),
		URL:         geoguessr.ChallengeURL(token),
	}, nil
}
