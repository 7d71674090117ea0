// Package daily sequences one run of the challenge bot: load prior
// state, fetch the previous run's results, provision a new challenge,
// post the announcement, persist the new state.
package daily

import (
	"context"
	"fmt"
	"time"

	"geodaily/internal/geoguessr"
	"geodaily/internal/message"
	"geodaily/internal/provision"
	"geodaily/internal/slack"
	"geodaily/internal/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase is the orchestrator state. A run either walks Init →
// Provisioned → Posted or stops at Failed with no state persisted.
type Phase string

const (
	PhaseInit        Phase = "init"
	PhaseProvisioned Phase = "provisioned"
	PhasePosted      Phase = "posted"
	PhaseFailed      Phase = "failed"
)

// ResultsFetcher pulls the previous run's scoreboard.
type ResultsFetcher interface {
	EnsurePlayed(ctx context.Context, id string) error
	Highscores(ctx context.Context, id string, limit, minRounds int) ([]geoguessr.ResultRow, error)
}

// DetailsFetcher enriches the announcement with game settings.
type DetailsFetcher interface {
	ChallengeDetails(ctx context.Context, id string) (geoguessr.Details, error)
}

// Provisioner obtains the new challenge identifier.
type Provisioner interface {
	Create(ctx context.Context, access provision.Access) (provision.RunRecord, error)
}

// Poster delivers the announcement.
type Poster interface {
	PostMessage(ctx context.Context, channelID string, msg slack.Message) error
}

// Options configures a Runner.
type Options struct {
	ChannelID        string
	Access           provision.Access
	HighscoreLimit   int
	HighscoreMinRnds int
	PostRetryBackoff time.Duration
	Location         *time.Location

	// Defaults for the announcement when the details fetch fails.
	DefaultRounds    int
	DefaultTimeLimit int
}

// Outcome reports how a run ended.
type Outcome struct {
	Phase    Phase
	Sequence int
	Record   provision.RunRecord
	State    state.RunState
}

// Runner owns the read-modify-write cycle of the run state. One
// invocation, one logical thread; concurrent invocations may race on
// the sequence number, which is accepted (duplicate "#N" titles, never
// lost challenges).
type Runner struct {
	store       state.Store
	results     ResultsFetcher
	details     DetailsFetcher
	provisioner Provisioner
	poster      Poster
	formatter   *message.Formatter
	opts        Options
	logger      *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner wires the orchestrator.
func NewRunner(store state.Store, results ResultsFetcher, details DetailsFetcher,
	provisioner Provisioner, poster Poster, formatter *message.Formatter,
	opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PostRetryBackoff == 0 {
		opts.PostRetryBackoff = 5 * time.Second
	}
	if opts.DefaultRounds == 0 {
		opts.DefaultRounds = 5
	}
	if opts.DefaultTimeLimit == 0 {
		opts.DefaultTimeLimit = 90
	}
	return &Runner{
		store:       store,
		results:     results,
		details:     details,
		provisioner: provisioner,
		poster:      poster,
		formatter:   formatter,
		opts:        opts,
		logger:      logger.Named("daily"),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Run executes one complete daily run.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	log := r.logger.With(zap.String("run_id", uuid.NewString()))
	out := Outcome{Phase: PhaseInit}

	prior, err := r.store.Load(ctx)
	if err != nil {
		// Absent or unreadable state means "no prior run"; the run
		// itself must not die here.
		log.Warn("state load failed, assuming no prior run", zap.Error(err))
		prior = state.RunState{}
	}

	today := r.now().In(r.opts.Location)
	sequence := 1
	if prior.SameDay(today) {
		sequence = prior.Sequence + 1
	}
	out.Sequence = sequence
	log.Info("run starting",
		zap.String("date", today.Format(state.DateLayout)),
		zap.Int("sequence", sequence),
		zap.String("prior_run", prior.LastRunID))

	// Results attach to the run immediately before this one. After a
	// date rollover the prior run belongs to another day, so the
	// announcement carries no results block and we skip the fetch.
	var rows []geoguessr.ResultRow
	if sequence > 1 && prior.LastRunID != "" {
		rows = r.fetchResults(ctx, log, prior.LastRunID)
	}

	rec, err := r.provisioner.Create(ctx, r.opts.Access)
	if err != nil {
		out.Phase = PhaseFailed
		return out, fmt.Errorf("provision challenge: %w", err)
	}
	out.Phase = PhaseProvisioned
	out.Record = rec

	info := r.fetchDetails(ctx, log, rec.RunID)

	msg := r.formatter.Format(message.Input{
		Record:      rec,
		Info:        info,
		Sequence:    sequence,
		Today:       today,
		ResultsDate: today,
		Rows:        rows,
	})

	if err := r.post(ctx, log, msg); err != nil {
		// The fresh RunRecord is discarded: persisted state must only
		// ever describe a run that was actually announced.
		out.Phase = PhaseFailed
		return out, fmt.Errorf("post announcement: %w", err)
	}
	out.Phase = PhasePosted

	newState := state.RunState{
		LastRunID:   rec.RunID,
		LastRunDate: today.Format(state.DateLayout),
		Sequence:    sequence,
	}
	if err := r.store.Save(ctx, newState); err != nil {
		// The message is out but the next invocation will re-announce;
		// surface loudly so an operator can fix the medium.
		log.Error("state save failed after post", zap.Error(err))
		return out, fmt.Errorf("save state after post: %w", err)
	}
	out.State = newState

	log.Info("run posted",
		zap.String("challenge", rec.RunID),
		zap.String("source", rec.Source),
		zap.Int("sequence", sequence))
	return out, nil
}

// fetchResults degrades to no rows on any failure; a missing scoreboard
// never aborts the run.
func (r *Runner) fetchResults(ctx context.Context, log *zap.Logger, priorID string) []geoguessr.ResultRow {
	if err := r.results.EnsurePlayed(ctx, priorID); err != nil {
		log.Warn("could not play prior challenge", zap.String("challenge", priorID), zap.Error(err))
	}
	rows, err := r.results.Highscores(ctx, priorID, r.opts.HighscoreLimit, r.opts.HighscoreMinRnds)
	if err != nil {
		log.Warn("could not fetch prior challenge results",
			zap.String("challenge", priorID), zap.Error(err))
		return nil
	}
	return rows
}

// fetchDetails degrades to configured defaults.
func (r *Runner) fetchDetails(ctx context.Context, log *zap.Logger, id string) geoguessr.Details {
	info, err := r.details.ChallengeDetails(ctx, id)
	if err != nil {
		log.Warn("could not fetch challenge details, using defaults", zap.Error(err))
		return geoguessr.Details{
			MapName:   "World",
			Rounds:    r.opts.DefaultRounds,
			TimeLimit: r.opts.DefaultTimeLimit,
		}
	}
	if info.MapName == "" {
		info.MapName = "World"
	}
	if info.Rounds == 0 {
		info.Rounds = r.opts.DefaultRounds
	}
	return info
}

// post tries once, then retries once after the configured backoff.
func (r *Runner) post(ctx context.Context, log *zap.Logger, msg slack.Message) error {
	err := r.poster.PostMessage(ctx, r.opts.ChannelID, msg)
	if err == nil {
		return nil
	}
	log.Warn("post failed, retrying once",
		zap.Duration("backoff", r.opts.PostRetryBackoff), zap.Error(err))

	if serr := r.sleep(ctx, r.opts.PostRetryBackoff); serr != nil {
		return serr
	}
	return r.poster.PostMessage(ctx, r.opts.ChannelID, msg)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
