package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/daily"
	"geodaily/internal/geoguessr"
	"geodaily/internal/message"
	"geodaily/internal/provision"
	"geodaily/internal/slack"
	"geodaily/internal/state"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// wiring bundles the collaborators every command builds from config.
type wiring struct {
	cfg       *config.Config
	geo       *geoguessr.Client
	slack     *slack.Client
	store     state.Store
	formatter *message.Formatter
}

func buildWiring(requireCreds bool) (*wiring, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if requireCreds {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	store, err := state.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure state store: %w", err)
	}

	return &wiring{
		cfg:       cfg,
		geo:       geoguessr.NewClient(cfg.GeoGuessr.BaseURL, cfg.GeoGuessr.Cookie, cfg.GetGeoGuessrTimeout(), logger),
		slack:     slack.NewClient(cfg.Slack.BaseURL, cfg.Slack.BotToken, cfg.GetSlackTimeout(), logger),
		store:     store,
		formatter: message.NewFormatter(cfg.Message),
	}, nil
}

func runDaily(cmd *cobra.Command, args []string) error {
	w, err := buildWiring(true)
	if err != nil {
		return err
	}
	cfg := w.cfg

	access, err := provision.ParseAccess(cfg.Challenge.AccessLevel)
	if err != nil {
		return err
	}

	creators := []provision.Creator{
		provision.NewAPICreator(w.geo, cfg.Challenge, logger),
	}
	if cfg.Browser.Enabled {
		creators = append(creators,
			provision.NewBrowserCreator(cfg.Browser, cfg.GeoGuessr.Cookie, cfg.Challenge.MapSlug, logger))
	}
	chain := provision.NewChain(logger, creators...)

	runner := daily.NewRunner(w.store, w.geo, w.geo, chain, w.slack, w.formatter,
		daily.Options{
			ChannelID:        cfg.Slack.ChannelID,
			Access:           access,
			HighscoreLimit:   cfg.Challenge.HighscoreLimit,
			HighscoreMinRnds: cfg.Challenge.HighscoreMinRnds,
			PostRetryBackoff: cfg.GetPostRetryBackoff(),
			Location:         cfg.Location(),
			DefaultRounds:    cfg.Challenge.Rounds,
			DefaultTimeLimit: cfg.Challenge.TimePerRound,
		}, logger)

	ctx := cmd.Context()
	out, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, geoguessr.ErrAuthRejected) {
			logger.Error("geoguessr cookie is stale; refresh GEOGUESSR_COOKIE")
		}
		if errors.Is(err, slack.ErrAuth) {
			logger.Error("slack token rejected; refresh SLACK_BOT_TOKEN")
		}
		return err
	}

	fmt.Printf("Posted daily challenge: %s\n", out.Record.URL)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	w, err := buildWiring(true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	failed := false

	nick, err := w.geo.ValidateCookie(ctx)
	switch {
	case errors.Is(err, geoguessr.ErrAuthRejected):
		fmt.Println("geoguessr: cookie expired or invalid")
		failed = true
	case err != nil:
		fmt.Printf("geoguessr: check failed: %v\n", err)
		failed = true
	case nick != "":
		fmt.Printf("geoguessr: cookie valid (user: %s)\n", nick)
	default:
		fmt.Println("geoguessr: cookie valid")
	}

	botID, err := w.slack.AuthTest(ctx)
	switch {
	case errors.Is(err, slack.ErrAuth):
		fmt.Println("slack: token rejected")
		failed = true
	case err != nil:
		fmt.Printf("slack: check failed: %v\n", err)
		failed = true
	default:
		fmt.Printf("slack: token valid (bot: %s)\n", botID)
	}

	if failed {
		return errors.New("credential validation failed")
	}
	return nil
}

func runResults(cmd *cobra.Command, args []string) error {
	w, err := buildWiring(!resultsDryRun)
	if err != nil {
		return err
	}
	cfg := w.cfg
	challengeID := args[0]

	ctx := cmd.Context()
	if err := w.geo.EnsurePlayed(ctx, challengeID); err != nil {
		logger.Warn("could not play challenge before fetching results", zap.Error(err))
	}
	rows, err := w.geo.Highscores(ctx, challengeID, cfg.Challenge.HighscoreLimit, cfg.Challenge.HighscoreMinRnds)
	if err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}
	if len(rows) == 0 {
		fmt.Println("No results for this challenge.")
		return nil
	}

	msg := w.formatter.FormatResultsOnly(rows, time.Now().In(cfg.Location()), challengeID)
	if resultsDryRun {
		fmt.Println(msg.Text)
		return nil
	}
	if err := w.slack.PostMessage(ctx, cfg.Slack.ChannelID, msg); err != nil {
		return fmt.Errorf("post results: %w", err)
	}
	fmt.Printf("Posted results for %s (%d rows)\n", challengeID, len(rows))
	return nil
}

func runShowState(cmd *cobra.Command, args []string) error {
	w, err := buildWiring(false)
	if err != nil {
		return err
	}

	s, err := w.store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if s.IsZero() {
		fmt.Println("No run recorded yet.")
		return nil
	}
	fmt.Printf("Last challenge: %s\nDate:           %s\nSequence:       %d\n",
		s.LastRunID, s.LastRunDate, s.Sequence)
	return nil
}
