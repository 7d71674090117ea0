package daily

import (
	"context"
	"errors"
	"testing"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/geoguessr"
	"geodaily/internal/message"
	"geodaily/internal/provision"
	"geodaily/internal/slack"
	"geodaily/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	loaded  state.RunState
	loadErr error
	saved   []state.RunState
	saveErr error
}

func (f *fakeStore) Load(_ context.Context) (state.RunState, error) {
	return f.loaded, f.loadErr
}

func (f *fakeStore) Save(_ context.Context, s state.RunState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

type fakeResults struct {
	rows       []geoguessr.ResultRow
	err        error
	playedIDs  []string
	fetchedIDs []string
}

func (f *fakeResults) EnsurePlayed(_ context.Context, id string) error {
	f.playedIDs = append(f.playedIDs, id)
	return nil
}

func (f *fakeResults) Highscores(_ context.Context, id string, _, _ int) ([]geoguessr.ResultRow, error) {
	f.fetchedIDs = append(f.fetchedIDs, id)
	return f.rows, f.err
}

type fakeDetails struct {
	info geoguessr.Details
	err  error
}

func (f *fakeDetails) ChallengeDetails(_ context.Context, _ string) (geoguessr.Details, error) {
	return f.info, f.err
}

type fakeProvisioner struct {
	rec   provision.RunRecord
	err   error
	calls int
}

func (f *fakeProvisioner) Create(_ context.Context, access provision.Access) (provision.RunRecord, error) {
	f.calls++
	if f.err != nil {
		return provision.RunRecord{}, f.err
	}
	rec := f.rec
	rec.AccessLevel = access
	return rec, nil
}

type fakePoster struct {
	msgs     []slack.Message
	channels []string
	errs     []error // consumed per call, nil = success
}

func (f *fakePoster) PostMessage(_ context.Context, channelID string, msg slack.Message) error {
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err != nil {
		return err
	}
	f.channels = append(f.channels, channelID)
	f.msgs = append(f.msgs, msg)
	return nil
}

type fixture struct {
	store       *fakeStore
	results     *fakeResults
	details     *fakeDetails
	provisioner *fakeProvisioner
	poster      *fakePoster
	runner      *Runner
}

var testToday = time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

func newFixture(prior state.RunState) *fixture {
	f := &fixture{
		store:   &fakeStore{loaded: prior},
		results: &fakeResults{},
		details: &fakeDetails{info: geoguessr.Details{MapName: "World", Rounds: 5, TimeLimit: 90}},
		provisioner: &fakeProvisioner{rec: provision.RunRecord{
			RunID: "xyz789",
			URL:   "https://www.geoguessr.com/challenge/xyz789",
		}},
		poster: &fakePoster{},
	}
	formatter := message.NewFormatter(config.MessageConfig{
		Title:   "GeoGuessr - Softhouse Daily Challenge",
		MaxRows: 10,
	})
	f.runner = NewRunner(f.store, f.results, f.details, f.provisioner, f.poster, formatter,
		Options{ChannelID: "C123", Access: provision.AccessPrivate}, nil)
	f.runner.now = func() time.Time { return testToday }
	f.runner.sleep = func(context.Context, time.Duration) error { return nil }
	return f
}

func TestRun_FirstRunOfDay(t *testing.T) {
	f := newFixture(state.RunState{})

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhasePosted, out.Phase)
	assert.Equal(t, 1, out.Sequence)
	// No prior run means nothing to fetch results for.
	assert.Empty(t, f.results.fetchedIDs)
	require.Len(t, f.poster.msgs, 1)
	assert.NotContains(t, f.poster.msgs[0].Text, "#")
	require.Len(t, f.store.saved, 1)
	assert.Equal(t, state.RunState{
		LastRunID:   "xyz789",
		LastRunDate: "2026-08-23",
		Sequence:    1,
	}, f.store.saved[0])
}

func TestRun_SecondRunSameDay(t *testing.T) {
	f := newFixture(state.RunState{LastRunID: "abc123", LastRunDate: "2026-08-23", Sequence: 1})
	f.results.rows = []geoguessr.ResultRow{
		{Rank: 1, Name: "Ada", Result: "4820", TimeSeconds: 35.2},
	}

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, out.Sequence)
	assert.Equal(t, []string{"abc123"}, f.results.playedIDs)
	assert.Equal(t, []string{"abc123"}, f.results.fetchedIDs)

	require.Len(t, f.poster.msgs, 1)
	text := f.poster.msgs[0].Text
	assert.Contains(t, text, "GeoGuessr - Softhouse Daily Challenge 23/08/2026 #2")
	assert.Contains(t, text, "   1 | Ada                  |     4820 |   35.2")

	require.Len(t, f.store.saved, 1)
	assert.Equal(t, state.RunState{
		LastRunID:   "xyz789",
		LastRunDate: "2026-08-23",
		Sequence:    2,
	}, f.store.saved[0])
}

func TestRun_DateRolloverResetsSequence(t *testing.T) {
	f := newFixture(state.RunState{LastRunID: "abc123", LastRunDate: "2026-08-22", Sequence: 4})
	f.results.rows = []geoguessr.ResultRow{{Rank: 1, Name: "Ada", Result: "4820", TimeSeconds: 35.2}}

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, out.Sequence)
	// First run of a new day never carries a results block, so the
	// fetch is skipped even though the source has rows.
	assert.Empty(t, f.results.fetchedIDs)
	assert.NotContains(t, f.poster.msgs[0].Text, "Previous challenge results")
	assert.Equal(t, 1, f.store.saved[0].Sequence)
}

func TestRun_StateLoadFailureDegrades(t *testing.T) {
	f := newFixture(state.RunState{})
	f.store.loadErr = errors.New("disk on fire")

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, out.Sequence)
	assert.Equal(t, PhasePosted, out.Phase)
}

func TestRun_ResultsFailureDegrades(t *testing.T) {
	f := newFixture(state.RunState{LastRunID: "abc123", LastRunDate: "2026-08-23", Sequence: 1})
	f.results.err = errors.New("highscores 500")

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Sequence)
	assert.NotContains(t, f.poster.msgs[0].Text, "Previous challenge results")
}

func TestRun_DetailsFailureUsesDefaults(t *testing.T) {
	f := newFixture(state.RunState{})
	f.details.err = errors.New("details 500")

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, f.poster.msgs[0].Text, "Map: World")
	assert.Contains(t, f.poster.msgs[0].Text, "Rounds: 5")
}

func TestRun_ProvisioningFailureAborts(t *testing.T) {
	f := newFixture(state.RunState{LastRunID: "abc123", LastRunDate: "2026-08-23", Sequence: 1})
	f.provisioner.err = errors.New("all creators failed")

	out, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, out.Phase)
	assert.Empty(t, f.poster.msgs)
	// State must still describe the last announced run.
	assert.Empty(t, f.store.saved)
}

func TestRun_PostRetrySucceeds(t *testing.T) {
	f := newFixture(state.RunState{})
	f.poster.errs = []error{errors.New("slack 503"), nil}

	slept := false
	f.runner.sleep = func(context.Context, time.Duration) error {
		slept = true
		return nil
	}

	out, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, slept)
	assert.Equal(t, PhasePosted, out.Phase)
	assert.Len(t, f.poster.msgs, 1)
	assert.Len(t, f.store.saved, 1)
}

func TestRun_PostRetryExhaustedAborts(t *testing.T) {
	f := newFixture(state.RunState{})
	f.poster.errs = []error{errors.New("slack 503"), errors.New("slack 503")}

	out, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, out.Phase)
	assert.Empty(t, f.store.saved)
}

func TestRun_SaveFailureAfterPostIsHard(t *testing.T) {
	f := newFixture(state.RunState{})
	f.store.saveErr = errors.New("gist 401")

	out, err := f.runner.Run(context.Background())
	require.Error(t, err)
	// The message went out; only persistence failed.
	assert.Equal(t, PhasePosted, out.Phase)
	assert.Len(t, f.poster.msgs, 1)
}

func TestRun_FallbackProvisionedIDIsPersisted(t *testing.T) {
	f := newFixture(state.RunState{})
	f.provisioner.rec = provision.RunRecord{
		RunID:  "browser-tok",
		URL:    "https://www.geoguessr.com/challenge/browser-tok",
		Source: "browser",
	}

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "browser-tok", f.store.saved[0].LastRunID)
}

func TestRun_PriorStateWithoutIDSkipsResults(t *testing.T) {
	f := newFixture(state.RunState{LastRunDate: "2026-08-23", Sequence: 1})
	f.results.rows = []geoguessr.ResultRow{{Rank: 1, Name: "Ada", Result: "1", TimeSeconds: 1}}

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.results.fetchedIDs)
}
