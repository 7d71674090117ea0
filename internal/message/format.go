// Package message renders the daily challenge announcement for Slack:
// title with the calendar date and repeat-run suffix, game settings,
// and the previous run's results as a fixed-column monospace table.
package message

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/geoguessr"
	"geodaily/internal/provision"
	"geodaily/internal/slack"
)

// Fixed column widths: Rank | Name | Result | Time(s).
const (
	widthRank   = 4
	widthName   = 20
	widthResult = 8
	widthTime   = 6
)

// TitleDateLayout is the human-facing date in the message title.
const TitleDateLayout = "02/01/2006"

// Formatter renders messages per the configured title and row cap.
type Formatter struct {
	cfg config.MessageConfig
}

// NewFormatter creates a Formatter.
func NewFormatter(cfg config.MessageConfig) *Formatter {
	if cfg.Title == "" {
		cfg.Title = "GeoGuessr Daily Challenge"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10
	}
	return &Formatter{cfg: cfg}
}

// Input carries everything one announcement needs.
type Input struct {
	Record      provision.RunRecord
	Info        geoguessr.Details
	Sequence    int
	Today       time.Time
	ResultsDate time.Time // day of the run the results belong to
	Rows        []geoguessr.ResultRow
}

// Title builds the message title: base + date, with " #N" appended only
// for repeat runs within the same day.
func (f *Formatter) Title(today time.Time, sequence int) string {
	title := fmt.Sprintf("%s %s", f.cfg.Title, today.Format(TitleDateLayout))
	if sequence > 1 {
		title += fmt.Sprintf(" #%d", sequence)
	}
	return title
}

// Format renders the full announcement. The results block is included
// only when rows are present; rows belong to the run immediately before
// this one, never to an arbitrary lookback window.
func (f *Formatter) Format(in Input) slack.Message {
	title := f.Title(in.Today, in.Sequence)
	info := in.Info
	if info.MapName == "" {
		info.MapName = "World"
	}

	timeStr := "No time limit"
	if info.TimeLimit > 0 {
		timeStr = fmt.Sprintf("%dm %ds per round", info.TimeLimit/60, info.TimeLimit%60)
	}
	moves := "Unlimited"
	if info.MoveLimit > 0 {
		moves = strconv.Itoa(info.MoveLimit)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n\nMap: %s\nTime: %s\nRounds: %d\nMoves: %s\n\nPlay here: %s",
		title, info.MapName, timeStr, info.Rounds, moves, in.Record.URL)

	blocks := []slack.Block{
		{
			Type: "header",
			Text: &slack.Text{Type: "plain_text", Text: title},
		},
		{
			Type: "section",
			Fields: []slack.Text{
				{Type: "mrkdwn", Text: "*Map:*\n" + info.MapName},
				{Type: "mrkdwn", Text: "*Time Limit:*\n" + timeStr},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Rounds:*\n%d", info.Rounds)},
				{Type: "mrkdwn", Text: "*Move Limit:*\n" + moves},
			},
		},
	}

	if len(in.Rows) > 0 {
		table := f.Table(in.Rows)
		resultsTitle := fmt.Sprintf("*📊 Previous challenge results* (%s)",
			in.ResultsDate.Format(TitleDateLayout))
		blocks = append(blocks, slack.Block{
			Type: "section",
			Text: &slack.Text{Type: "mrkdwn", Text: resultsTitle + "\n```\n" + table + "\n```"},
		})
		fmt.Fprintf(&text, "\n\n📊 Previous challenge results (%s):\n%s",
			in.ResultsDate.Format(TitleDateLayout), table)
	}

	blocks = append(blocks, slack.Block{
		Type: "actions",
		Elements: []slack.Element{{
			Type:  "button",
			Text:  &slack.Text{Type: "plain_text", Text: "Play Challenge"},
			URL:   in.Record.URL,
			Style: "primary",
		}},
	})

	return slack.Message{Text: text.String(), Blocks: blocks}
}

// FormatResultsOnly renders a standalone results message. Empty rows
// yield a zero message; callers should skip posting it.
func (f *Formatter) FormatResultsOnly(rows []geoguessr.ResultRow, day time.Time, challengeID string) slack.Message {
	if len(rows) == 0 {
		return slack.Message{}
	}
	title := fmt.Sprintf("*📊 Challenge Results* (%s)", day.Format(TitleDateLayout))
	if challengeID != "" {
		title += fmt.Sprintf(" - Challenge: `%s`", challengeID)
	}
	text := title + "\n```\n" + f.Table(rows) + "\n```"
	return slack.Message{
		Text: text,
		Blocks: []slack.Block{
			{Type: "section", Text: &slack.Text{Type: "mrkdwn", Text: text}},
		},
	}
}

// Table renders the fixed-column results table, rank ascending, capped
// at the configured row count.
func (f *Formatter) Table(rows []geoguessr.ResultRow) string {
	lines := []string{
		center("Rank", widthRank) + " | " + padRight("Name", widthName) + " | " +
			padLeft("Result", widthResult) + " | " + padLeft("Time(s)", widthTime),
		strings.Repeat("-", widthRank) + "-+-" + strings.Repeat("-", widthName) + "-+-" +
			strings.Repeat("-", widthResult) + "-+-" + strings.Repeat("-", widthTime),
	}
	for i, row := range rows {
		if i >= f.cfg.MaxRows {
			break
		}
		name := row.Name
		if len(name) > widthName {
			name = name[:widthName]
		}
		lines = append(lines,
			padLeft(strconv.Itoa(row.Rank), widthRank)+" | "+
				padRight(name, widthName)+" | "+
				padLeft(row.Result, widthResult)+" | "+
				padLeft(formatSeconds(row.TimeSeconds), widthTime))
	}
	return strings.Join(lines, "\n")
}

// formatSeconds renders a duration without a trailing ".0".
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	total := width - len(s)
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}
