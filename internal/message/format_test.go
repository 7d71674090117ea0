package message

import (
	"strings"
	"testing"
	"time"

	"geodaily/internal/config"
	"geodaily/internal/geoguessr"
	"geodaily/internal/provision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatter() *Formatter {
	return NewFormatter(config.MessageConfig{
		Title:   "GeoGuessr - Softhouse Daily Challenge",
		MaxRows: 10,
	})
}

func TestTitle(t *testing.T) {
	f := testFormatter()
	day := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

	t.Run("first run of the day has no suffix", func(t *testing.T) {
		assert.Equal(t, "GeoGuessr - Softhouse Daily Challenge 23/08/2026", f.Title(day, 1))
	})

	t.Run("repeat runs are numbered", func(t *testing.T) {
		assert.Equal(t, "GeoGuessr - Softhouse Daily Challenge 23/08/2026 #2", f.Title(day, 2))
		assert.Equal(t, "GeoGuessr - Softhouse Daily Challenge 23/08/2026 #3", f.Title(day, 3))
	})
}

func TestFormat(t *testing.T) {
	f := testFormatter()
	day := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	in := Input{
		Record: provision.RunRecord{
			RunID: "xyz789",
			URL:   "https://www.geoguessr.com/challenge/xyz789",
		},
		Info:        geoguessr.Details{MapName: "World", Rounds: 5, TimeLimit: 90},
		Sequence:    1,
		Today:       day,
		ResultsDate: day,
	}

	t.Run("announcement without results", func(t *testing.T) {
		msg := f.Format(in)

		assert.Contains(t, msg.Text, "GeoGuessr - Softhouse Daily Challenge 23/08/2026")
		assert.NotContains(t, msg.Text, "#")
		assert.Contains(t, msg.Text, "Time: 1m 30s per round")
		assert.Contains(t, msg.Text, "https://www.geoguessr.com/challenge/xyz789")
		assert.NotContains(t, msg.Text, "Previous challenge results")

		// header + fields + actions, no results section
		require.Len(t, msg.Blocks, 3)
		assert.Equal(t, "header", msg.Blocks[0].Type)
		assert.Equal(t, "actions", msg.Blocks[2].Type)
		require.Len(t, msg.Blocks[2].Elements, 1)
		assert.Equal(t, in.Record.URL, msg.Blocks[2].Elements[0].URL)
	})

	t.Run("announcement with results", func(t *testing.T) {
		withRows := in
		withRows.Sequence = 2
		withRows.Rows = []geoguessr.ResultRow{
			{Rank: 1, Name: "Ada", Result: "4820", TimeSeconds: 35.2},
		}
		msg := f.Format(withRows)

		assert.Contains(t, msg.Text, "#2")
		assert.Contains(t, msg.Text, "Previous challenge results (23/08/2026)")
		assert.Contains(t, msg.Text, "Ada")
		require.Len(t, msg.Blocks, 4)
		assert.Equal(t, "section", msg.Blocks[2].Type)
		assert.Contains(t, msg.Blocks[2].Text.Text, "```")
	})

	t.Run("no time limit and move limit", func(t *testing.T) {
		alt := in
		alt.Info = geoguessr.Details{MapName: "World", Rounds: 3, TimeLimit: 0, MoveLimit: 2}
		msg := f.Format(alt)

		assert.Contains(t, msg.Text, "Time: No time limit")
		assert.Contains(t, msg.Text, "Moves: 2")
	})
}

func TestTable(t *testing.T) {
	f := testFormatter()

	t.Run("fixed column widths", func(t *testing.T) {
		table := f.Table([]geoguessr.ResultRow{
			{Rank: 1, Name: "Ada", Result: "4820", TimeSeconds: 35.2},
		})
		lines := strings.Split(table, "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "Rank | Name                 |   Result | Time(s)", lines[0])
		assert.Equal(t, "   1 | Ada                  |     4820 |   35.2", lines[2])
	})

	t.Run("long names are truncated", func(t *testing.T) {
		table := f.Table([]geoguessr.ResultRow{
			{Rank: 1, Name: "AVeryVeryLongPlayerNameIndeed", Result: "100", TimeSeconds: 5},
		})
		assert.Contains(t, table, "AVeryVeryLongPlayerN |")
	})

	t.Run("row cap applies", func(t *testing.T) {
		capped := NewFormatter(config.MessageConfig{Title: "T", MaxRows: 2})
		rows := []geoguessr.ResultRow{
			{Rank: 1, Name: "A", Result: "3"},
			{Rank: 2, Name: "B", Result: "2"},
			{Rank: 3, Name: "C", Result: "1"},
		}
		table := capped.Table(rows)
		assert.Contains(t, table, "B")
		assert.NotContains(t, table, "C ")
		assert.Len(t, strings.Split(table, "\n"), 4)
	})

	t.Run("whole seconds drop the decimal", func(t *testing.T) {
		table := f.Table([]geoguessr.ResultRow{
			{Rank: 1, Name: "A", Result: "10", TimeSeconds: 42},
		})
		assert.Contains(t, table, "|     42")
		assert.NotContains(t, table, "42.0")
	})
}

func TestFormatResultsOnly(t *testing.T) {
	f := testFormatter()
	day := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	t.Run("empty rows yield zero message", func(t *testing.T) {
		msg := f.FormatResultsOnly(nil, day, "abc")
		assert.Empty(t, msg.Text)
		assert.Empty(t, msg.Blocks)
	})

	t.Run("renders table and challenge id", func(t *testing.T) {
		msg := f.FormatResultsOnly([]geoguessr.ResultRow{
			{Rank: 1, Name: "Ada", Result: "4820", TimeSeconds: 35.2},
		}, day, "abc123")

		assert.Contains(t, msg.Text, "Challenge Results")
		assert.Contains(t, msg.Text, "23/08/2026")
		assert.Contains(t, msg.Text, "`abc123`")
		assert.Contains(t, msg.Text, "Ada")
	})
}
