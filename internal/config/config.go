package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all geodaily configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// GeoGuessr API access
	GeoGuessr GeoGuessrConfig `yaml:"geoguessr"`

	// Slack posting
	Slack SlackConfig `yaml:"slack"`

	// Run state persistence
	State StateConfig `yaml:"state"`

	// Challenge parameters
	Challenge ChallengeConfig `yaml:"challenge"`

	// Browser-automation fallback
	Browser BrowserConfig `yaml:"browser"`

	// Message rendering
	Message MessageConfig `yaml:"message"`
}

// GeoGuessrConfig configures the challenge-source API client.
type GeoGuessrConfig struct {
	Cookie  string `yaml:"cookie"` // _ncfa session cookie
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// SlackConfig configures the messaging channel client.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
	BaseURL   string `yaml:"base_url"`
	Timeout   string `yaml:"timeout"`

	// PostRetryBackoff is the wait before the single post retry.
	PostRetryBackoff string `yaml:"post_retry_backoff"`
}

// StateConfig configures where run state is persisted.
// Backend is one of: file, gist, sqlite.
type StateConfig struct {
	Backend      string `yaml:"backend"`
	FilePath     string `yaml:"file_path"`
	DatabasePath string `yaml:"database_path"`
	GistID       string `yaml:"gist_id"`
	GistToken    string `yaml:"gist_token"`
	GistBaseURL  string `yaml:"gist_base_url"`
	Timeout      string `yaml:"timeout"`
}

// ChallengeConfig configures the challenges geodaily creates.
type ChallengeConfig struct {
	MapSlug          string `yaml:"map_slug"`
	Rounds           int    `yaml:"rounds"`
	TimePerRound     int    `yaml:"time_per_round"` // seconds
	AccessLevel      string `yaml:"access_level"`   // public or private
	ForbidMoving     bool   `yaml:"forbid_moving"`
	ForbidRotating   bool   `yaml:"forbid_rotating"`
	ForbidZooming    bool   `yaml:"forbid_zooming"`
	AllowGuests      bool   `yaml:"allow_guests"`
	HighscoreLimit   int    `yaml:"highscore_limit"`
	HighscoreMinRnds int    `yaml:"highscore_min_rounds"`
}

// BrowserConfig configures the go-rod fallback creator.
type BrowserConfig struct {
	Enabled             bool   `yaml:"enabled"`
	Bin                 string `yaml:"bin"` // chromium binary, empty = rod default
	Headless            bool   `yaml:"headless"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// MessageConfig configures the posted message.
type MessageConfig struct {
	Title    string `yaml:"title"`
	MaxRows  int    `yaml:"max_rows"`
	Timezone string `yaml:"timezone"` // IANA name, empty = UTC
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "geodaily",
		Version: "1.0.0",

		GeoGuessr: GeoGuessrConfig{
			BaseURL: "https://www.geoguessr.com/api/v3",
			Timeout: "30s",
		},

		Slack: SlackConfig{
			BaseURL:          "https://slack.com/api",
			Timeout:          "30s",
			PostRetryBackoff: "5s",
		},

		State: StateConfig{
			Backend:     "file",
			FilePath:    ".daily_challenge_state",
			GistBaseURL: "https://api.github.com",
			Timeout:     "10s",
		},

		Challenge: ChallengeConfig{
			MapSlug:          "world",
			Rounds:           5,
			TimePerRound:     90,
			AccessLevel:      "private",
			AllowGuests:      false,
			HighscoreLimit:   26,
			HighscoreMinRnds: 5,
		},

		Browser: BrowserConfig{
			Enabled:             true,
			Headless:            true,
			NavigationTimeoutMs: 30000,
		},

		Message: MessageConfig{
			Title:   "GeoGuessr - Softhouse Daily Challenge",
			MaxRows: 10,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Env vars win over the config file so CI secrets never live on disk.
func (c *Config) applyEnvOverrides() {
	if cookie := os.Getenv("GEOGUESSR_COOKIE"); cookie != "" {
		c.GeoGuessr.Cookie = cookie
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		c.Slack.BotToken = token
	}
	if channel := os.Getenv("SLACK_CHANNEL_ID"); channel != "" {
		c.Slack.ChannelID = channel
	}

	// Gist credentials switch the state backend so a fresh CI runner
	// never falls back to an empty local file.
	gistID := os.Getenv("GITHUB_GIST_ID")
	gistToken := os.Getenv("GITHUB_TOKEN")
	if gistID != "" && gistToken != "" {
		c.State.Backend = "gist"
		c.State.GistID = gistID
		c.State.GistToken = gistToken
	}

	if path := os.Getenv("GEODAILY_STATE_DB"); path != "" {
		c.State.Backend = "sqlite"
		c.State.DatabasePath = path
	}
}

// Validate checks that required credentials are present for a run.
func (c *Config) Validate() error {
	if c.GeoGuessr.Cookie == "" {
		return fmt.Errorf("geoguessr cookie not set (GEOGUESSR_COOKIE)")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack bot token not set (SLACK_BOT_TOKEN)")
	}
	if c.Slack.ChannelID == "" {
		return fmt.Errorf("slack channel id not set (SLACK_CHANNEL_ID)")
	}
	return nil
}

// GetGeoGuessrTimeout returns the GeoGuessr HTTP timeout as a duration.
func (c *Config) GetGeoGuessrTimeout() time.Duration {
	d, err := time.ParseDuration(c.GeoGuessr.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetSlackTimeout returns the Slack HTTP timeout as a duration.
func (c *Config) GetSlackTimeout() time.Duration {
	d, err := time.ParseDuration(c.Slack.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetStateTimeout returns the state store timeout as a duration.
func (c *Config) GetStateTimeout() time.Duration {
	d, err := time.ParseDuration(c.State.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetPostRetryBackoff returns the wait before the single post retry.
func (c *Config) GetPostRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.Slack.PostRetryBackoff)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Location returns the timezone used for calendar-day arithmetic.
func (c *Config) Location() *time.Location {
	if c.Message.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Message.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
