// Package geoguessr is a client for the GeoGuessr v3 web API, driven by
// the _ncfa session cookie of a logged-in account.
package geoguessr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrAuthRejected marks a stale or invalid session cookie (401/403).
// It is surfaced distinctly so operators can tell "log in again" apart
// from transient network trouble.
var ErrAuthRejected = errors.New("geoguessr session cookie rejected")

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// FallbackMapID is used when neither the world map nor the community
// world map can be resolved.
const FallbackMapID = "62a44b22040f04bd36e8a914"

// Client calls the GeoGuessr v3 API.
type Client struct {
	baseURL string
	cookie  string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a client with the given _ncfa cookie.
func NewClient(baseURL, cookie string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://www.geoguessr.com/api/v3"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		cookie:  cookie,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("geoguessr"),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", "_ncfa="+c.cookie)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// statusErr converts a non-2xx status into an error, mapping auth
// rejections onto ErrAuthRejected.
func statusErr(op string, status int) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s: status %d: %w", op, status, ErrAuthRejected)
	}
	return fmt.Errorf("%s: status %d", op, status)
}

// ValidateCookie checks the session cookie and returns the account nick
// when it can be resolved.
func (c *Client) ValidateCookie(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/challenges/daily-challenges/today", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("validate cookie: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", statusErr("validate cookie", resp.StatusCode)
	}

	// Cookie works; the profile lookup is best effort.
	req, err = c.newRequest(ctx, http.MethodGet, "/accounts/profile", nil)
	if err != nil {
		return "", nil
	}
	profResp, err := c.client.Do(req)
	if err != nil {
		return "", nil
	}
	defer profResp.Body.Close()
	if profResp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, profResp.Body)
		return "", nil
	}
	var profile struct {
		Nick string `json:"nick"`
	}
	if err := json.NewDecoder(profResp.Body).Decode(&profile); err != nil {
		return "", nil
	}
	return profile.Nick, nil
}

// ResolveMapID looks up the map id for a slug, falling back to the
// community world map and finally a known-good id.
func (c *Client) ResolveMapID(ctx context.Context, slug string) string {
	for _, path := range []string{"/maps/" + slug, "/maps/a-community-world"} {
		req, err := c.newRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			continue
		}
		resp, err := c.client.Do(req)
		if err != nil {
			c.logger.Debug("map lookup failed", zap.String("path", path), zap.Error(err))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			continue
		}
		var m struct {
			ID string `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&m)
		resp.Body.Close()
		if err == nil && m.ID != "" {
			return m.ID
		}
	}
	c.logger.Warn("map lookup failed, using fallback map id", zap.String("slug", slug))
	return FallbackMapID
}

// Details describes a created challenge, for message enrichment.
type Details struct {
	MapName   string
	Rounds    int
	TimeLimit int // seconds per round
	MoveLimit int
}

// ChallengeDetails fetches map name and game settings for a challenge.
func (c *Client) ChallengeDetails(ctx context.Context, id string) (Details, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/challenges/"+id, nil)
	if err != nil {
		return Details{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Details{}, fmt.Errorf("challenge details: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return Details{}, statusErr("challenge details", resp.StatusCode)
	}

	var payload struct {
		Map struct {
			Name string `json:"name"`
		} `json:"map"`
		Challenge struct {
			TimeLimit  int `json:"timeLimit"`
			RoundCount int `json:"roundCount"`
			MoveLimit  int `json:"moveLimit"`
		} `json:"challenge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Details{}, fmt.Errorf("decode challenge details: %w", err)
	}
	return Details{
		MapName:   payload.Map.Name,
		Rounds:    payload.Challenge.RoundCount,
		TimeLimit: payload.Challenge.TimeLimit,
		MoveLimit: payload.Challenge.MoveLimit,
	}, nil
}
