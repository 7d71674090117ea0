// Package slack is a minimal client for the Slack Web API methods the
// bot needs: chat.postMessage and auth.test.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrAuth marks a rejected or expired bot token.
var ErrAuth = errors.New("slack token rejected")

// authErrors are the Slack API error codes that indicate a bad token
// rather than a transient failure.
var authErrors = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"account_inactive": true,
	"token_revoked":    true,
	"token_expired":    true,
}

// Client posts messages via a bot token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a Slack client.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("slack"),
	}
}

// Message is a chat.postMessage payload: plain-text fallback plus
// optional Block Kit blocks.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is a single Block Kit block. Only the shapes the formatter
// emits are modeled.
type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Fields   []Text    `json:"fields,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type string `json:"type"` // plain_text or mrkdwn
	Text string `json:"text"`
}

// Element is a Block Kit action element (the play button).
type Element struct {
	Type  string `json:"type"`
	Text  *Text  `json:"text,omitempty"`
	URL   string `json:"url,omitempty"`
	Style string `json:"style,omitempty"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return fmt.Errorf("encode %s payload: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", method, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// PostMessage posts to a channel. API-level errors come back as Go
// errors; auth failures wrap ErrAuth.
func (c *Client) PostMessage(ctx context.Context, channelID string, msg Message) error {
	payload := struct {
		Channel string  `json:"channel"`
		Text    string  `json:"text"`
		Blocks  []Block `json:"blocks,omitempty"`
	}{Channel: channelID, Text: msg.Text, Blocks: msg.Blocks}

	var resp apiResponse
	if err := c.call(ctx, "chat.postMessage", payload, &resp); err != nil {
		return err
	}
	if !resp.OK {
		if authErrors[resp.Error] {
			return fmt.Errorf("chat.postMessage: %s: %w", resp.Error, ErrAuth)
		}
		return fmt.Errorf("chat.postMessage: %s", resp.Error)
	}
	return nil
}

// AuthTest verifies the bot token and returns the bot user id.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	var resp struct {
		apiResponse
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, "auth.test", struct{}{}, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		if authErrors[resp.Error] {
			return "", fmt.Errorf("auth.test: %s: %w", resp.Error, ErrAuth)
		}
		return "", fmt.Errorf("auth.test: %s", resp.Error)
	}
	return resp.UserID, nil
}
