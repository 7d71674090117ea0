package geoguessr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// CreateRequest describes the challenge to create.
type CreateRequest struct {
	MapID          string
	Rounds         int
	TimeLimit      int // seconds per round
	MoveLimit      int // 0 = unlimited
	AccessLevel    int // 0 = public, 1 = private/invite-only
	AllowGuests    bool
	ForbidMoving   bool
	ForbidRotating bool
	ForbidZooming  bool
}

// payloadVariants returns the request bodies to try, in order. The
// challenge-creation endpoint has shifted field names over time, so a
// 400 on one shape falls through to the next.
func (r CreateRequest) payloadVariants() []map[string]interface{} {
	base := func() map[string]interface{} {
		m := map[string]interface{}{
			"map":         r.MapID,
			"timeLimit":   r.TimeLimit,
			"allowGuests": r.AllowGuests,
		}
		if r.MoveLimit > 0 {
			m["moveLimit"] = r.MoveLimit
		}
		return m
	}

	full := base()
	full["rounds"] = r.Rounds
	full["forbidMoving"] = r.ForbidMoving
	full["forbidRotating"] = r.ForbidRotating
	full["forbidZooming"] = r.ForbidZooming
	full["accessLevel"] = r.AccessLevel

	roundCount := base()
	roundCount["roundCount"] = r.Rounds
	roundCount["forbidMoving"] = r.ForbidMoving
	roundCount["forbidRotating"] = r.ForbidRotating
	roundCount["forbidZooming"] = r.ForbidZooming
	roundCount["accessLevel"] = r.AccessLevel

	minimal := base()
	minimal["rounds"] = r.Rounds
	minimal["accessLevel"] = r.AccessLevel

	noAccess := base()
	noAccess["rounds"] = r.Rounds
	noAccess["forbidMoving"] = r.ForbidMoving
	noAccess["forbidRotating"] = r.ForbidRotating
	noAccess["forbidZooming"] = r.ForbidZooming

	return []map[string]interface{}{full, roundCount, minimal, noAccess}
}

// CreateChallenge creates a challenge and returns its token.
func (c *Client) CreateChallenge(ctx context.Context, r CreateRequest) (string, error) {
	var lastErr error
	for i, payload := range r.payloadVariants() {
		body, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("marshal challenge payload: %w", err)
		}

		req, err := c.newRequest(ctx, http.MethodPost, "/challenges", body)
		if err != nil {
			return "", err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("create challenge: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			var created struct {
				Token       string `json:"token"`
				ChallengeID string `json:"challengeId"`
				ID          string `json:"id"`
			}
			err := json.NewDecoder(resp.Body).Decode(&created)
			resp.Body.Close()
			if err != nil {
				return "", fmt.Errorf("decode created challenge: %w", err)
			}
			token := created.Token
			if token == "" {
				token = created.ChallengeID
			}
			if token == "" {
				token = created.ID
			}
			if token == "" {
				return "", errors.New("create challenge: response carried no token")
			}
			return token, nil

		case resp.StatusCode == http.StatusBadRequest:
			var apiErr struct {
				Message string `json:"message"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&apiErr)
			resp.Body.Close()
			if apiErr.Message == "" {
				apiErr.Message = "InvalidParameters"
			}
			lastErr = fmt.Errorf("create challenge: %s", apiErr.Message)
			c.logger.Debug("challenge payload variant rejected",
				zap.Int("variant", i+1), zap.String("message", apiErr.Message))

		default:
			io.Copy(io.Discard, resp.Body)
			status := resp.StatusCode
			resp.Body.Close()
			return "", statusErr("create challenge", status)
		}
	}
	if lastErr == nil {
		lastErr = errors.New("create challenge: no payload variant accepted")
	}
	return "", lastErr
}

// ChallengeURL returns the shareable URL for a challenge token.
func ChallengeURL(token string) string {
	return "https://www.geoguessr.com/challenge/" + token
}
