package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PlayerRanking is one player's line in a ranking submission.
type PlayerRanking struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// TeamRanking is one team's line in a ranking submission. Rank 0 wins.
type TeamRanking struct {
	Rank    int             `json:"rank"`
	Players []PlayerRanking `json:"players"`
}

// MatchRankingRequest is the completion payload posted to the ranking
// service when a match ends.
type MatchRankingRequest struct {
	Server     string        `json:"server"`
	GameLength float64       `json:"gameLength"`
	Teams      []TeamRanking `json:"teams"`
}

// Ranking is the ranking-service seam. ConfirmMatch is an idempotent
// capacity notification; CompleteMatch submits results and returns the
// service's per-player rating payload verbatim.
type Ranking interface {
	ConfirmMatch(ctx context.Context, gameID, matchID string) error
	CompleteMatch(ctx context.Context, gameID, matchID string, req MatchRankingRequest) (string, error)
}

// RankingConfig holds the ranking-service endpoints and credentials.
type RankingConfig struct {
	APIURL       string
	AuthURL      string
	AuthClientID string
	AuthUsername string
	AuthPassword string
}

// RankingClient talks to the external ranking service over HTTP. Auth
// tokens come from a Cognito-style USER_PASSWORD_AUTH exchange and are
// fetched per call; the service rates tokens cheap and matches rare.
type RankingClient struct {
	cfg   RankingConfig
	httpc *http.Client
}

// NewRankingClient creates a ranking client.
func NewRankingClient(cfg RankingConfig) *RankingClient {
	return &RankingClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

// ConfirmMatch notifies the service that a room reached capacity.
func (c *RankingClient) ConfirmMatch(ctx context.Context, gameID, matchID string) error {
	endpoint := fmt.Sprintf("%s/games/%s/matches/%s/statuses/confirmed", c.cfg.APIURL, gameID, matchID)
	_, err := c.post(ctx, endpoint, []byte("{}"))
	if err != nil {
		return fmt.Errorf("confirm match: %w", err)
	}
	return nil
}

// CompleteMatch submits final team results and returns the raw response
// body, forwarded to clients without interpretation.
func (c *RankingClient) CompleteMatch(ctx context.Context, gameID, matchID string, req MatchRankingRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("complete match: %w", err)
	}
	endpoint := fmt.Sprintf("%s/games/%s/matches/%s/statuses/completed", c.cfg.APIURL, gameID, matchID)
	resp, err := c.post(ctx, endpoint, body)
	if err != nil {
		return "", fmt.Errorf("complete match: %w", err)
	}
	return string(resp), nil
}

func (c *RankingClient) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ranking service returned %d", resp.StatusCode)
	}
	return data, nil
}

// authToken exchanges the configured credentials for an id token.
func (c *RankingClient) authToken(ctx context.Context) (string, error) {
	payload := map[string]any{
		"AuthParameters": map[string]string{
			"USERNAME": c.cfg.AuthUsername,
			"PASSWORD": c.cfg.AuthPassword,
		},
		"AuthFlow": "USER_PASSWORD_AUTH",
		"ClientId": c.cfg.AuthClientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService.InitiateAuth")
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ranking auth: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ranking auth returned %d", resp.StatusCode)
	}
	var out struct {
		AuthenticationResult struct {
			IdToken string
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ranking auth: %w", err)
	}
	if out.AuthenticationResult.IdToken == "" {
		return "", fmt.Errorf("ranking auth: empty token")
	}
	return out.AuthenticationResult.IdToken, nil
}

// NoopRanking is used when no ranking service is configured: matches run
// and end normally, with an empty result payload.
type NoopRanking struct{}

func (NoopRanking) ConfirmMatch(ctx context.Context, gameID, matchID string) error { return nil }

func (NoopRanking) CompleteMatch(ctx context.Context, gameID, matchID string, req MatchRankingRequest) (string, error) {
	return "", nil
}
