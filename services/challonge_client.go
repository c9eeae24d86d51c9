package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ChallongeClient talks to a Challonge v2.1 compatible bracket API.
type ChallongeClient struct {
	BaseURL string
	Client  *http.Client

	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewChallongeClient allows perMinute requests per minute across all tournaments.
func NewChallongeClient(baseURL string, perMinute int, httpClient *http.Client, logger *zap.Logger) *ChallongeClient {
	if perMinute <= 0 {
		perMinute = 60
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &ChallongeClient{
		BaseURL: baseURL,
		Client:  httpClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  logger.Named("challonge"),
	}
}

type challongeData[T any] struct {
	Data T `json:"data"`
}

type challongeMatchPayload struct {
	Type       string                   `json:"type"`
	Attributes challongeMatchAttributes `json:"attributes"`
}

type challongeMatchAttributes struct {
	Match []challongeParticipantScore `json:"match"`
}

type challongeParticipantScore struct {
	ParticipantID string `json:"participant_id"`
	ScoreSet      string `json:"score_set"`
	Advancing     bool   `json:"advancing"`
}

type challongeRef struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (r challongeRef) id() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.ID
}

type challongeMatch struct {
	ID         string `json:"id"`
	Attributes struct {
		State string `json:"state"`
	} `json:"attributes"`
	Relationships struct {
		Player1 challongeRef `json:"player1"`
		Player2 challongeRef `json:"player2"`
	} `json:"relationships"`
}

// PushMatchResult reports the final score of a bracket match.
func (c *ChallongeClient) PushMatchResult(ctx context.Context, apiKey, tournamentID, matchID string, scores []ParticipantScore) error {
	payload := challongeData[challongeMatchPayload]{Data: challongeMatchPayload{Type: "Match"}}
	for _, s := range scores {
		payload.Data.Attributes.Match = append(payload.Data.Attributes.Match, challongeParticipantScore{
			ParticipantID: s.ParticipantRef,
			ScoreSet:      strconv.Itoa(s.Score),
			Advancing:     s.Advancing,
		})
	}

	path := fmt.Sprintf("tournaments/%s/matches/%s.json", url.PathEscape(tournamentID), url.PathEscape(matchID))
	if err := c.do(ctx, http.MethodPut, path, apiKey, payload, nil); err != nil {
		return fmt.Errorf("push result for match %s: %w", matchID, err)
	}

	c.logger.Info("[SYNC] bracket result pushed", zap.String("tournament", tournamentID), zap.String("match", matchID))
	return nil
}

// OpenMatches lists bracket matches of participantRef that still wait for a result.
func (c *ChallongeClient) OpenMatches(ctx context.Context, apiKey, tournamentID, participantRef string) ([]OpenMatch, error) {
	q := url.Values{}
	q.Set("state", "open")
	q.Set("participant_id", participantRef)
	path := fmt.Sprintf("tournaments/%s/matches.json?%s", url.PathEscape(tournamentID), q.Encode())

	var resp challongeData[[]challongeMatch]
	if err := c.do(ctx, http.MethodGet, path, apiKey, nil, &resp); err != nil {
		return nil, fmt.Errorf("list open matches: %w", err)
	}

	out := make([]OpenMatch, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.Attributes.State != "" && m.Attributes.State != "open" {
			continue
		}
		p1, p2 := m.Relationships.Player1.id(), m.Relationships.Player2.id()
		switch participantRef {
		case p1:
			out = append(out, OpenMatch{MatchID: m.ID, PlayerRef: p1, OpponentRef: p2})
		case p2:
			out = append(out, OpenMatch{MatchID: m.ID, PlayerRef: p2, OpponentRef: p1})
		}
	}
	return out, nil
}

func (c *ChallongeClient) do(ctx context.Context, method, path, apiKey string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrBracketSync, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/vnd.api+json")
	req.Header.Set("Authorization-Type", "v1")
	req.Header.Set("Authorization", apiKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBracketSync, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("[SYNC] bracket service error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return fmt.Errorf("%w: status %d", ErrBracketSync, resp.StatusCode)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrBracketSync, err)
	}
	return nil
}
