package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	model "github.com/okian/taikai/internal/domain/model"
)

// HTTP client constants.
const (
	maxIdleConns        = 100
	maxIdleConnsPerHost = 100
	idleConnTimeout     = 90 * time.Second
	maxErrorBody        = 512
)

// ErrUnexpectedStatus is returned for any non-200 response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to the taikai HTTP API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client with a pooled transport.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
	}
}

type submitResponse struct {
	Success  bool         `json:"success"`
	Accepted *bool        `json:"accepted,omitempty"`
	Teams    []model.Team `json:"teams,omitempty"`
}

// Health checks that /healthz answers 200.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// SetTeams replaces the roster.
func (c *Client) SetTeams(ctx context.Context, teams []model.Team) error {
	return c.do(ctx, http.MethodPost, "/api/teams", teams, nil)
}

// Teams fetches the roster.
func (c *Client) Teams(ctx context.Context) ([]model.Team, error) {
	var out []model.Team
	err := c.do(ctx, http.MethodGet, "/api/teams", nil, &out)
	return out, err
}

// Recompute asks the server to rebuild the roster from the ledger.
func (c *Client) Recompute(ctx context.Context) ([]model.Team, error) {
	var out submitResponse
	err := c.do(ctx, http.MethodPost, "/api/teams/recompute", nil, &out)
	return out.Teams, err
}

// ReplaceScores overwrites the ledger.
func (c *Client) ReplaceScores(ctx context.Context, records []model.ScoreRecord) error {
	return c.do(ctx, http.MethodPost, "/api/eventscores", records, nil)
}

// Scores fetches the ledger.
func (c *Client) Scores(ctx context.Context) ([]model.ScoreRecord, error) {
	var out []model.ScoreRecord
	err := c.do(ctx, http.MethodGet, "/api/eventscores", nil, &out)
	return out, err
}

// Submit sends one record and reports whether the ledger accepted it.
func (c *Client) Submit(ctx context.Context, r model.ScoreRecord) (bool, error) {
	var out submitResponse
	if err := c.do(ctx, http.MethodPost, "/api/eventscores", r, &out); err != nil {
		return false, err
	}
	if out.Accepted == nil {
		return false, fmt.Errorf("submit %s/%s: response has no accepted flag", r.Event, r.Team)
	}
	return *out.Accepted, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
