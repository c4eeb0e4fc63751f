package simulate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	service "github.com/okian/prefrank/internal/app"
	"github.com/okian/prefrank/internal/domain/model"
	"github.com/okian/prefrank/internal/domain/types"
)

// Ranker is the surface a simulated user drives. *service.Service and
// *HTTPClient both satisfy it.
type Ranker interface {
	AnchorItem(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.ItemID, bool, error)
	SuggestMatchup(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.Matchup, bool, error)
	RecordJudgment(ctx context.Context, userID model.UserID, itemA, itemB, winner model.ItemID, polarity model.Polarity) (model.Edge, error)
	Standings(ctx context.Context, userID model.UserID, polarity model.Polarity, candidates []model.ItemID) ([]types.Entry, error)
	HasCycle(ctx context.Context, userID model.UserID, polarity model.Polarity) (bool, error)
}

// HTTPClient talks to a running server's REST API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for baseURL with a per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Health checks the service liveness probe.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	return expect(resp, http.StatusOK, nil)
}

// AnchorItem implements Ranker.
func (c *HTTPClient) AnchorItem(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.ItemID, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, userPath(userID, polarity, "anchor"), nil)
	if err != nil {
		return 0, false, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return 0, false, drain(resp)
	}
	var out struct {
		ItemID model.ItemID `json:"item_id"`
	}
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return 0, false, err
	}
	return out.ItemID, true, nil
}

// SuggestMatchup implements Ranker.
func (c *HTTPClient) SuggestMatchup(ctx context.Context, userID model.UserID, polarity model.Polarity) (model.Matchup, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, userPath(userID, polarity, "matchup"), nil)
	if err != nil {
		return model.Matchup{}, false, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return model.Matchup{}, false, drain(resp)
	}
	var m model.Matchup
	if err := expect(resp, http.StatusOK, &m); err != nil {
		return model.Matchup{}, false, err
	}
	return m, true, nil
}

// RecordJudgment implements Ranker. A conflict maps to
// service.ErrCycleRejected.
func (c *HTTPClient) RecordJudgment(ctx context.Context, userID model.UserID, itemA, itemB, winner model.ItemID, polarity model.Polarity) (model.Edge, error) {
	body := map[string]model.ItemID{"item_a": itemA, "item_b": itemB, "winner": winner}
	resp, err := c.do(ctx, http.MethodPost, userPath(userID, polarity, "judgments"), body)
	if err != nil {
		return model.Edge{}, err
	}
	if resp.StatusCode == http.StatusConflict {
		_ = drain(resp)
		return model.Edge{}, service.ErrCycleRejected
	}
	var out struct {
		Edge model.Edge `json:"edge"`
	}
	if err := expect(resp, http.StatusCreated, &out); err != nil {
		return model.Edge{}, err
	}
	return out.Edge, nil
}

// Standings implements Ranker.
func (c *HTTPClient) Standings(ctx context.Context, userID model.UserID, polarity model.Polarity, candidates []model.ItemID) ([]types.Entry, error) {
	path := userPath(userID, polarity, "rankings")
	if len(candidates) > 0 {
		ids := make([]string, len(candidates))
		for i, id := range candidates {
			ids[i] = strconv.FormatInt(int64(id), 10)
		}
		path += "?candidates=" + url.QueryEscape(strings.Join(ids, ","))
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Entries []types.Entry `json:"entries"`
	}
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// HasCycle implements Ranker.
func (c *HTTPClient) HasCycle(ctx context.Context, userID model.UserID, polarity model.Polarity) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, userPath(userID, polarity, "cycle"), nil)
	if err != nil {
		return false, err
	}
	var out struct {
		HasCycle bool `json:"has_cycle"`
	}
	if err := expect(resp, http.StatusOK, &out); err != nil {
		return false, err
	}
	return out.HasCycle, nil
}

func userPath(userID model.UserID, polarity model.Polarity, op string) string {
	return "/users/" + url.PathEscape(string(userID)) + "/" + string(polarity) + "/" + op
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// expect checks the status and decodes the body into out when non-nil.
func expect(resp *http.Response, status int, out any) error {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != status {
		return fmt.Errorf("%w: %s %d: %s", ErrUnexpectedStatus, resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func drain(resp *http.Response) error {
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
