// Package trackapi is a client for the osu!track API, which keeps historical
// snapshots of player statistics independent of the official osu! API.
package trackapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Client talks to an osu!track deployment. The public instance lives at
// https://osutrack-api.ameo.dev and needs no authentication.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://osutrack-api.ameo.dev"
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")
	resp, err := c.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("osutrack %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Update records a fresh snapshot for the user and returns the delta since
// the last one.
func (c *Client) Update(ctx context.Context, userID int, mode int) (*UpdateResponse, error) {
	q := url.Values{}
	q.Set("user", strconv.Itoa(userID))
	q.Set("mode", strconv.Itoa(mode))
	var res UpdateResponse
	if err := c.do(ctx, http.MethodPost, "/update", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StatsHistory returns all recorded snapshots for the user, oldest first.
func (c *Client) StatsHistory(ctx context.Context, userID int, mode int) ([]StatsPoint, error) {
	q := url.Values{}
	q.Set("user", strconv.Itoa(userID))
	q.Set("mode", strconv.Itoa(mode))
	var points []StatsPoint
	if err := c.do(ctx, http.MethodGet, "/stats_history", q, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Hiscores returns the recorded top plays for the user.
func (c *Client) Hiscores(ctx context.Context, userID int, mode int) ([]RecordedScore, error) {
	q := url.Values{}
	q.Set("user", strconv.Itoa(userID))
	q.Set("mode", strconv.Itoa(mode))
	var scores []RecordedScore
	if err := c.do(ctx, http.MethodGet, "/hiscores", q, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
