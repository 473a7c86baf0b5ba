// Package osuapi contains minimal helpers to interact with the osu! v2 API
// for user lookup, beatmap metadata and friend lists, using a user access token.
package osuapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Client provides the v2 API methods the bot needs. Methods take the access
// token of the acting user so one client serves every linked account.
type Client struct {
	// BaseURL is the osu! web root, https://osu.ppy.sh unless overridden in tests.
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://osu.ppy.sh"
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) get(ctx context.Context, token, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/api/v2"+path, nil)
	if err != nil {
		return err
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+token)
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
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("osu api %s: %s: %s", path, resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// OwnUser fetches the authenticated user, optionally for a specific ruleset.
func (c *Client) OwnUser(ctx context.Context, token, mode string) (*User, error) {
	path := "/me"
	if mode != "" {
		path += "/" + mode
	}
	var u User
	if err := c.get(ctx, token, path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// User fetches a user by id or @username, optionally for a specific ruleset.
func (c *Client) User(ctx context.Context, token, user, mode string) (*User, error) {
	path := "/users/" + url.PathEscape(user)
	if mode != "" {
		path += "/" + mode
	}
	var u User
	if err := c.get(ctx, token, path, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Users fetches up to 50 users by numeric id in one call.
func (c *Client) Users(ctx context.Context, token string, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 50 {
		return nil, fmt.Errorf("too many user ids: %d (max 50)", len(ids))
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids[]", id)
	}
	var body struct {
		Users []User `json:"users"`
	}
	if err := c.get(ctx, token, "/users", q, &body); err != nil {
		return nil, err
	}
	return body.Users, nil
}

// Beatmap fetches a single difficulty by id.
func (c *Client) Beatmap(ctx context.Context, token, id string) (*Beatmap, error) {
	var b Beatmap
	if err := c.get(ctx, token, "/beatmaps/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Beatmapset fetches a mapset with all its difficulties.
func (c *Client) Beatmapset(ctx context.Context, token, id string) (*Beatmapset, error) {
	var s Beatmapset
	if err := c.get(ctx, token, "/beatmapsets/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SearchBeatmapsets runs a mapset search. The query values map directly to
// the /beatmapsets/search parameters (q, m, s, ...).
func (c *Client) SearchBeatmapsets(ctx context.Context, token string, query url.Values) (*SearchResult, error) {
	var res SearchResult
	if err := c.get(ctx, token, "/beatmapsets/search", query, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Friends fetches the friend list of the authenticated user. Requires the
// friends.read scope.
func (c *Client) Friends(ctx context.Context, token string) ([]User, error) {
	var friends []User
	if err := c.get(ctx, token, "/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}
