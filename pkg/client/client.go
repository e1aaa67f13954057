// Package client is a Go client for the motorlot API, plus the client-side
// helpers a form or dashboard needs: a debounced username checker, an
// app-wide auth context fed by the session stream, and load status
// tracking.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/motorlot/apiserver/pkg/query"
	"github.com/motorlot/apiserver/types"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("motorlot api: %d %s", e.StatusCode, e.Message)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// Page is one page of a listing view.
type Page struct {
	query.Page
	Error string `json:"error,omitempty"`
}

// Client calls the motorlot HTTP API. It holds the session token of the
// signed-in user and is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client signed in.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current session token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Register(ctx context.Context, email, password, name string) (AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", nil, map[string]string{
		"email":    email,
		"password": password,
		"name":     name,
	}, &res)
	if err == nil {
		c.SetToken(res.Token)
	}
	return res, err
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err == nil {
		c.SetToken(res.Token)
	}
	return res, err
}

// Logout revokes the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// RequestPasswordReset asks for a reset email. It succeeds for unknown
// addresses too.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/password-reset", nil, map[string]string{"email": email}, nil)
}

func (c *Client) Me(ctx context.Context) (types.User, error) {
	var u types.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &u)
	return u, err
}

func (c *Client) Taxonomy(ctx context.Context) (types.Taxonomy, error) {
	var t types.Taxonomy
	err := c.do(ctx, http.MethodGet, "/taxonomy", nil, nil, &t)
	return t, err
}

// Browse runs the public view for st.
func (c *Client) Browse(ctx context.Context, st query.State) (Page, error) {
	var p Page
	err := c.do(ctx, http.MethodGet, "/listings", st.Values(), nil, &p)
	return p, err
}

// Inventory runs the dashboard view over the caller's listings. An empty
// status includes every status.
func (c *Client) Inventory(ctx context.Context, status types.ListingStatus, st query.State) (Page, error) {
	v := st.Values()
	if status != "" {
		v.Set("status", string(status))
	}
	var p Page
	err := c.do(ctx, http.MethodGet, "/me/listings", v, nil, &p)
	return p, err
}

func (c *Client) Listing(ctx context.Context, id string) (types.Listing, error) {
	var l types.Listing
	err := c.do(ctx, http.MethodGet, "/listings/"+url.PathEscape(id), nil, nil, &l)
	return l, err
}

// Transition applies a seller transition: mark_sold, mark_available,
// archive or unarchive.
func (c *Client) Transition(ctx context.Context, id string, t types.Transition) (types.Listing, error) {
	action, ok := map[types.Transition]string{
		types.TransitionMarkSold:      "sold",
		types.TransitionMarkAvailable: "available",
		types.TransitionArchive:       "archive",
		types.TransitionUnarchive:     "unarchive",
	}[t]
	if !ok {
		return types.Listing{}, fmt.Errorf("unsupported transition %q", t)
	}
	var l types.Listing
	err := c.do(ctx, http.MethodPost, "/listings/"+url.PathEscape(id)+"/"+action, nil, nil, &l)
	return l, err
}

// UsernameAvailability is the answer to a username check. Username is the
// value the answer was computed for.
type UsernameAvailability struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

func (c *Client) UsernameAvailable(ctx context.Context, username string) (UsernameAvailability, error) {
	var a UsernameAvailability
	err := c.do(ctx, http.MethodGet, "/users/username-available", url.Values{"username": {username}}, nil, &a)
	return a, err
}

// ProfileUpdate is a partial profile edit. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name       *string           `json:"name,omitempty"`
	Username   *string           `json:"username,omitempty"`
	Phone      *string           `json:"phone,omitempty"`
	Dealership *types.Dealership `json:"dealership,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (types.User, error) {
	var u types.User
	err := c.do(ctx, http.MethodPatch, "/me/profile", nil, in, &u)
	return u, err
}

func (c *Client) Favorites(ctx context.Context) ([]types.Listing, error) {
	var ls []types.Listing
	err := c.do(ctx, http.MethodGet, "/me/favorites", nil, nil, &ls)
	return ls, err
}

// ToggleFavorite flips a listing's watchlist membership and reports
// whether it is now a favorite.
func (c *Client) ToggleFavorite(ctx context.Context, listingID string) (bool, error) {
	var res struct {
		Favorite *bool `json:"favorite"`
	}
	if err := c.do(ctx, http.MethodPost, "/me/favorites/"+url.PathEscape(listingID)+"/toggle", nil, nil, &res); err != nil {
		return false, err
	}
	return res.Favorite != nil && *res.Favorite, nil
}

// SessionStreamURL is the websocket URL of the session stream for the
// current token.
func (c *Client) SessionStreamURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/auth/session/stream?" + url.Values{"token": {c.Token()}}.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
