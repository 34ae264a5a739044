// Package client is the Go API client for the access service. It persists
// the token pair through a TokenStore, recovers sessions at startup, and
// retries requests once behind a shared single-flight refresh.
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
	"time"

	"github.com/carecal/go-access"
	"golang.org/x/sync/singleflight"
)

// APIError is the decoded error envelope returned by the service
type APIError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func isUnauthorized(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// Option customizes the client
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l access.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		if store != nil {
			c.store = store
		}
	}
}

// Client talks to the access service
type Client struct {
	baseURL string
	http    *http.Client
	store   TokenStore
	logger  access.Logger

	mu    sync.RWMutex
	state SessionState
	user  *access.UserRecord

	refreshGroup singleflight.Group
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		store:   NewMemoryTokenStore(),
		logger:  access.NewNopLogger(),
		state:   StateUnauthenticated,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// User returns the cached user from the last verified session
func (c *Client) User() *access.UserRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *Client) setUser(user *access.UserRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = user
}

// Login authenticates and persists the resulting token pair
func (c *Client) Login(ctx context.Context, email, password string) (*access.UserRecord, error) {
	var out struct {
		Token        string             `json:"token"`
		RefreshToken string             `json:"refreshToken"`
		User         *access.UserRecord `json:"user"`
	}

	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out, "")
	if err != nil {
		return nil, err
	}

	session := &StoredSession{
		Token:        out.Token,
		RefreshToken: out.RefreshToken,
		User:         out.User,
	}
	if err := c.store.Save(session); err != nil {
		c.logger.Warn("session save failed", "error", err)
	}

	c.setUser(out.User)
	c.setState(StateAuthenticated)

	return out.User, nil
}

// Logout purges the local session, then best-effort notifies the server.
// The local purge happens first so a dead server cannot keep us logged in.
func (c *Client) Logout(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		session = &StoredSession{}
	}

	if clearErr := c.store.Clear(); clearErr != nil {
		c.logger.Error("session purge failed", "error", clearErr)
	}
	c.setUser(nil)
	c.setState(StateUnauthenticated)

	if session.Token == "" {
		return nil
	}

	var out struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/logout", map[string]string{
		"token": session.Token,
	}, &out, session.Token); err != nil {
		c.logger.Warn("server logout failed", "error", err)
	}

	return nil
}

// Me fetches the live user for the current session
func (c *Client) Me(ctx context.Context) (*access.UserRecord, error) {
	var out struct {
		User *access.UserRecord `json:"user"`
	}
	if err := c.doAuthenticated(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	c.setUser(out.User)
	return out.User, nil
}

// RequestAccess submits a posting access petition
func (c *Client) RequestAccess(ctx context.Context, reason string) (string, error) {
	var out struct {
		RequestID string `json:"requestId"`
		Status    string `json:"status"`
	}
	err := c.doAuthenticated(ctx, http.MethodPost, "/permissions/request-access", map[string]string{
		"reason": reason,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.RequestID, nil
}

// ListRequests fetches access requests for admin review; status filters when non-empty
func (c *Client) ListRequests(ctx context.Context, status string) ([]access.AccessRequestRecord, error) {
	path := "/permissions/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}

	var out struct {
		Requests []access.AccessRequestRecord `json:"requests"`
		Total    int                          `json:"total"`
	}
	if err := c.doAuthenticated(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

// Approve grants a pending access request
func (c *Client) Approve(ctx context.Context, requestID string) (*access.UserRecord, error) {
	var out struct {
		Success bool               `json:"success"`
		User    *access.UserRecord `json:"user"`
	}
	err := c.doAuthenticated(ctx, http.MethodPost, "/permissions/approve/"+url.PathEscape(requestID), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.User, nil
}

// Deny rejects a pending access request
func (c *Client) Deny(ctx context.Context, requestID, reason string) error {
	var body map[string]string
	if reason != "" {
		body = map[string]string{"reason": reason}
	}

	var out struct {
		Success bool `json:"success"`
	}
	return c.doAuthenticated(ctx, http.MethodPost, "/permissions/deny/"+url.PathEscape(requestID), body, &out)
}

// doAuthenticated attaches the stored access token and retries exactly once
// after a shared refresh when the server answers 401.
func (c *Client) doAuthenticated(ctx context.Context, method, path string, body, out any) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, body, out, session.Token)
	if !isUnauthorized(err) {
		return err
	}

	token, refreshErr := c.refreshToken(ctx)
	if refreshErr != nil {
		if _, failErr := c.fail(refreshErr); failErr != nil {
			return failErr
		}
		return err
	}

	return c.do(ctx, method, path, body, out, token)
}

// refreshToken exchanges the refresh token for a new access token. Concurrent
// callers share one in-flight exchange through singleflight, so a burst of
// 401s costs a single round trip.
func (c *Client) refreshToken(ctx context.Context) (string, error) {
	token, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		session, err := c.store.Load()
		if err != nil {
			return "", err
		}

		if session.RefreshToken == "" {
			return "", &APIError{StatusCode: http.StatusUnauthorized, Message: "no refresh token"}
		}

		var out struct {
			Token string `json:"token"`
		}
		if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{
			"refreshToken": session.RefreshToken,
		}, &out, ""); err != nil {
			return "", err
		}

		session.Token = out.Token
		if err := c.store.Save(session); err != nil {
			c.logger.Warn("session save failed", "error", err)
		}

		return out.Token, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

func (c *Client) fetchMe(ctx context.Context, token string) (*access.UserRecord, error) {
	var out struct {
		User *access.UserRecord `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out, token); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, token string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		_ = json.Unmarshal(payload, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(payload, out)
}
