// Package authapi is the HTTP client for the auth endpoints and the
// transport boundary the session store hangs its token source and
// unauthorized callback on.
package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"onevizn-platform/internal/session"
)

const defaultTimeout = 15 * time.Second

// Error is a non-2xx API response. Message carries the server's inline
// error text for the UI to render.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client talks JSON to the auth API. It implements both session.API (the
// four lifecycle calls) and session.Authorizer (token attachment + the 401
// signal for every other authenticated request made through Do).
type Client struct {
	base string
	http *http.Client

	mu           sync.RWMutex
	tokenSource  func() string
	unauthorized func()
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httpClient,
	}
}

/* ===================== AUTHORIZER ===================== */

func (c *Client) SetTokenSource(fn func() string) {
	c.mu.Lock()
	c.tokenSource = fn
	c.mu.Unlock()
}

func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	c.unauthorized = fn
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	fn := c.tokenSource
	c.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

func (c *Client) signalUnauthorized() {
	c.mu.RLock()
	fn := c.unauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

/* ===================== SESSION API ===================== */

func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.LoginResult, error) {
	var out session.LoginResult
	if err := c.call(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return session.LoginResult{}, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, reg session.Registration) error {
	return c.call(ctx, http.MethodPost, "/auth/register", reg, nil)
}

func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", nil, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

/* ===================== GENERIC ===================== */

// Do performs an authenticated request outside the auth lifecycle (profile
// updates, list screens). A 401 here fires the unauthorized handler, which
// the session store wires to its logout.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	err := c.do(ctx, method, path, body, out)
	if apiErr, ok := err.(*Error); ok && apiErr.Status == http.StatusUnauthorized {
		c.signalUnauthorized()
	}
	return err
}

// call is Do without the 401 signal: the auth lifecycle endpoints report
// their failures to the store directly, which owns the recovery.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}
