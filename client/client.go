// Package client is the resilient request client for the task-execution
// backend. Plain calls go auth → transport → retry; streaming calls run a
// session that feeds the frame decoder and dispatches per-session callbacks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallnest/taskwire/auth"
	"github.com/smallnest/taskwire/internal/logger"
	"github.com/smallnest/taskwire/retry"
	"github.com/smallnest/taskwire/types"
)

const defaultAttemptTimeout = 30 * time.Second

// Client issues plain and streaming calls against one backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client // plain calls, per-attempt timeout
	streamClient *http.Client // streaming calls, no overall timeout
	store        auth.Store
	refresher    *auth.Refresher

	policies      map[string]retry.Policy
	streamPolicy  *retry.Policy
	refreshWindow time.Duration
	userAgent     string
	log           *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets the client used for plain calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAttemptTimeout bounds each individual plain-call attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetryPolicy overrides the retry policy for one HTTP verb.
func WithRetryPolicy(method string, p retry.Policy) Option {
	return func(c *Client) {
		c.policies[strings.ToUpper(method)] = p
	}
}

// WithStreamPolicy overrides the per-verb session-restart policy for
// streaming calls.
func WithStreamPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.streamPolicy = &p
	}
}

// WithRefreshWindow sets how close to expiry the access token may get
// before a call refreshes it pre-emptively. Zero disables the check.
func WithRefreshWindow(d time.Duration) Option {
	return func(c *Client) {
		c.refreshWindow = d
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the backend at baseURL. The refresher must share
// the same store, so a refresh triggered by any call is visible to all.
func New(baseURL string, store auth.Store, refresher *auth.Refresher, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultAttemptTimeout},
		streamClient: &http.Client{},
		store:        store,
		refresher:    refresher,
		policies:     make(map[string]retry.Policy),
		userAgent:    "taskwire",
		log:          logger.With(zap.String("component", "client")),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPost, path, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) policyFor(method string) retry.Policy {
	if p, ok := c.policies[method]; ok {
		return p
	}
	return retry.ForMethod(method)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	_, err := retry.Do(ctx, c.policyFor(method), func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, path, body, out)
	})
	return err
}

// attempt performs one plain-call attempt, replaying once on 401 after a
// successful refresh. The same descriptor is reissued; a second 401 is
// surfaced without another refresh.
func (c *Client) attempt(ctx context.Context, method, path string, body, out any) error {
	cred, err := c.credential(ctx)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, c.httpClient, method, path, body, cred, "application/json")
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp.Body)
		cred, err = c.refresher.Refresh(ctx)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, c.httpClient, method, path, body, cred, "application/json")
		if err != nil {
			return err
		}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return &types.AuthError{Op: method, Err: fmt.Errorf("unauthorized after credential refresh")}
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &types.APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		// An empty body (e.g. 204 on DELETE) is not a decode failure.
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// credential loads the stored pair and refreshes pre-emptively when the
// access token is about to lapse. A failed pre-emptive refresh is not
// fatal here; the 401 replay path remains the authority.
func (c *Client) credential(ctx context.Context) (*auth.Credential, error) {
	cred, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if !cred.Valid() {
		return nil, &types.AuthError{Op: "credential", Err: types.ErrNoCredential}
	}

	if c.refreshWindow > 0 && cred.ExpiresSoon(c.refreshWindow) {
		if fresh, err := c.refresher.Refresh(ctx); err == nil {
			cred = fresh
		} else {
			c.log.Debug("pre-emptive refresh failed, proceeding with stored token", zap.Error(err))
		}
	}
	return cred, nil
}

// send builds and issues one request. The body is re-marshaled per attempt
// so retries and replays never reuse a consumed reader.
func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, body any, cred *auth.Credential, accept string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &types.TransportError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
