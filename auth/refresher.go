package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smallnest/taskwire/internal/logger"
	"github.com/smallnest/taskwire/types"
)

// refreshRequest is the wire shape of the refresh exchange.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	Payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	} `json:"payload"`
}

// Refresher exchanges the stored refresh token for a new credential pair.
// Concurrent callers collapse into one in-flight exchange; every waiter
// receives the single result. On success the store is replaced wholesale,
// on a rejected exchange it is cleared.
type Refresher struct {
	endpoint string
	store    Store
	client   *http.Client
	log      *zap.Logger

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	cred *Credential
	err  error
}

// NewRefresher creates a refresher hitting the given refresh endpoint URL.
func NewRefresher(endpoint string, store Store, client *http.Client) *Refresher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Refresher{
		endpoint: endpoint,
		store:    store,
		client:   client,
		log:      logger.With(zap.String("component", "refresher")),
	}
}

// Refresh performs (or joins) one refresh exchange and returns the new
// credential. The exchange runs detached from any single caller's context,
// so one caller cancelling cannot fail the waiters that joined it; each
// caller's own context only bounds how long it waits for the result. The
// exchange itself is bounded by the HTTP client timeout.
func (r *Refresher) Refresh(ctx context.Context) (*Credential, error) {
	r.mu.Lock()
	call := r.inflight
	if call == nil {
		call = &refreshCall{done: make(chan struct{})}
		r.inflight = call
		exchangeCtx := context.WithoutCancel(ctx)
		go func() {
			call.cred, call.err = r.doRefresh(exchangeCtx)
			r.mu.Lock()
			r.inflight = nil
			r.mu.Unlock()
			close(call.done)
		}()
	}
	r.mu.Unlock()

	select {
	case <-call.done:
		return call.cred, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Refresher) doRefresh(ctx context.Context) (*Credential, error) {
	cred, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil || cred.RefreshToken == "" {
		return nil, &types.AuthError{Op: "refresh", Err: types.ErrNoCredential}
	}

	body, err := json.Marshal(refreshRequest{RefreshToken: cred.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &types.TransportError{Op: "refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The backend rejected the refresh token; the pair is dead.
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if clearErr := r.store.Clear(); clearErr != nil {
			r.log.Warn("failed to clear rejected credential", zap.Error(clearErr))
		}
		r.log.Warn("refresh exchange rejected",
			zap.Int("status", resp.StatusCode))
		return nil, &types.AuthError{
			Op:  "refresh",
			Err: fmt.Errorf("refresh endpoint returned %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var decoded refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if decoded.Payload.AccessToken == "" {
		return nil, &types.AuthError{Op: "refresh", Err: fmt.Errorf("refresh response missing access token")}
	}

	next := &Credential{
		AccessToken:  decoded.Payload.AccessToken,
		RefreshToken: decoded.Payload.RefreshToken,
	}
	if err := r.store.Save(next); err != nil {
		return nil, fmt.Errorf("persist refreshed credential: %w", err)
	}

	r.log.Debug("credential refreshed")
	return next, nil
}
