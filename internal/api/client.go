package api

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
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/unicred/unicred-cli/internal/config"
	"github.com/unicred/unicred-cli/internal/session"
)

// defaultHTTPTimeout is the per-request timeout used by the API client.
const defaultHTTPTimeout = 15 * time.Second

// publicPathMarkers lists path fragments reachable without an access token.
// Matching is by substring, mirroring the server's routing.
var publicPathMarkers = []string{
	"/login",
	"/refresh-token",
	"/send-otp",
	"/reset-password",
}

func isPublicPath(path string) bool {
	for _, marker := range publicPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

// Client is the authenticated request pipeline plus the typed service
// wrappers built on it.
//
// Every outgoing request runs through do: the session store is consulted,
// a near-expiry token is refreshed (at most one refresh in flight across
// concurrent requests), and the bearer header is attached. Token-freshness
// problems never fail a request here; the server's own authorization
// response is the final word.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *session.Store
	log        zerolog.Logger

	refreshing singleflight.Group

	// now is swapped out in tests to pin the refresh window.
	now func() time.Time
}

// NewClient builds a client from an explicit configuration and session
// store. The store is injected so callers (and tests) control session state;
// the client never reaches for globals.
func NewClient(cfg *config.Config, store *session.Store, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		store:      store,
		log:        log.With().Str("component", "api").Logger(),
		now:        time.Now,
	}
}

// do runs one request through the pipeline and returns the raw response
// body.
//
// The only hard rejection is a protected path with no session token: that
// returns ErrNoToken before any network I/O. Everything else degrades to
// sending the request with the best token we have.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	snap := c.store.Current()

	var token string
	switch {
	case snap.AccessToken != "":
		token = c.ensureFreshToken(ctx, snap)
	case isPublicPath(path):
		// Public endpoints proceed without credentials.
	default:
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNoToken)
	}

	return c.send(ctx, method, path, body, token)
}

// send hands a finalized request to the transport. It carries no token
// logic of its own so the refresh call can reuse it without recursing into
// the pipeline.
func (c *Client) send(ctx context.Context, method, path string, body []byte, token string) ([]byte, error) {
	requestID := uuid.NewString()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", requestID)

	c.log.Debug().Str("method", method).Str("path", path).Str("requestId", requestID).Msg("sending request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{Code: httpResp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// envelope is the response wrapper used by all business endpoints.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// call sends a JSON request through the pipeline and unwraps the
// {success, message, data} envelope into a typed result.
func call[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	var zero T

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return zero, fmt.Errorf("marshal request: %w", err)
		}
	}

	respBody, err := c.do(ctx, method, path, body)
	if err != nil {
		return zero, err
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return zero, fmt.Errorf("parse response: %w", err)
	}
	if !env.Success {
		if env.Message != "" {
			return zero, fmt.Errorf("server rejected request: %s", env.Message)
		}
		return zero, fmt.Errorf("server rejected request")
	}

	var out T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return zero, fmt.Errorf("parse response data: %w", err)
		}
	}
	return out, nil
}
