package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/unicred/unicred-cli/internal/session"
)

// refreshData is the refresh endpoint's success payload.
type refreshData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// ensureFreshToken returns the access token to attach to an outgoing
// request, refreshing it first when it is close to expiry.
//
// Concurrent requests that observe the same near-expiry token share a single
// outbound refresh call and all wait for its result, so the window produces
// at most one network refresh at a time.
//
// Failure here is always soft: on any refresh error the stale token is
// returned and the request proceeds, leaving the server's 401 to surface
// naturally. Forcing a logout over a flaky refresh would be worse.
func (c *Client) ensureFreshToken(ctx context.Context, snap session.Snapshot) string {
	if !needsRefresh(snap.AccessToken, c.now()) {
		return snap.AccessToken
	}
	if snap.RefreshToken == "" {
		return snap.AccessToken
	}

	token, err, _ := c.refreshing.Do("refresh", func() (interface{}, error) {
		return c.refreshAccessToken(ctx, snap.RefreshToken)
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("token refresh failed, proceeding with stale token")
		return snap.AccessToken
	}
	return token.(string)
}

// refreshAccessToken exchanges the refresh token for a new credential pair
// and writes it to the session store.
func (c *Client) refreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return "", fmt.Errorf("marshal refresh request: %w", err)
	}

	// The refresh endpoint is public; no bearer header.
	respBody, err := c.send(ctx, http.MethodPost, "/v1/auth/refresh-token", body, "")
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", fmt.Errorf("parse refresh response: %w", err)
	}
	if !env.Success {
		return "", fmt.Errorf("refresh rejected: %s", env.Message)
	}

	var data refreshData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("parse refresh data: %w", err)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("refresh returned empty access token")
	}
	if data.RefreshToken == "" {
		// Server rotated only the access token; keep the refresh token.
		data.RefreshToken = refreshToken
	}

	if err := c.store.SetAuthData(session.AuthData{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
	}); err != nil {
		// The in-memory session is updated regardless; losing one persisted
		// write costs a re-login after a crash, not a failed request.
		c.log.Warn().Err(err).Msg("failed to persist refreshed session")
	}

	return data.AccessToken, nil
}
