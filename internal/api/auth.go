package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/unicred/unicred-cli/internal/session"
)

// loginData is the login endpoint's success payload.
type loginData struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	UserProfile  session.Profile `json:"userProfile"`
}

// Login authenticates with email and password and persists the resulting
// session. Login is a public endpoint and needs no existing token.
//
// The PascalCase body fields follow the auth controller's contract, which
// predates the v1 API conventions.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Profile, error) {
	in := map[string]string{"Email": email, "Password": password}
	data, err := call[loginData](ctx, c, http.MethodPost, "/Auth/login", in)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if data.AccessToken == "" || data.RefreshToken == "" {
		return nil, fmt.Errorf("login: incomplete credential pair in response")
	}

	profile := data.UserProfile
	if err := c.store.SetAuthData(session.AuthData{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		Profile:      &profile,
	}); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &profile, nil
}

// Logout clears the local session. Tokens are bearer credentials; the server
// holds no client session state to tear down.
func (c *Client) Logout() error {
	return c.store.Clear()
}

// SendOTP requests a one-time password for the password reset flow.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	in := map[string]string{"Email": email}
	if _, err := call[struct{}](ctx, c, http.MethodPost, "/Auth/send-otp", in); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using an OTP obtained via SendOTP.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	in := map[string]string{"Email": email, "Otp": otp, "NewPassword": newPassword}
	if _, err := call[struct{}](ctx, c, http.MethodPost, "/Auth/reset-password", in); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}
