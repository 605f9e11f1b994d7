package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Credential is an issued academic credential. JWT carries the signed
// credential token the holder presents for verification.
type Credential struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	IssuedAt string `json:"issuedAt"`
	JWT      string `json:"jwt"`
}

// Credentials lists the signed-in holder's issued credentials.
func (c *Client) Credentials(ctx context.Context) ([]Credential, error) {
	out, err := call[[]Credential](ctx, c, http.MethodGet, "/v1/credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("credentials: %w", err)
	}
	return out, nil
}

// CredentialByID fetches one credential, including its signed token.
func (c *Client) CredentialByID(ctx context.Context, id string) (*Credential, error) {
	out, err := call[Credential](ctx, c, http.MethodGet, "/v1/credentials/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", id, err)
	}
	return &out, nil
}
