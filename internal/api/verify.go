package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyResult is the server's verdict on a presented credential.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Revoked   bool   `json:"revoked"`
	Issuer    string `json:"issuer"`
	Subject   string `json:"subject"`
	CheckedAt string `json:"checkedAt"`
}

// VerifyCredential submits a presented credential token for verification.
// The server checks the signature, issuer and revocation state; this is the
// only trustworthy verdict on a credential.
func (c *Client) VerifyCredential(ctx context.Context, credentialJWT string) (*VerifyResult, error) {
	in := map[string]string{"credential": credentialJWT}
	out, err := call[VerifyResult](ctx, c, http.MethodPost, "/v1/verify", in)
	if err != nil {
		return nil, fmt.Errorf("verify credential: %w", err)
	}
	return &out, nil
}

// CredentialClaims are the display-relevant claims of a credential token.
type CredentialClaims struct {
	CredentialType string `json:"ctype"`
	Title          string `json:"title"`
	jwt.RegisteredClaims
}

// PeekCredentialUnverified decodes a credential token's claims without
// verifying its signature, so the verifier UI can show what is about to be
// checked.
//
// Never use this as a verification result; that is VerifyCredential's job
// and the server's alone.
func PeekCredentialUnverified(credentialJWT string) (*CredentialClaims, error) {
	claims := &CredentialClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credentialJWT, claims); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	return claims, nil
}
