package share

import (
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// linkScheme/linkHost define the deep-link format the mobile apps
	// register: unicred://verify?[base64url-encoded credential token]
	linkScheme = "unicred"
	linkHost   = "verify"
)

// BuildLink encodes a credential token into a shareable verification link.
// A verifier scans it (or opens it in the app) to check the credential.
func BuildLink(credentialJWT string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(credentialJWT))
	return fmt.Sprintf("%s://%s?%s", linkScheme, linkHost, encoded)
}

// ParseLink extracts the credential token from a scanned verification link.
func ParseLink(link string) (string, error) {
	parsed, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	if parsed.Scheme != linkScheme {
		return "", fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
	if parsed.Host != linkHost {
		return "", fmt.Errorf("unsupported host: %s", parsed.Host)
	}
	raw := parsed.RawQuery
	if raw == "" {
		return "", fmt.Errorf("missing credential in link")
	}
	decoded, err := decodeBase64URL(raw)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	return string(decoded), nil
}

// decodeBase64URL accepts both raw and padded url-safe base64; QR scanner
// apps are inconsistent about preserving padding.
func decodeBase64URL(input string) ([]byte, error) {
	if data, err := base64.RawURLEncoding.DecodeString(input); err == nil {
		return data, nil
	}
	return base64.URLEncoding.DecodeString(input)
}

// TerminalQR renders a link as ASCII art for terminal display.
func TerminalQR(link string) (string, error) {
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("generate qr: %w", err)
	}
	return qr.ToSmallString(false), nil
}

// PNG renders a link as a PNG image of size x size pixels for in-app display.
func PNG(link string, size int) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("generate qr png: %w", err)
	}
	return png, nil
}
