package api

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// tokenRefreshWindow is how soon before expiry we proactively refresh the
// access token. Tokens further out are used as-is.
const tokenRefreshWindow = 8 * time.Minute

type jwtPayload struct {
	Exp float64 `json:"exp"`
}

// tokenExpiresAt returns the expiry timestamp encoded in a JWT (if present).
//
// This function does not verify the JWT signature. It is only used for client
// UX/control flow such as proactive refresh. Server-side verification remains
// the source of truth.
func tokenExpiresAt(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(parts[1])
		if err != nil {
			return time.Time{}, false
		}
	}

	var payload jwtPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return time.Time{}, false
	}
	if payload.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(payload.Exp), 0), true
}

// needsRefresh reports whether the token is strictly inside the refresh
// window: still valid, but with less than tokenRefreshWindow worth of whole
// minutes left.
//
// Already-expired tokens are not refreshed here; the server's 401 is the
// authoritative signal and the caller handles it. Tokens whose payload can't
// be parsed are attached as-is for the same reason.
func needsRefresh(token string, now time.Time) bool {
	exp, ok := tokenExpiresAt(token)
	if !ok {
		return false
	}
	minutesRemaining := int(exp.Sub(now).Seconds()) / 60
	return minutesRemaining > 0 && minutesRemaining < int(tokenRefreshWindow/time.Minute)
}
