package api

import (
	"errors"
	"fmt"
)

// ErrNoToken rejects a protected request issued with no session present.
// The UI reacts to this one differently (redirect to login), so callers
// check it with errors.Is.
var ErrNoToken = errors.New("no access token")

// StatusError is a non-2xx response from the server. The request made it to
// the network; the body is kept for diagnostics and envelope-free endpoints.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed: status %d: %s", e.Code, e.Body)
}

// IsUnauthorized reports whether err is the server rejecting the bearer
// token. This is how a stale token surfaces after a soft-failed refresh.
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == 401
}
