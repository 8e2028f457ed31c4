package pretix

import (
	"errors"
	"fmt"
)

// ErrUpstreamAuth is returned when the user's authorization code can't be exchanged for
// an access token, or when the access token doesn't resolve to a usable identity. It's
// fatal to the login.
var ErrUpstreamAuth = errors.New("ticketing provider authentication failed")

// ErrUpstreamQuery is returned when the user's orders can't be retrieved. It's fatal to
// the login.
var ErrUpstreamQuery = errors.New("ticketing provider order query failed")

// upstreamError unwraps to one of the sentinel errors above and carries enough detail
// about the failed request to diagnose it without including any credentials
type upstreamError struct {
	kind     error
	endpoint string
	status   int
	message  string
}

// Error formats the error, prefixed with the message of the sentinel it unwraps to
func (e *upstreamError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%v: got %d from %s: %s", e.kind, e.status, e.endpoint, e.message)
	}
	return fmt.Sprintf("%v: %s: %s", e.kind, e.endpoint, e.message)
}

// Unwrap identifies the error as synonymous with ErrUpstreamAuth or ErrUpstreamQuery
func (e *upstreamError) Unwrap() error {
	return e.kind
}
