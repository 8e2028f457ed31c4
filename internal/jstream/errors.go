package jstream

import (
	"errors"
	"fmt"
)

// ErrClientToken is returned when a client-credentials token can't be obtained from the
// streaming provider. Every caller waiting on the same refresh receives it.
var ErrClientToken = errors.New("streaming provider client token request failed")

// ErrUpstreamRegistration is returned when the streaming provider refuses to register a
// user for a stream. It only ever affects that one stream.
var ErrUpstreamRegistration = errors.New("streaming provider registration failed")

// ErrUpstreamSession is returned when the streaming provider doesn't issue a playback
// session ID
var ErrUpstreamSession = errors.New("streaming provider session request failed")

// upstreamError unwraps to one of the sentinel errors above, carrying the failed
// request's endpoint and status for diagnosis
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

// Unwrap identifies the error as synonymous with its sentinel
func (e *upstreamError) Unwrap() error {
	return e.kind
}
