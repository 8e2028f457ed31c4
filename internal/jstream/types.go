package jstream

import "time"

// ClientToken is a service-level access token that authenticates the broker itself to
// the streaming provider
type ClientToken struct {
	Value     string
	ExpiresAt time.Time
}

// RegistrationMap records, for each stream ID, whether the user was registered with the
// streaming provider. A stream is only ever present with a true value if registration
// succeeded; streams that failed are omitted.
type RegistrationMap map[string]bool

// registrationRequest is the body sent to the user registration endpoint
type registrationRequest struct {
	Email string `json:"email"`
}

// sessionRequest is the body sent to the session issuance endpoint
type sessionRequest struct {
	Email string `json:"email"`
}

// sessionResponse is the payload returned from the session issuance endpoint
type sessionResponse struct {
	SessionId string `json:"session_id"`
}
