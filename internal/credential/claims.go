package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes the two credential variants, which are signed with the same key
type Kind string

const (
	// KindPublic credentials are short-lived and safe to expose in a URL: they only
	// reveal whether the user holds a ticket
	KindPublic Kind = "public"

	// KindPrivate credentials identify the user and the streams they're registered for,
	// and are only ever delivered in an http-only cookie
	KindPrivate Kind = "private"
)

// PublicClaims is the payload of a public credential
type PublicClaims struct {
	jwt.RegisteredClaims
	Kind      Kind `json:"typ"`
	HasTicket bool `json:"has_ticket"`
}

// Validate is called by the JWT parser after the registered claims have been checked
func (c PublicClaims) Validate() error {
	if c.Kind != KindPublic {
		return errWrongKind
	}
	return nil
}

// PrivateClaims is the payload of a private credential
type PrivateClaims struct {
	jwt.RegisteredClaims
	Kind          Kind            `json:"typ"`
	Email         string          `json:"email"`
	HasTicket     bool            `json:"has_ticket"`
	Registrations map[string]bool `json:"jstream_registered_tracks"`
}

// Validate is called by the JWT parser after the registered claims have been checked
func (c PrivateClaims) Validate() error {
	if c.Kind != KindPrivate {
		return errWrongKind
	}
	if c.Email == "" {
		return errMissingEmail
	}
	return nil
}

// IsRegistered reports whether the credential grants access to the given stream
func (c *PrivateClaims) IsRegistered(streamId string) bool {
	return c.Registrations[streamId]
}

// anyClaims accepts either variant, for callers that just want to inspect a credential
type anyClaims struct {
	jwt.RegisteredClaims
	Kind          Kind            `json:"typ"`
	Email         string          `json:"email,omitempty"`
	HasTicket     bool            `json:"has_ticket"`
	Registrations map[string]bool `json:"jstream_registered_tracks,omitempty"`
}

func (c anyClaims) Validate() error {
	switch c.Kind {
	case KindPublic:
		return nil
	case KindPrivate:
		if c.Email == "" {
			return errMissingEmail
		}
		return nil
	}
	return errWrongKind
}

// Claims is the decoded content of a verified credential of either kind. Email and
// Registrations are only populated for private credentials.
type Claims struct {
	Kind          Kind            `json:"kind"`
	Email         string          `json:"email,omitempty"`
	HasTicket     bool            `json:"has_ticket"`
	Registrations map[string]bool `json:"jstream_registered_tracks,omitempty"`
	ExpiresAt     time.Time       `json:"expires_at"`
}
