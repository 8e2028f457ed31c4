package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golden-vcr/keyticket/internal/credential"
	"github.com/golden-vcr/keyticket/internal/jstream"
	"github.com/golden-vcr/keyticket/internal/pretix"
	"github.com/sirupsen/logrus"
)

func (s *Server) handleCallback(res http.ResponseWriter, req *http.Request) {
	code := req.URL.Query().Get("code")
	if code == "" {
		http.Error(res, "'code' URL parameter is required", http.StatusBadRequest)
		return
	}

	identity, entitlement, err := pretix.ResolveEntitlement(req.Context(), s.pretixClient, code, s.liveTicketItemId)
	if err != nil {
		s.log.WithError(err).Warn("login failed")
		switch {
		case errors.Is(err, pretix.ErrUpstreamAuth):
			http.Error(res, fmt.Sprintf("Authentication failed: %v", err), http.StatusUnauthorized)
		case errors.Is(err, pretix.ErrUpstreamQuery):
			http.Error(res, fmt.Sprintf("Failed to look up ticket: %v", err), http.StatusBadGateway)
		default:
			http.Error(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	// Only ticket holders are registered with the streaming provider; a partial
	// registration still results in a successful login
	registrations := jstream.RegistrationMap{}
	if entitlement.HasTicket {
		registrations = s.registrar.RegisterAll(req.Context(), identity.Email, s.tracks)
	}
	s.log.WithFields(logrus.Fields{
		"email":         identity.Email,
		"has_ticket":    entitlement.HasTicket,
		"registered":    len(registrations),
		"stream_tracks": len(s.tracks),
	}).Info("user logged in")

	creds, err := s.issuer.Issue(identity.Email, entitlement.HasTicket, registrations)
	if err != nil {
		http.Error(res, fmt.Sprintf("failed to issue credentials: %v", err), http.StatusInternalServerError)
		return
	}

	http.SetCookie(res, credential.NewCookie(creds.Private, creds.PrivateTtl))
	http.Redirect(res, req, s.redirectUrl(creds.Public), http.StatusFound)
}

// redirectUrl returns the static page URL with the public credential appended as the
// 'token' query parameter, preserving any query the page URL already carries
func (s *Server) redirectUrl(publicToken string) string {
	u := *s.staticPageUrl
	q := u.Query()
	q.Set("token", publicToken)
	u.RawQuery = q.Encode()
	return u.String()
}
