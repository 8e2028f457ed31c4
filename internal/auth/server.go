package auth

import (
	"context"
	"net/url"

	"github.com/golden-vcr/keyticket/internal/credential"
	"github.com/golden-vcr/keyticket/internal/jstream"
	"github.com/golden-vcr/keyticket/internal/live"
	"github.com/golden-vcr/keyticket/internal/pretix"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Registrar registers a ticket holder for every configured stream; satisfied by
// *jstream.Registrar
type Registrar interface {
	RegisterAll(ctx context.Context, email string, tracks []live.Track) jstream.RegistrationMap
}

// Issuer mints and decodes credentials; satisfied by *credential.Issuer
type Issuer interface {
	Issue(email string, hasTicket bool, registrations map[string]bool) (*credential.Credentials, error)
	Verify(token string) (*credential.Claims, error)
}

type Server struct {
	pretixClient     pretix.Client
	liveTicketItemId int
	registrar        Registrar
	tracks           []live.Track
	issuer           Issuer
	staticPageUrl    *url.URL
	log              *logrus.Entry
}

func NewServer(pretixClient pretix.Client, liveTicketItemId int, registrar Registrar, catalog *live.Catalog, issuer Issuer, staticPageUrl string, log *logrus.Entry) (*Server, error) {
	u, err := url.Parse(staticPageUrl)
	if err != nil {
		return nil, err
	}
	return &Server{
		pretixClient:     pretixClient,
		liveTicketItemId: liveTicketItemId,
		registrar:        registrar,
		tracks:           catalog.Tracks,
		issuer:           issuer,
		staticPageUrl:    u,
		log:              log,
	}, nil
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	// Login endpoint: pretix redirects the user here with an authorization code once
	// they've signed in; we resolve their ticket, register them for playback, and send
	// them on to the static page with freshly-issued credentials
	r.Path("/callback").Methods("GET").HandlerFunc(s.handleCallback)

	// Introspection endpoint: decodes a credential of either kind so that the static
	// page can render the user's state
	r.Path("/verify").Methods("GET").HandlerFunc(s.handleVerify)
}
