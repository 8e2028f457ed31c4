package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/golden-vcr/keyticket/internal/credential"
	"github.com/golden-vcr/keyticket/internal/jstream"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// PlaybackResolver is satisfied by *Resolver
type PlaybackResolver interface {
	ResolvePlayback(ctx context.Context, token string, streamId string, debug bool) (*Playback, error)
}

type Server struct {
	resolver PlaybackResolver
	log      *logrus.Entry
}

func NewServer(resolver PlaybackResolver, log *logrus.Entry) *Server {
	return &Server{
		resolver: resolver,
		log:      log,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	// GET /session?stream_id=<id> exchanges the private credential (normally carried in
	// a cookie) for a playback URL for the given stream
	r.Path("/session").Methods("GET").HandlerFunc(s.handleGetSession)
}

func (s *Server) handleGetSession(res http.ResponseWriter, req *http.Request) {
	streamId := req.URL.Query().Get("stream_id")
	if streamId == "" {
		http.Error(res, "'stream_id' URL parameter is required", http.StatusBadRequest)
		return
	}
	debug := false
	if value := req.URL.Query().Get("is_debug"); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			http.Error(res, "'is_debug' URL parameter must be a boolean", http.StatusBadRequest)
			return
		}
		debug = parsed
	}

	token := credential.PrivateTokenFromRequest(req)
	if token == "" {
		http.Error(res, "Unauthorized", http.StatusUnauthorized)
		return
	}

	playback, err := s.resolver.ResolvePlayback(req.Context(), token, streamId, debug)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrExpiredCredential), errors.Is(err, credential.ErrInvalidCredential):
			// Clients can't tell an expired credential from a forged one; only we can
			s.log.WithField("stream_id", streamId).WithError(err).Info("rejected session credential")
			http.Error(res, "Unauthorized", http.StatusUnauthorized)
		case errors.Is(err, ErrNotRegistered):
			http.Error(res, "User is not registered for this stream.", http.StatusForbidden)
		case errors.Is(err, jstream.ErrUpstreamSession), errors.Is(err, jstream.ErrClientToken):
			http.Error(res, "Failed to obtain a playback session from the streaming provider.", http.StatusBadGateway)
		default:
			http.Error(res, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	res.Header().Set("cache-control", "no-store")
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(playback); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
