package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golden-vcr/keyticket/internal/jstream"
)

// GetClientTokenStatusFunc reports whether the streaming provider will currently issue
// us a client token
type GetClientTokenStatusFunc func(ctx context.Context) error

type Server struct {
	getClientTokenStatus GetClientTokenStatusFunc
	timeout              time.Duration
}

func NewServer(tokens jstream.ClientTokenProvider, timeout time.Duration) *Server {
	return &Server{
		getClientTokenStatus: func(ctx context.Context) error {
			_, err := tokens.Get(ctx)
			return err
		},
		timeout: timeout,
	}
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), s.timeout)
	defer cancel()

	status := s.resolveStatus(ctx)
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(status); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) resolveStatus(ctx context.Context) Status {
	if err := s.getClientTokenStatus(ctx); err != nil {
		return Status{
			IsReady: false,
			Message: fmt.Sprintf("Unable to obtain a client token from the streaming provider; logins will not register users for playback. (Error: %s)", err),
		}
	}
	return Status{
		IsReady: true,
		Message: "The streaming provider is issuing client tokens. The keyticket server is fully operational!",
	}
}
