package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/golden-vcr/keyticket/internal/metrics"
)

// RouteRegistrar is implemented by each package that serves part of the HTTP API
type RouteRegistrar interface {
	RegisterRoutes(r *mux.Router)
}

// Server is the complete HTTP surface of the broker: the API routes contributed by
// each package, plus /healthz and /metrics, behind CORS handling so that the static
// page can call us with the session cookie attached
type Server struct {
	http.Handler
}

func New(health http.Handler, allowedOrigins []string, registrars ...RouteRegistrar) *Server {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	for _, registrar := range registrars {
		registrar.RegisterRoutes(r)
	}
	r.Path("/healthz").Methods("GET").Handler(health)
	r.Path("/metrics").Methods("GET").Handler(metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return &Server{Handler: c.Handler(r)}
}

// ErrWildcardOrigin is returned for a wildcard CORS origin: browsers refuse a literal
// '*' on credentialed requests, so the session cookie would never reach /session
var ErrWildcardOrigin = errors.New("CORS origins must be listed explicitly; '*' can't be used with credentials")

// ParseAllowedOrigins splits a comma-separated list of CORS origins
func ParseAllowedOrigins(value string) ([]string, error) {
	origins := make([]string, 0)
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if strings.Contains(origin, "*") {
			return nil, ErrWildcardOrigin
		}
		origins = append(origins, strings.TrimSuffix(origin, "/"))
	}
	if len(origins) == 0 {
		return nil, errors.New("at least one CORS origin is required")
	}
	return origins, nil
}
