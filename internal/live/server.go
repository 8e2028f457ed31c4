package live

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type Server struct {
	catalog *Catalog
}

func NewServer(catalog *Catalog) *Server {
	return &Server{
		catalog: catalog,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	// GET /lives lists the configured live tracks; no credential is required
	r.Path("/lives").Methods("GET").HandlerFunc(s.handleGetLives)
}

func (s *Server) handleGetLives(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(s.catalog); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
