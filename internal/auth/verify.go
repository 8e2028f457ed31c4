package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/golden-vcr/keyticket/internal/credential"
)

func (s *Server) handleVerify(res http.ResponseWriter, req *http.Request) {
	token := req.URL.Query().Get("token")
	if token == "" {
		http.Error(res, "'token' URL parameter is required", http.StatusBadRequest)
		return
	}

	claims, err := s.issuer.Verify(token)
	if err != nil {
		if errors.Is(err, credential.ErrExpiredCredential) {
			http.Error(res, "Token expired", http.StatusUnauthorized)
			return
		}
		http.Error(res, "Invalid token", http.StatusUnauthorized)
		return
	}

	res.Header().Set("content-type", "application/json")
	if err := json.NewEncoder(res).Encode(claims); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
