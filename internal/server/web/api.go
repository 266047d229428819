package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mvoronin/promptstash/internal/common"
	"github.com/mvoronin/promptstash/internal/server/auth"
)

// The JSON API authenticates with bearer JWTs, not session cookies: API
// clients never see redirects, maintenance pages, or impersonation.

func (s *Server) apiUserID(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", common.ErrInvalidToken
	}
	return auth.GetUserIDFromToken(token, s.secretKey)
}

// handleAPIToken exchanges credentials for a short-lived bearer token.
func (s *Server) handleAPIToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	token, err := s.users.IssueAPIToken(r.Context(), in.Email, []byte(in.Password))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAPIPrompts(w http.ResponseWriter, r *http.Request) {
	userID, err := s.apiUserID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	prompts, err := s.content.ListPrompts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}
