package httpapi

import (
	"net/http"

	"github.com/mircoferri/taskhub/internal/auth"
)

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	members, err := s.directory.UserList(r.Context(), ident)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	members, err := s.directory.AdminList(r.Context(), ident)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ident := auth.IdentityFromContext(r.Context())
	if !ident.Authenticated {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":       ident.UserID,
		"username": ident.Username,
		"is_admin": ident.IsAdmin(),
	})
}
