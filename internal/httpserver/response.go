package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"

	domain "nailbliss/session/internal/domain/session"
)

type errorResponse struct {
	Error string            `json:"error"`
	Kind  domain.ErrorKind  `json:"kind,omitempty"`
	State *domain.AuthState `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
