package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	domain "nailbliss/session/internal/domain/session"
	sessionusecase "nailbliss/session/internal/usecase/session"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/api/session", http.HandlerFunc(s.handleSession))
	s.router.Handle("/api/session/error", http.HandlerFunc(s.handleClearError))
	s.router.Handle("/api/session/stream", http.HandlerFunc(s.handleStream))
	s.router.Handle("/api/session/sign-up", http.HandlerFunc(s.handleSignUp))
	s.router.Handle("/api/session/sign-in", http.HandlerFunc(s.handleSignIn))
	s.router.Handle("/api/session/sign-out", http.HandlerFunc(s.handleSignOut))
	s.router.Handle("/api/session/reset-password", http.HandlerFunc(s.handleResetPassword))
	s.router.Handle("/api/session/update-password", http.HandlerFunc(s.handleUpdatePassword))
	s.router.Handle("/api/session/recover", http.HandlerFunc(s.handleRecover))
}

type stateResponse struct {
	State domain.AuthState `json:"state"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"connection": string(s.sessions.Snapshot().ConnectionStatus),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{State: s.sessions.Snapshot()})
}

func (s *Server) handleClearError(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, http.MethodDelete)
		return
	}
	s.sessions.ClearError()
	writeJSON(w, http.StatusOK, stateResponse{State: s.sessions.Snapshot()})
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var payload sessionusecase.SignUpInput
	if !decodePayload(w, r, &payload) {
		return
	}
	s.respond(w, s.sessions.SignUp(r.Context(), payload), http.StatusCreated)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var payload struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"rememberMe"`
	}
	if !decodePayload(w, r, &payload) {
		return
	}
	s.respond(w, s.sessions.SignIn(r.Context(), payload.Email, payload.Password, payload.RememberMe), http.StatusOK)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	s.respond(w, s.sessions.SignOut(r.Context()), http.StatusOK)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if !decodePayload(w, r, &payload) {
		return
	}
	s.respond(w, s.sessions.ResetPassword(r.Context(), payload.Email), http.StatusAccepted)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var payload struct {
		Password string `json:"password"`
	}
	if !decodePayload(w, r, &payload) {
		return
	}
	s.respond(w, s.sessions.UpdatePassword(r.Context(), payload.Password), http.StatusOK)
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var payload struct {
		TokenHash string `json:"tokenHash"`
	}
	if !decodePayload(w, r, &payload) {
		return
	}
	err := s.sessions.VerifyRecovery(r.Context(), payload.TokenHash)
	if errors.Is(err, domain.ErrRecoveryUnsupported) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	s.respond(w, err, http.StatusOK)
}

// respond writes the current state on success, or the classified failure
// with a status derived from its kind.
func (s *Server) respond(w http.ResponseWriter, err error, okStatus int) {
	if err == nil {
		writeJSON(w, okStatus, stateResponse{State: s.sessions.Snapshot()})
		return
	}
	info := sessionusecase.Classify(err)
	state := s.sessions.Snapshot()
	writeJSON(w, statusForKind(info.Kind), errorResponse{
		Error: info.Message,
		Kind:  info.Kind,
		State: &state,
	})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNetworkError:
		return http.StatusServiceUnavailable
	case domain.KindServerUnavailable:
		return http.StatusBadGateway
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized
	case domain.KindEmailNotConfirmed, domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindUserAlreadyExists:
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

func decodePayload(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}
