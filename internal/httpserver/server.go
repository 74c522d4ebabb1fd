package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nailbliss/session/internal/config"
	domain "nailbliss/session/internal/domain/session"
	sessionusecase "nailbliss/session/internal/usecase/session"

	"github.com/gorilla/websocket"
)

// SessionManager is the slice of the session manager the bridge drives.
type SessionManager interface {
	Snapshot() domain.AuthState
	Watch() (<-chan domain.AuthState, func())
	ClearError()
	SignUp(ctx context.Context, in sessionusecase.SignUpInput) error
	SignIn(ctx context.Context, email, password string, rememberMe bool) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, password string) error
	VerifyRecovery(ctx context.Context, tokenHash string) error
}

// Server exposes the session manager to a local UI over HTTP.
type Server struct {
	httpServer     *http.Server
	router         *http.ServeMux
	sessions       SessionManager
	upgrader       websocket.Upgrader
	allowedOrigins []string
	addr           string
}

// NewServer constructs a new Server with configured dependencies.
func NewServer(cfg config.Config, sessions SessionManager) *Server {
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withLogging(withCORS(mux, cfg.AllowedOrigins)),
			ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
		},
		router:         mux,
		sessions:       sessions,
		allowedOrigins: cfg.AllowedOrigins,
		addr:           addr,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.registerRoutes()
	return srv
}

// Start bootstraps the HTTP server on the provided address.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}

// checkOrigin admits same-host requests, requests without an Origin
// header, and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host) {
		return true
	}
	return isOriginAllowed(origin, s.allowedOrigins)
}
