// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/jason-s-yu/squadup/internal/auth"
	"github.com/jason-s-yu/squadup/internal/lobby"
	"github.com/jason-s-yu/squadup/internal/middleware"
	"github.com/jason-s-yu/squadup/internal/moderation"
	"github.com/jason-s-yu/squadup/internal/store"
	"github.com/sirupsen/logrus"
)

// Server holds everything the HTTP and websocket handlers share.
type Server struct {
	Hub      *lobby.Hub
	Store    store.LobbyStore
	Scorer   moderation.Scorer
	Sessions *auth.Sessions
	Logger   logrus.FieldLogger

	// ClientURL is the browser origin allowed by CORS and the websocket
	// origin check. "*" allows any origin.
	ClientURL string
	// StoreTimeout bounds store calls made by REST handlers.
	StoreTimeout time.Duration
}

// NewServer wires a Server. A zero storeTimeout falls back to lobby.DefaultJoinTimeout.
func NewServer(hub *lobby.Hub, st store.LobbyStore, scorer moderation.Scorer, sessions *auth.Sessions, logger logrus.FieldLogger, clientURL string, storeTimeout time.Duration) *Server {
	if storeTimeout <= 0 {
		storeTimeout = lobby.DefaultJoinTimeout
	}
	return &Server{
		Hub:          hub,
		Store:        st,
		Scorer:       scorer,
		Sessions:     sessions,
		Logger:       logger,
		ClientURL:    clientURL,
		StoreTimeout: storeTimeout,
	}
}

// Routes returns the full handler tree wrapped in CORS and access logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.RootHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /lobbies", s.ListLobbiesHandler)
	mux.HandleFunc("POST /lobbies", s.CreateLobbyHandler)
	mux.HandleFunc("GET /session", s.SessionHandler)
	mux.HandleFunc("GET /ws", s.LobbyWSHandler())

	var h http.Handler = mux
	h = middleware.CORS(s.ClientURL)(h)
	h = middleware.LogMiddleware(s.Logger)(h)
	return h
}

// RootHandler answers with a short banner.
func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("SquadUp backend is running"))
}

// HealthHandler is the liveness probe.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// originPatterns converts ClientURL into websocket.AcceptOptions origin patterns.
func (s *Server) originPatterns() []string {
	if s.ClientURL == "" || s.ClientURL == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(s.ClientURL)
	if err != nil || u.Host == "" {
		return []string{"*"}
	}
	return []string{u.Host}
}
