// Package bridge is the HTTP API the game-server plugin talks to. It carries
// presence events (player join/quit), the in-game side of the link flow,
// profile views, message delivery, and lifecycle control of the Discord bot.
package bridge

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devilmonastery/discordsync/internal/auth"
	"github.com/devilmonastery/discordsync/internal/bot"
	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/domain/services"
	"github.com/devilmonastery/discordsync/internal/presence"
)

// Server wires the bridge routes to the domain services
type Server struct {
	log     *slog.Logger
	tracker *presence.Tracker
	outbox  *presence.Outbox
	users   repositories.UserRepository
	link    *services.LinkService
	sync    *services.SyncService
	bot     *bot.Bot
	authMw  *authMiddleware
}

// NewServer creates the bridge API server
func NewServer(
	log *slog.Logger,
	tracker *presence.Tracker,
	outbox *presence.Outbox,
	users repositories.UserRepository,
	link *services.LinkService,
	syncSvc *services.SyncService,
	b *bot.Bot,
	jwtManager *auth.JWTManager,
	tokens repositories.TokenRepository,
) *Server {
	return &Server{
		log:     log,
		tracker: tracker,
		outbox:  outbox,
		users:   users,
		link:    link,
		sync:    syncSvc,
		bot:     b,
		authMw:  newAuthMiddleware(jwtManager, tokens, log),
	}
}

// Router builds the HTTP router with all routes and middleware
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	// Unauthenticated endpoints
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Game-server plugin routes
	bridgeRole := entities.TokenRoleBridge
	router.Handle("/v1/events/join", s.authMw.require(bridgeRole, s.handleJoin)).Methods("POST")
	router.Handle("/v1/events/quit", s.authMw.require(bridgeRole, s.handleQuit)).Methods("POST")
	router.Handle("/v1/link", s.authMw.require(bridgeRole, s.handleLink)).Methods("POST")
	router.Handle("/v1/outbox/{uuid}", s.authMw.require(bridgeRole, s.handleOutbox)).Methods("GET")
	router.Handle("/v1/profiles", s.authMw.require(bridgeRole, s.handleListProfiles)).Methods("GET")
	router.Handle("/v1/profiles/{name}", s.authMw.require(bridgeRole, s.handleViewProfile)).Methods("GET")
	router.Handle("/v1/status", s.authMw.require(bridgeRole, s.handleStatus)).Methods("GET")

	// Lifecycle control, admin tokens only
	adminRole := entities.TokenRoleAdmin
	router.Handle("/v1/control/{action}", s.authMw.require(adminRole, s.handleControl)).Methods("POST")

	return logRequests(s.log, router)
}

// writeJSON writes a JSON response body
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are gone; nothing useful left to do
		return
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
