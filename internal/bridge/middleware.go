package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/discordsync/internal/auth"
	"github.com/devilmonastery/discordsync/internal/domain/entities"
	"github.com/devilmonastery/discordsync/internal/domain/repositories"
	"github.com/devilmonastery/discordsync/internal/pkg/metrics"
)

type contextKey string

const claimsKey contextKey = "bridge-claims"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// logRequests logs bridge API requests and feeds the request counter.
// Health checks are skipped to reduce noise.
func logRequests(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.BridgeRequests.WithLabelValues(route, strconv.Itoa(wrapped.statusCode)).Inc()

		log.Info("bridge request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("client", r.RemoteAddr),
		)
	})
}

// authMiddleware validates bridge tokens: signature and expiry via JWT,
// revocation via the stored token record.
type authMiddleware struct {
	jwt    *auth.JWTManager
	tokens repositories.TokenRepository
	log    *slog.Logger
}

func newAuthMiddleware(jwt *auth.JWTManager, tokens repositories.TokenRepository, log *slog.Logger) *authMiddleware {
	return &authMiddleware{jwt: jwt, tokens: tokens, log: log}
}

// require authenticates the request and, when role is non-empty, demands
// that exact token role (admin tokens pass every check)
func (m *authMiddleware) require(role string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := m.jwt.ValidateToken(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		record, err := m.tokens.Get(r.Context(), claims.TokenID)
		if err != nil {
			if errors.Is(err, repositories.ErrTokenNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown token")
				return
			}
			m.log.Error("token lookup failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "token lookup failed")
			return
		}
		if !record.Usable(time.Now()) {
			writeError(w, http.StatusUnauthorized, "token revoked or expired")
			return
		}

		if role != "" && claims.Role != role && claims.Role != entities.TokenRoleAdmin {
			writeError(w, http.StatusForbidden, "insufficient token role")
			return
		}

		// Best effort, usage tracking only
		if err := m.tokens.Touch(r.Context(), record.ID); err != nil {
			m.log.Debug("failed to touch token", slog.String("error", err.Error()))
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
