package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/finledger/syncengine/internal/server/handlers"
	"github.com/finledger/syncengine/internal/server/jwt"
)

// AuthMiddleware validates the bearer token and stores the client id in
// the request context.
func AuthMiddleware(logger *slog.Logger, tokens *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header", "path", r.URL.Path)
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				http.Error(w, "Unauthorized: invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				logger.Warn("invalid access token", "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), handlers.ClientIDKey, claims.ClientID)
			logger.Debug("client authenticated", "client_id", claims.ClientID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
