package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "gestionale/pkg/domain"
)

// ClaimsValidator validates a bearer token and returns the actor it asserts.
// The engine trusts the identity provider's claims; it performs no
// authentication of its own.
type ClaimsValidator interface {
	ValidateToken(tokenString string) (id.Actor, error)
}

type contextKeyActor struct{}

// ContextKeyActor is exported for tests that inject an actor directly.
var ContextKeyActor = contextKeyActor{}

// GetActor retrieves the authenticated actor from the context.
func GetActor(ctx context.Context) (id.Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(id.Actor)
	return actor, ok
}

// WithActor returns a context carrying the actor; test helper.
func WithActor(ctx context.Context, actor id.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequireAuth validates the bearer token and stores the asserted actor in
// the request context. Requests without a usable token get 401.
func RequireAuth(validator ClaimsValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err.Error(),
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
