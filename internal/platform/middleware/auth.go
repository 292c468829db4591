package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"safeharbor/pkg/domain"
	"safeharbor/pkg/requestcontext"
)

// RequireAuth authenticates the bearer token and injects the resulting actor
// principal into the context. The core only ever sees the opaque actor; token
// validation stays here at the transport boundary.
func RequireAuth(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logger.WarnContext(r.Context(), "rejected bearer token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithActor(r.Context(), domain.Actor(claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
