package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"identity-service/internal/models"
	"identity-service/internal/service"
	"identity-service/internal/token"
)

// Authenticator resolves bearer tokens and account roles.
type Authenticator interface {
	Authenticate(accessToken string) (*token.Payload, error)
	CheckRole(ctx context.Context, accountID string, roles ...models.Role) (bool, error)
}

type contextKey struct{}

var payloadKey = contextKey{}

// PayloadFromContext returns the token payload stored by Authenticate.
func PayloadFromContext(ctx context.Context) (*token.Payload, bool) {
	p, ok := ctx.Value(payloadKey).(*token.Payload)
	return p, ok && p != nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate rejects requests without a valid access token.
func Authenticate(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	h := responder{logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				h.respondWithJSON(w, http.StatusUnauthorized, Response{
					Error:   http.StatusText(http.StatusUnauthorized),
					Message: "Authorization token is required",
				})
				return
			}

			payload, err := auth.Authenticate(raw)
			if err != nil {
				h.respondWithJSON(w, http.StatusUnauthorized, Response{
					Error:   http.StatusText(http.StatusUnauthorized),
					Message: "Invalid or expired token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), payloadKey, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks the stored role of the authenticated account, so a
// demotion takes effect before the token expires. It must run after
// Authenticate.
func RequireRole(auth Authenticator, logger *zap.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	h := responder{logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, ok := PayloadFromContext(r.Context())
			if !ok {
				h.respondWithJSON(w, http.StatusUnauthorized, Response{
					Error:   http.StatusText(http.StatusUnauthorized),
					Message: "Authorization token is required",
				})
				return
			}

			allowed, err := auth.CheckRole(r.Context(), payload.ID, roles...)
			if err != nil {
				if errors.Is(err, service.ErrNotFound) {
					h.respondWithJSON(w, http.StatusUnauthorized, Response{
						Error:   http.StatusText(http.StatusUnauthorized),
						Message: "Invalid or expired token",
					})
					return
				}
				h.respondWithError(w, err, "Error checking role")
				return
			}
			if !allowed {
				h.respondWithError(w, service.ErrForbidden, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
