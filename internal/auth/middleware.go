package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller of a request
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// WithIdentity returns a context carrying id
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// RequireBearer validates the `Authorization: Bearer` token and injects the
// caller's identity into the request context. Requests without a valid
// token get 401.
func RequireBearer(issuer *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				apperrors.WriteUnauthorized(w, r, "Authentication required")
				return
			}

			claims, err := issuer.Parse(strings.TrimSpace(token))
			if err != nil {
				log.Debug().Err(err).Str("request_id", apperrors.GetRequestID(r.Context())).Msg("Invalid access token")
				apperrors.WriteUnauthorized(w, r, "Invalid or expired token")
				return
			}

			userID, _ := claims.UserID()
			ctx := WithIdentity(r.Context(), Identity{UserID: userID, Email: claims.Email})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the caller from the request context
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// GetUserID retrieves the user ID from the request context
// Returns uuid.Nil if no user is authenticated
func GetUserID(ctx context.Context) uuid.UUID {
	id, ok := GetIdentity(ctx)
	if !ok {
		return uuid.Nil
	}
	return id.UserID
}
