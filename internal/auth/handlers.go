package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// UserFinder looks up users by login email
type UserFinder interface {
	FindUserByEmail(ctx context.Context, email string) (*types.User, error)
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// MeResponse describes the authenticated caller
type MeResponse struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
}

// HandleLogin handles POST /api/auth/login
func HandleLogin(users UserFinder, hasher PasswordHasher, issuer *TokenIssuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := validation.DecodeJSON(r, &req); err != nil {
			apperrors.WriteServiceError(w, r, err, "Invalid request")
			return
		}

		user, err := users.FindUserByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Info().Str("email", req.Email).Msg("Login failed: unknown email")
				apperrors.WriteUnauthorized(w, r, "Invalid credentials")
				return
			}
			log.Error().Err(err).Msg("Failed to look up user for login")
			apperrors.WriteInternalError(w, r, "Failed to log in")
			return
		}

		if !hasher.Verify(user.PasswordHash, req.Password) {
			log.Info().Str("user_id", user.ID.String()).Msg("Login failed: wrong password")
			apperrors.WriteUnauthorized(w, r, "Invalid credentials")
			return
		}

		token, err := issuer.Issue(user.ID, user.Email)
		if err != nil {
			log.Error().Err(err).Msg("Failed to issue access token")
			apperrors.WriteInternalError(w, r, "Failed to log in")
			return
		}

		log.Info().Str("user_id", user.ID.String()).Msg("User logged in")
		apperrors.WriteSuccess(w, r, http.StatusOK, LoginResponse{AccessToken: token})
	}
}

// HandleMe handles GET /api/me
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		if !ok {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, MeResponse{UserID: id.UserID, Email: id.Email})
	}
}
