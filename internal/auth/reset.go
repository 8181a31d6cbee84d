package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
)

// MinPasswordLength applies to operator-supplied passwords
const MinPasswordLength = 8

// CredentialStore is the persistence a password reset needs
type CredentialStore interface {
	FindUserByEmail(ctx context.Context, email string) (*types.User, error)
	UpdateUserPasswordByEmail(ctx context.Context, email, passwordHash string) error
}

// ResetPassword replaces the credential of the user with email. An empty
// password is replaced by a generated one, which is returned so the operator
// can hand it over; a supplied password is never returned.
func ResetPassword(ctx context.Context, s CredentialStore, hasher PasswordHasher, auditor audit.Sink, m *metrics.Metrics, email, password string) (generated string, err error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", apperrors.InvalidInput("email is required")
	}

	if password == "" {
		password, err = GeneratePassword(24)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		generated = password
	}
	if len(password) < MinPasswordLength {
		return "", apperrors.InvalidInput("password must be at least %d characters", MinPasswordLength)
	}

	user, err := s.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperrors.NotFound("no user found with email %q", email)
		}
		return "", err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.UpdateUserPasswordByEmail(ctx, email, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperrors.NotFound("no user found with email %q", email)
		}
		return "", err
	}

	audit.Record(ctx, auditor, m, audit.Event{
		Action:     audit.EventUserPasswordReset,
		EntityType: audit.EntityUser,
		EntityID:   user.ID.String(),
		Meta:       map[string]any{"email": email, "generated": generated != ""},
	})

	return generated, nil
}

// GeneratePassword returns a URL-safe random password from bytesLen random
// bytes (at least 8)
func GeneratePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
