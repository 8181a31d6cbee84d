package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

var userColumns = []string{"id", "email", "full_name", "password_hash", "created_at", "updated_at"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) getUser(ctx context.Context, where sq.Eq) (*types.User, error) {
	u, err := scanUser(s.sb.
		Select(userColumns...).
		From("users").
		Where(where).
		QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

// FindUserByEmail retrieves a user by exact email
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return s.getUser(ctx, sq.Eq{"email": email})
}

// CreateUser inserts a user. Returns ErrDuplicateKey if the email is taken.
func (s *Store) CreateUser(ctx context.Context, email, fullName, passwordHash string) (*types.User, error) {
	now := s.now()
	u := &types.User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.sb.
		Insert("users").
		Columns(userColumns...).
		Values(u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt, u.UpdatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, wrapWriteError(err, "create user")
	}

	return u, nil
}

// UpdateUserName changes a user's display name
func (s *Store) UpdateUserName(ctx context.Context, id uuid.UUID, fullName string) error {
	res, err := s.sb.
		Update("users").
		Set("full_name", fullName).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	return expectAffected(res)
}

// UpdateUserPasswordByEmail replaces the credential hash of the user with
// the given email
func (s *Store) UpdateUserPasswordByEmail(ctx context.Context, email, passwordHash string) error {
	res, err := s.sb.
		Update("users").
		Set("password_hash", passwordHash).
		Set("updated_at", s.now()).
		Where(sq.Eq{"email": email}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
