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

var orgColumns = []string{"id", "name", "created_at", "updated_at"}

func (s *Store) getOrg(ctx context.Context, where sq.Eq) (*types.Organization, error) {
	var o types.Organization
	err := s.sb.
		Select(orgColumns...).
		From("organizations").
		Where(where).
		QueryRowContext(ctx).
		Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

// GetOrg retrieves an organization by ID
func (s *Store) GetOrg(ctx context.Context, id uuid.UUID) (*types.Organization, error) {
	return s.getOrg(ctx, sq.Eq{"id": id})
}

// FindOrgByName retrieves an organization by its unique name
func (s *Store) FindOrgByName(ctx context.Context, name string) (*types.Organization, error) {
	return s.getOrg(ctx, sq.Eq{"name": name})
}

// CreateOrg inserts an organization. Returns ErrDuplicateKey if the name is taken.
func (s *Store) CreateOrg(ctx context.Context, name string) (*types.Organization, error) {
	now := s.now()
	o := &types.Organization{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.sb.
		Insert("organizations").
		Columns(orgColumns...).
		Values(o.ID, o.Name, o.CreatedAt, o.UpdatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, wrapWriteError(err, "create organization")
	}

	return o, nil
}
