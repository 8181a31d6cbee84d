package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
)

var membershipColumns = []string{"id", "user_id", "org_id", "role", "created_at", "updated_at"}

// FindMembership retrieves the membership of userID in orgID with its user
// and organization joined in.
func (s *Store) FindMembership(ctx context.Context, userID, orgID uuid.UUID) (*types.Membership, error) {
	var m types.Membership
	var u types.User
	var o types.Organization

	err := s.sb.
		Select(
			"m.id", "m.user_id", "m.org_id", "m.role", "m.created_at", "m.updated_at",
			"u.id", "u.email", "u.full_name", "u.password_hash", "u.created_at", "u.updated_at",
			"o.id", "o.name", "o.created_at", "o.updated_at",
		).
		From("memberships m").
		Join("users u ON u.id = m.user_id").
		Join("organizations o ON o.id = m.org_id").
		Where(sq.Eq{"m.user_id": userID, "m.org_id": orgID}).
		QueryRowContext(ctx).
		Scan(
			&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
			&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	m.User = &u
	m.Organization = &o
	return &m, nil
}

// FindMembershipByID retrieves a membership row without joins
func (s *Store) FindMembershipByID(ctx context.Context, id uuid.UUID) (*types.Membership, error) {
	var m types.Membership
	err := s.sb.
		Select(membershipColumns...).
		From("memberships").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// CreateMembership inserts a membership. The (user_id, org_id) unique
// constraint turns a concurrent duplicate into ErrDuplicateKey.
func (s *Store) CreateMembership(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) (*types.Membership, error) {
	now := s.now()
	m := &types.Membership{
		ID:        uuid.New(),
		UserID:    userID,
		OrgID:     orgID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.sb.
		Insert("memberships").
		Columns(membershipColumns...).
		Values(m.ID, m.UserID, m.OrgID, m.Role, m.CreatedAt, m.UpdatedAt).
		ExecContext(ctx)
	if err != nil {
		return nil, wrapWriteError(err, "create membership")
	}

	return m, nil
}

// UpdateMembershipRole changes the role of a membership
func (s *Store) UpdateMembershipRole(ctx context.Context, id uuid.UUID, role rbac.Role) error {
	res, err := s.sb.
		Update("memberships").
		Set("role", role).
		Set("updated_at", s.now()).
		Where(sq.Eq{"id": id}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	return expectAffected(res)
}

// DeleteMembership removes a membership scoped to its organization
func (s *Store) DeleteMembership(ctx context.Context, orgID, id uuid.UUID) error {
	res, err := s.sb.
		Delete("memberships").
		Where(sq.Eq{"id": id, "org_id": orgID}).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return expectAffected(res)
}

// CountMembersWithRole counts memberships in orgID holding role
func (s *Store) CountMembersWithRole(ctx context.Context, orgID uuid.UUID, role rbac.Role) (int, error) {
	var n int
	err := s.sb.
		Select("COUNT(*)").
		From("memberships").
		Where(sq.Eq{"org_id": orgID, "role": role}).
		QueryRowContext(ctx).
		Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// ListMembershipsByOrg returns the memberships of an organization with each
// user joined in, highest role first.
func (s *Store) ListMembershipsByOrg(ctx context.Context, orgID uuid.UUID) ([]types.Membership, error) {
	rows, err := s.sb.
		Select(
			"m.id", "m.user_id", "m.org_id", "m.role", "m.created_at", "m.updated_at",
			"u.id", "u.email", "u.full_name", "u.created_at", "u.updated_at",
		).
		From("memberships m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.org_id": orgID}).
		OrderBy("m.created_at ASC", "m.id ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []types.Membership
	for rows.Next() {
		var m types.Membership
		var u types.User
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.User = &u
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	sortByRoleDesc(members)
	return members, nil
}

// ListMembershipsByUser returns every membership of a user with the
// organization joined in, highest role first.
func (s *Store) ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]types.Membership, error) {
	rows, err := s.sb.
		Select(
			"m.id", "m.user_id", "m.org_id", "m.role", "m.created_at", "m.updated_at",
			"o.id", "o.name", "o.created_at", "o.updated_at",
		).
		From("memberships m").
		Join("organizations o ON o.id = m.org_id").
		Where(sq.Eq{"m.user_id": userID}).
		OrderBy("o.name ASC").
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	defer rows.Close()

	var memberships []types.Membership
	for rows.Next() {
		var m types.Membership
		var o types.Organization
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.CreatedAt, &m.UpdatedAt,
			&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.Organization = &o
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}

	sortByRoleDesc(memberships)
	return memberships, nil
}

// sortByRoleDesc orders by role priority; the role column is text so the
// database cannot do this ordering itself.
func sortByRoleDesc(ms []types.Membership) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].Role.Priority() > ms[j].Role.Priority()
	})
}
