package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/audit"
	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/aliuyar1234/taskhub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMemberPassword is the temporary credential given to users created
// without an explicit password
const DefaultMemberPassword = "ChangeMe123!"

var (
	ErrMembershipNotFound    = &apperrors.Error{Kind: apperrors.ErrNotFound, Message: "Membership not found in this organization"}
	ErrCannotRemoveLastOwner = &apperrors.Error{Kind: apperrors.ErrConflict, Message: "Cannot remove the last owner of an organization"}
	ErrCannotDemoteLastOwner = &apperrors.Error{Kind: apperrors.ErrConflict, Message: "Cannot demote the last owner of an organization"}
	ErrConcurrentUpdate      = &apperrors.Error{Kind: apperrors.ErrConflict, Message: "Membership was modified concurrently, please retry"}
)

// MemberStore is the persistence the membership service needs
type MemberStore interface {
	MembershipFinder
	FindMembershipByID(ctx context.Context, id uuid.UUID) (*types.Membership, error)
	CreateMembership(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) (*types.Membership, error)
	UpdateMembershipRole(ctx context.Context, id uuid.UUID, role rbac.Role) error
	DeleteMembership(ctx context.Context, orgID, id uuid.UUID) error
	CountMembersWithRole(ctx context.Context, orgID uuid.UUID, role rbac.Role) (int, error)
	ListMembershipsByOrg(ctx context.Context, orgID uuid.UUID) ([]types.Membership, error)
	ListMembershipsByUser(ctx context.Context, userID uuid.UUID) ([]types.Membership, error)

	FindUserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, email, fullName, passwordHash string) (*types.User, error)
	UpdateUserName(ctx context.Context, id uuid.UUID, fullName string) error
}

// MembersConfig holds the policy knobs of the membership service
type MembersConfig struct {
	// DefaultPassword is used for new users added without a password
	DefaultPassword string
	// ProtectLastOwner rejects removing or demoting an organization's only
	// OWNER. Off by default: any ADMIN may remove or demote any member.
	ProtectLastOwner bool
}

// MembersService manages organization memberships under ADMIN+ authorization
type MembersService struct {
	store   MemberStore
	authz   *Authorizer
	hasher  auth.PasswordHasher
	auditor audit.Sink
	metrics *metrics.Metrics
	cfg     MembersConfig
}

func NewMembersService(s MemberStore, authz *Authorizer, hasher auth.PasswordHasher, auditor audit.Sink, m *metrics.Metrics, cfg MembersConfig) *MembersService {
	if cfg.DefaultPassword == "" {
		cfg.DefaultPassword = DefaultMemberPassword
	}
	return &MembersService{store: s, authz: authz, hasher: hasher, auditor: auditor, metrics: m, cfg: cfg}
}

// AddMemberInput describes the user to add to or update in an organization
type AddMemberInput struct {
	Email    string    `json:"email" validate:"required,email,max=255"`
	FullName string    `json:"fullName" validate:"max=255"`
	Role     rbac.Role `json:"role" validate:"required,role"`
	Password *string   `json:"password,omitempty"`
}

// AddMemberResult is the outcome of AddOrUpdateMember. It never carries the
// password or its hash outside of User.PasswordHash, which is not serialized.
type AddMemberResult struct {
	User            *types.User
	Organization    *types.Organization
	Membership      *types.Membership
	IsNewUser       bool
	IsNewMembership bool
	RoleChanged     bool
}

// ListMembers returns every membership of orgID, highest role first, with
// the user joined in. Callers are expected to have authorized the request.
func (s *MembersService) ListMembers(ctx context.Context, orgID uuid.UUID) ([]types.Membership, error) {
	if orgID == uuid.Nil {
		return nil, ErrMissingOrg
	}
	return s.store.ListMembershipsByOrg(ctx, orgID)
}

// ListUserOrganizations returns every membership of userID with the
// organization joined in, highest role first
func (s *MembersService) ListUserOrganizations(ctx context.Context, userID uuid.UUID) ([]types.Membership, error) {
	return s.store.ListMembershipsByUser(ctx, userID)
}

// AddOrUpdateMember makes the user identified by in.Email a member of orgID
// with in.Role, creating the user if needed. Repeating a call with the same
// input changes nothing and reports all flags false. The actor is
// authorized before the input is looked at.
func (s *MembersService) AddOrUpdateMember(ctx context.Context, actorUserID, orgID uuid.UUID, in AddMemberInput) (*AddMemberResult, error) {
	actor, err := s.authz.RequireRole(ctx, actorUserID, orgID, rbac.RoleAdmin)
	if err != nil {
		return nil, err
	}

	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	role, err := rbac.ParseRole(string(in.Role))
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid role")
	}

	user, isNewUser, err := s.ensureUser(ctx, in)
	if err != nil {
		return nil, err
	}

	membership, isNewMembership, roleChanged, err := s.ensureMembership(ctx, user.ID, orgID, role)
	if err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, s.metrics, audit.Event{
		Action:      audit.EventOrgUserAddedOrUpdated,
		ActorUserID: &actorUserID,
		OrgID:       &orgID,
		EntityType:  audit.EntityUser,
		EntityID:    user.ID.String(),
		Meta: map[string]any{
			"email":           user.Email,
			"role":            string(membership.Role),
			"membershipId":    membership.ID.String(),
			"isNewUser":       isNewUser,
			"isNewMembership": isNewMembership,
			"roleChanged":     roleChanged,
		},
	})

	log.Info().
		Str("org_id", orgID.String()).
		Str("user_id", user.ID.String()).
		Str("role", string(membership.Role)).
		Bool("new_user", isNewUser).
		Bool("new_membership", isNewMembership).
		Bool("role_changed", roleChanged).
		Msg("Org member added or updated")

	return &AddMemberResult{
		User:            user,
		Organization:    actor.Organization,
		Membership:      membership,
		IsNewUser:       isNewUser,
		IsNewMembership: isNewMembership,
		RoleChanged:     roleChanged,
	}, nil
}

func (s *MembersService) ensureUser(ctx context.Context, in AddMemberInput) (*types.User, bool, error) {
	user, err := s.store.FindUserByEmail(ctx, in.Email)
	if err == nil {
		if in.FullName != "" && user.FullName != in.FullName {
			if err := s.store.UpdateUserName(ctx, user.ID, in.FullName); err != nil {
				return nil, false, fmt.Errorf("failed to sync user name: %w", err)
			}
			user.FullName = in.FullName
		}
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	password := s.cfg.DefaultPassword
	if in.Password != nil && *in.Password != "" {
		password = *in.Password
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err = s.store.CreateUser(ctx, in.Email, in.FullName, hash)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, false, err
	}

	// a concurrent call created the user between lookup and insert
	user, err = s.store.FindUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload user: %w", err)
	}
	return user, false, nil
}

// ensureMembership creates the (user, org) membership or moves it to role.
// A unique violation on create means a concurrent call won the insert; the
// existing row is then updated instead.
func (s *MembersService) ensureMembership(ctx context.Context, userID, orgID uuid.UUID, role rbac.Role) (m *types.Membership, created, roleChanged bool, err error) {
	m, err = s.store.FindMembership(ctx, userID, orgID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		m, err = s.store.CreateMembership(ctx, userID, orgID, role)
		if err == nil {
			return m, true, false, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, false, false, err
		}

		log.Debug().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Msg("Membership created concurrently, retrying as update")

		m, err = s.store.FindMembership(ctx, userID, orgID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, false, ErrConcurrentUpdate
		}
		if err != nil {
			return nil, false, false, err
		}
	case err != nil:
		return nil, false, false, err
	}

	if m.Role == role {
		return m, false, false, nil
	}

	if m.Role == rbac.RoleOwner {
		if err := s.checkNotLastOwner(ctx, orgID, ErrCannotDemoteLastOwner); err != nil {
			return nil, false, false, err
		}
	}

	if err := s.store.UpdateMembershipRole(ctx, m.ID, role); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, false, ErrConcurrentUpdate
		}
		return nil, false, false, err
	}
	m.Role = role
	return m, false, true, nil
}

func (s *MembersService) checkNotLastOwner(ctx context.Context, orgID uuid.UUID, violation error) error {
	if !s.cfg.ProtectLastOwner {
		return nil
	}
	owners, err := s.store.CountMembersWithRole(ctx, orgID, rbac.RoleOwner)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return violation
	}
	return nil
}

// RemoveMember deletes membershipID from orgID. The actor needs ADMIN+ in
// orgID regardless of the target's role. A membership of another
// organization is reported as not found.
func (s *MembersService) RemoveMember(ctx context.Context, actorUserID, orgID, membershipID uuid.UUID) (*types.Membership, error) {
	if _, err := s.authz.RequireRole(ctx, actorUserID, orgID, rbac.RoleAdmin); err != nil {
		return nil, err
	}

	m, err := s.store.FindMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	if m.OrgID != orgID {
		return nil, ErrMembershipNotFound
	}

	if m.Role == rbac.RoleOwner {
		if err := s.checkNotLastOwner(ctx, orgID, ErrCannotRemoveLastOwner); err != nil {
			return nil, err
		}
	}

	if err := s.store.DeleteMembership(ctx, orgID, membershipID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}

	audit.Record(ctx, s.auditor, s.metrics, audit.MembershipEvent(audit.EventOrgUserRemoved, actorUserID, orgID, m.ID, map[string]any{
		"userId": m.UserID.String(),
		"role":   string(m.Role),
	}))

	log.Info().
		Str("org_id", orgID.String()).
		Str("membership_id", membershipID.String()).
		Str("actor_user_id", actorUserID.String()).
		Msg("Org member removed")

	return m, nil
}
