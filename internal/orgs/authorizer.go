package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotMember is returned when a user has no membership in the organization
	ErrNotMember = &apperrors.Error{Kind: apperrors.ErrForbidden, Message: "You are not a member of this organization"}

	// ErrInsufficientRole is returned when a member's role is below the required role
	ErrInsufficientRole = &apperrors.Error{Kind: apperrors.ErrForbidden, Message: "You do not have sufficient role for this action"}

	// ErrMissingOrg is returned when no organization was selected
	ErrMissingOrg = &apperrors.Error{Kind: apperrors.ErrInvalidInput, Message: "Organization context is required"}
)

// MembershipFinder looks up a membership with its user and organization
// joined in
type MembershipFinder interface {
	FindMembership(ctx context.Context, userID, orgID uuid.UUID) (*types.Membership, error)
}

// Authorizer decides whether a user holds at least a given role in an
// organization. It keeps no state between calls.
type Authorizer struct {
	memberships MembershipFinder
	metrics     *metrics.Metrics
}

func NewAuthorizer(memberships MembershipFinder, m *metrics.Metrics) *Authorizer {
	return &Authorizer{memberships: memberships, metrics: m}
}

// RequireRole returns the caller's membership, with User and Organization
// populated, when its role is at least minRole. Non-members get
// ErrNotMember and members below minRole get ErrInsufficientRole; both are
// Forbidden.
func (a *Authorizer) RequireRole(ctx context.Context, userID, orgID uuid.UUID, minRole rbac.Role) (*types.Membership, error) {
	if orgID == uuid.Nil {
		return nil, ErrMissingOrg
	}

	m, err := a.memberships.FindMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Debug().
				Str("user_id", userID.String()).
				Str("org_id", orgID.String()).
				Msg("RBAC: User is not a member of organization")
			a.metrics.AuthzDecision(string(minRole), "not_member")
			return nil, ErrNotMember
		}
		return nil, fmt.Errorf("failed to check org membership: %w", err)
	}

	if !rbac.AtLeast(m.Role, minRole) {
		log.Warn().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Str("user_role", string(m.Role)).
			Str("required_role", string(minRole)).
			Msg("RBAC: Insufficient permissions")
		a.metrics.AuthzDecision(string(minRole), "insufficient_role")
		return nil, ErrInsufficientRole
	}

	a.metrics.AuthzDecision(string(minRole), "allowed")
	return m, nil
}
