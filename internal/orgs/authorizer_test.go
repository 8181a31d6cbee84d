package orgs

import (
	"context"
	"errors"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/apperrors"
	"github.com/aliuyar1234/taskhub/internal/metrics"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/storetest"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	ctx := context.Background()
	f := storetest.NewFixture(t)
	acme := f.Org("Acme")
	globex := f.Org("Globex")
	manager := f.UserIn("manager@acme.test", acme, rbac.RoleManager)
	outsider := f.UserIn("outsider@globex.test", globex, rbac.RoleOwner)

	m := metrics.New()
	authz := NewAuthorizer(f.Store, m)

	t.Run("role at or above the floor is allowed", func(t *testing.T) {
		for _, floor := range []rbac.Role{rbac.RoleViewer, rbac.RoleMember, rbac.RoleManager} {
			got, err := authz.RequireRole(ctx, manager.ID, acme.ID, floor)
			require.NoError(t, err, floor)
			assert.Equal(t, rbac.RoleManager, got.Role)
			require.NotNil(t, got.User)
			require.NotNil(t, got.Organization)
			assert.Equal(t, "manager@acme.test", got.User.Email)
			assert.Equal(t, "Acme", got.Organization.Name)
		}
	})

	t.Run("role below the floor is forbidden", func(t *testing.T) {
		for _, floor := range []rbac.Role{rbac.RoleAdmin, rbac.RoleOwner} {
			_, err := authz.RequireRole(ctx, manager.ID, acme.ID, floor)
			assert.ErrorIs(t, err, ErrInsufficientRole)
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
		}
	})

	t.Run("non-member is forbidden even with a high role elsewhere", func(t *testing.T) {
		_, err := authz.RequireRole(ctx, outsider.ID, acme.ID, rbac.RoleViewer)
		assert.ErrorIs(t, err, ErrNotMember)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("missing org is invalid input", func(t *testing.T) {
		_, err := authz.RequireRole(ctx, manager.ID, uuid.Nil, rbac.RoleViewer)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("VIEWER", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("VIEWER", "not_member")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("OWNER", "insufficient_role")))
}

type brokenFinder struct{}

func (brokenFinder) FindMembership(context.Context, uuid.UUID, uuid.UUID) (*types.Membership, error) {
	return nil, errors.New("connection refused")
}

func TestRequireRole_StoreFailureIsNotForbidden(t *testing.T) {
	authz := NewAuthorizer(brokenFinder{}, nil)
	_, err := authz.RequireRole(context.Background(), uuid.New(), uuid.New(), rbac.RoleViewer)
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrForbidden))
}
