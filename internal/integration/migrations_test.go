package integration

import (
	"context"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/stretchr/testify/require"
)

func TestIntegration_MigrationsApplyToFreshPostgres(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"users", "organizations", "memberships", "tasks", "audit_log"} {
		var count int
		err := s.DB().QueryRowContext(context.Background(), `
			SELECT COUNT(*)
			FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, table)
	}
}

func TestIntegration_UniqueConstraintsMapToDuplicateKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "dup@example.com", "Dup", "x")
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, "dup@example.com", "Dup", "x")
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	o, err := s.CreateOrg(ctx, "Dup Org")
	require.NoError(t, err)
	_, err = s.CreateOrg(ctx, "Dup Org")
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	_, err = s.CreateMembership(ctx, u.ID, o.ID, rbac.RoleMember)
	require.NoError(t, err)
	_, err = s.CreateMembership(ctx, u.ID, o.ID, rbac.RoleAdmin)
	require.ErrorIs(t, err, store.ErrDuplicateKey)
}
