// Package storetest provides a migrated in-memory sqlite store for tests.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/db"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// New opens a private in-memory database, applies all migrations and
// returns a store over it. The database is dropped when the test ends.
func New(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	h, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	require.NoError(t, db.RunMigrations(context.Background(), h.DB, db.DriverSQLite))

	s, err := store.New(h.DB, store.DialectSQLite, opts...)
	require.NoError(t, err)
	return s
}

// Fixture seeds rows directly through the store
type Fixture struct {
	t     testing.TB
	Store *store.Store
}

// NewFixture returns a fixture over a fresh store
func NewFixture(t testing.TB) *Fixture {
	return &Fixture{t: t, Store: New(t)}
}

// User creates a user with a throwaway credential hash
func (f *Fixture) User(email string) *types.User {
	f.t.Helper()
	u, err := f.Store.CreateUser(context.Background(), email, "", "x")
	require.NoError(f.t, err)
	return u
}

// Org creates an organization
func (f *Fixture) Org(name string) *types.Organization {
	f.t.Helper()
	o, err := f.Store.CreateOrg(context.Background(), name)
	require.NoError(f.t, err)
	return o
}

// Member creates a membership
func (f *Fixture) Member(u *types.User, o *types.Organization, role rbac.Role) *types.Membership {
	f.t.Helper()
	m, err := f.Store.CreateMembership(context.Background(), u.ID, o.ID, role)
	require.NoError(f.t, err)
	return m
}

// UserIn creates a user and makes it a member of o with role
func (f *Fixture) UserIn(email string, o *types.Organization, role rbac.Role) *types.User {
	f.t.Helper()
	u := f.User(email)
	f.Member(u, o, role)
	return u
}
