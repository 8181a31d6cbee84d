package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/provision"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateArgs(t *testing.T) {
	tests := []struct {
		args    []string
		wantErr bool
	}{
		{nil, false},
		{[]string{"up"}, false},
		{[]string{"status"}, false},
		{[]string{"down"}, false},
		{[]string{"down", "1"}, false},
		{[]string{"sideways"}, true},
		{[]string{"up", "1"}, true},
		{[]string{"down", "-1"}, true},
		{[]string{"down", "x"}, true},
		{[]string{"down", "1", "2"}, true},
	}

	for _, tt := range tests {
		err := migrateArgs(migrateCmd, tt.args)
		if tt.wantErr {
			assert.Error(t, err, tt.args)
		} else {
			assert.NoError(t, err, tt.args)
		}
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "created user and membership", describe(provision.UserResult{UserCreated: true, MembershipCreated: true}))
	assert.Equal(t, "created membership", describe(provision.UserResult{MembershipCreated: true}))
	assert.Equal(t, "exists (kept role ADMIN)", describe(provision.UserResult{Role: rbac.RoleViewer, ExistingRole: rbac.RoleAdmin}))
	assert.Equal(t, "exists", describe(provision.UserResult{Role: rbac.RoleViewer, ExistingRole: rbac.RoleViewer}))
	assert.Equal(t, "failed: boom", describe(provision.UserResult{Err: errors.New("boom")}))
}

func TestSeedAndMigrateCommands(t *testing.T) {
	t.Setenv("TH_DB_DRIVER", "sqlite")
	t.Setenv("TH_DB_DSN", "file:"+filepath.Join(t.TempDir(), "cli.db")+"?_foreign_keys=on")
	t.Setenv("TH_BCRYPT_COST", "4")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"migrate", "up"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "00001_init.sql")

	out.Reset()
	rootCmd.SetArgs([]string{"seed"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "3 organizations, 4 users, 5 memberships created; 0 failed")

	out.Reset()
	rootCmd.SetArgs([]string{"seed"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "0 organizations, 0 users, 0 memberships created; 0 failed")

	out.Reset()
	rootCmd.SetArgs([]string{"admin", "reset-password", "--email", "owner.sd@example.com"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Password updated.")

	rootCmd.SetArgs([]string{"admin", "reset-password", "--email", "nobody@example.com", "--password", "Long-Enough-1"})
	assert.Error(t, rootCmd.Execute())
}
