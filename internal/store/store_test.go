package store_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/aliuyar1234/taskhub/internal/storetest"
	"github.com/aliuyar1234/taskhub/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns a clock that advances one second per call
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	u, err := s.CreateUser(ctx, "alice@example.com", "Alice", "hash")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, u.ID)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.CreateUser(ctx, "alice@example.com", "Other", "hash")
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("lookup is exact match", func(t *testing.T) {
		got, err := s.FindUserByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)

		_, err = s.FindUserByEmail(ctx, "ALICE@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update name", func(t *testing.T) {
		require.NoError(t, s.UpdateUserName(ctx, u.ID, "Alice A."))
		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice A.", got.FullName)

		assert.ErrorIs(t, s.UpdateUserName(ctx, uuid.New(), "x"), store.ErrNotFound)
	})

	t.Run("update password", func(t *testing.T) {
		require.NoError(t, s.UpdateUserPasswordByEmail(ctx, "alice@example.com", "new-hash"))
		got, err := s.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", got.PasswordHash)

		assert.ErrorIs(t, s.UpdateUserPasswordByEmail(ctx, "nobody@example.com", "h"), store.ErrNotFound)
	})
}

func TestOrgs(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	o, err := s.CreateOrg(ctx, "Acme")
	require.NoError(t, err)

	_, err = s.CreateOrg(ctx, "Acme")
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	got, err := s.FindOrgByName(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = s.GetOrg(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemberships(t *testing.T) {
	ctx := context.Background()
	f := storetest.NewFixture(t)
	s := f.Store

	acme := f.Org("Acme")
	globex := f.Org("Globex")
	alice := f.User("alice@example.com")
	bob := f.User("bob@example.com")
	carol := f.User("carol@example.com")

	f.Member(bob, acme, rbac.RoleViewer)
	aliceAcme := f.Member(alice, acme, rbac.RoleOwner)
	f.Member(carol, acme, rbac.RoleManager)
	f.Member(alice, globex, rbac.RoleMember)

	t.Run("find joins user and org", func(t *testing.T) {
		m, err := s.FindMembership(ctx, alice.ID, acme.ID)
		require.NoError(t, err)
		assert.Equal(t, aliceAcme.ID, m.ID)
		assert.Equal(t, rbac.RoleOwner, m.Role)
		require.NotNil(t, m.User)
		require.NotNil(t, m.Organization)
		assert.Equal(t, "alice@example.com", m.User.Email)
		assert.Equal(t, "Acme", m.Organization.Name)

		_, err = s.FindMembership(ctx, bob.ID, globex.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("one membership per user and org", func(t *testing.T) {
		_, err := s.CreateMembership(ctx, alice.ID, acme.ID, rbac.RoleAdmin)
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("list by org is ordered by role", func(t *testing.T) {
		members, err := s.ListMembershipsByOrg(ctx, acme.ID)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, rbac.RoleOwner, members[0].Role)
		assert.Equal(t, rbac.RoleManager, members[1].Role)
		assert.Equal(t, rbac.RoleViewer, members[2].Role)
		assert.Equal(t, "bob@example.com", members[2].User.Email)
		assert.Empty(t, members[0].User.PasswordHash)
	})

	t.Run("list by user", func(t *testing.T) {
		ms, err := s.ListMembershipsByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.Equal(t, "Acme", ms[0].Organization.Name)
		assert.Equal(t, "Globex", ms[1].Organization.Name)
	})

	t.Run("update role", func(t *testing.T) {
		m, err := s.FindMembership(ctx, bob.ID, acme.ID)
		require.NoError(t, err)
		require.NoError(t, s.UpdateMembershipRole(ctx, m.ID, rbac.RoleMember))

		got, err := s.FindMembershipByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleMember, got.Role)
	})

	t.Run("count owners", func(t *testing.T) {
		n, err := s.CountMembersWithRole(ctx, acme.ID, rbac.RoleOwner)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("delete is scoped to org", func(t *testing.T) {
		m, err := s.FindMembership(ctx, carol.ID, acme.ID)
		require.NoError(t, err)

		assert.ErrorIs(t, s.DeleteMembership(ctx, globex.ID, m.ID), store.ErrNotFound)
		require.NoError(t, s.DeleteMembership(ctx, acme.ID, m.ID))

		_, err = s.FindMembershipByID(ctx, m.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t, store.WithClock(tickingClock()))

	acme, err := s.CreateOrg(ctx, "Acme")
	require.NoError(t, err)
	globex, err := s.CreateOrg(ctx, "Globex")
	require.NoError(t, err)
	alice, err := s.CreateUser(ctx, "alice@example.com", "", "x")
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, "bob@example.com", "", "x")
	require.NoError(t, err)

	desc := "first"
	due := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	first := &types.Task{
		OrgID:            acme.ID,
		Title:            "One",
		Description:      &desc,
		Status:           types.TaskStatusTodo,
		DueDate:          &due,
		CreatedByUserID:  alice.ID,
		AssignedToUserID: &bob.ID,
	}
	require.NoError(t, s.CreateTask(ctx, first))

	second := &types.Task{OrgID: acme.ID, Title: "Two", Status: types.TaskStatusDone, CreatedByUserID: bob.ID}
	require.NoError(t, s.CreateTask(ctx, second))

	t.Run("get round trips optional columns", func(t *testing.T) {
		got, err := s.GetTaskInOrg(ctx, acme.ID, first.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Description)
		assert.Equal(t, "first", *got.Description)
		require.NotNil(t, got.DueDate)
		assert.True(t, due.Equal(*got.DueDate))
		require.NotNil(t, got.AssignedToUserID)
		assert.Equal(t, bob.ID, *got.AssignedToUserID)
	})

	t.Run("get in another org is not found", func(t *testing.T) {
		_, err := s.GetTaskInOrg(ctx, globex.ID, first.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		tasks, err := s.ListTasksByOrg(ctx, acme.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, second.ID, tasks[0].ID)
		assert.Equal(t, first.ID, tasks[1].ID)

		none, err := s.ListTasksByOrg(ctx, globex.ID)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("partial update clears and sets", func(t *testing.T) {
		var changes store.TaskChanges
		changes.SetTitle("One!")
		changes.SetAssignee(nil)
		changes.SetDescription(nil)

		got, err := s.UpdateTask(ctx, acme.ID, first.ID, changes)
		require.NoError(t, err)
		assert.Equal(t, "One!", got.Title)
		assert.Nil(t, got.AssignedToUserID)
		assert.Nil(t, got.Description)
		require.NotNil(t, got.DueDate)
		assert.Equal(t, types.TaskStatusTodo, got.Status)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	})

	t.Run("empty update returns current row", func(t *testing.T) {
		got, err := s.UpdateTask(ctx, acme.ID, second.ID, store.TaskChanges{})
		require.NoError(t, err)
		assert.Equal(t, "Two", got.Title)
	})

	t.Run("update in another org is not found", func(t *testing.T) {
		var changes store.TaskChanges
		changes.SetStatus(types.TaskStatusDone)
		_, err := s.UpdateTask(ctx, globex.ID, first.ID, changes)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteTask(ctx, globex.ID, second.ID), store.ErrNotFound)
		require.NoError(t, s.DeleteTask(ctx, acme.ID, second.ID))
		_, err := s.GetTaskInOrg(ctx, acme.ID, second.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t, store.WithClock(tickingClock()))

	acme, err := s.CreateOrg(ctx, "Acme")
	require.NoError(t, err)
	alice, err := s.CreateUser(ctx, "alice@example.com", "", "x")
	require.NoError(t, err)

	for i, action := range []string{"TASK_CREATED", "TASK_UPDATED", "TASK_DELETED"} {
		e := &types.AuditEntry{
			Action:      action,
			ActorUserID: &alice.ID,
			OrgID:       &acme.ID,
			EntityType:  "task",
			EntityID:    "t-1",
			Meta:        map[string]any{"seq": i},
		}
		require.NoError(t, s.InsertAuditEntry(ctx, e))
		assert.NotEqual(t, uuid.Nil, e.ID)
	}

	system := &types.AuditEntry{Action: "SYSTEM", OrgID: &acme.ID}
	require.NoError(t, s.InsertAuditEntry(ctx, system))

	entries, err := s.ListAuditByOrg(ctx, acme.ID, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "SYSTEM", entries[0].Action)
	assert.Nil(t, entries[0].ActorUserID)
	assert.Empty(t, entries[0].ActorEmail)
	assert.Empty(t, entries[0].Meta)

	assert.Equal(t, "TASK_DELETED", entries[1].Action)
	assert.Equal(t, "alice@example.com", entries[1].ActorEmail)
	assert.Equal(t, "task", entries[1].EntityType)
	assert.EqualValues(t, 2, entries[1].Meta["seq"])
}

func TestListsBreakTimestampTiesByID(t *testing.T) {
	ctx := context.Background()
	frozen := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := storetest.New(t, store.WithClock(func() time.Time { return frozen }))

	acme, err := s.CreateOrg(ctx, "Acme")
	require.NoError(t, err)
	alice, err := s.CreateUser(ctx, "alice@example.com", "", "x")
	require.NoError(t, err)

	var taskIDs, auditIDs []string
	for i := 0; i < 5; i++ {
		task := &types.Task{OrgID: acme.ID, Title: "same instant", Status: types.TaskStatusTodo, CreatedByUserID: alice.ID}
		require.NoError(t, s.CreateTask(ctx, task))
		taskIDs = append(taskIDs, task.ID.String())

		e := &types.AuditEntry{Action: "TASK_CREATED", OrgID: &acme.ID, EntityType: "Task", EntityID: task.ID.String()}
		require.NoError(t, s.InsertAuditEntry(ctx, e))
		auditIDs = append(auditIDs, e.ID.String())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(taskIDs)))
	sort.Sort(sort.Reverse(sort.StringSlice(auditIDs)))

	for run := 0; run < 2; run++ {
		tasks, err := s.ListTasksByOrg(ctx, acme.ID)
		require.NoError(t, err)
		got := make([]string, 0, len(tasks))
		for _, task := range tasks {
			got = append(got, task.ID.String())
		}
		assert.Equal(t, taskIDs, got)

		entries, err := s.ListAuditByOrg(ctx, acme.ID, 10)
		require.NoError(t, err)
		got = got[:0]
		for _, e := range entries {
			got = append(got, e.ID.String())
		}
		assert.Equal(t, auditIDs, got)
	}
}
