package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aliuyar1234/taskhub/internal/rbac"
	"github.com/aliuyar1234/taskhub/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*store.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := store.New(db, store.DialectPostgres)
	require.NoError(t, err)
	return s, mock
}

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"postgres foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, false},
		{"other", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.IsDuplicateKeyError(tt.err))
		})
	}
}

func TestCreateMembership_PostgresUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO memberships`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "memberships_user_org_unique"})

	_, err := s.CreateMembership(context.Background(), uuid.New(), uuid.New(), rbac.RoleMember)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMembership_UsesDollarPlaceholders(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM memberships m JOIN users u .* WHERE m\.org_id = \$1 AND m\.user_id = \$2`).
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindMembership(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTasks_QueryErrorIsWrapped(t *testing.T) {
	s, mock := newMockStore(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT .* FROM tasks WHERE org_id = \$1 ORDER BY created_at DESC`).
		WillReturnError(boom)

	_, err := s.ListTasksByOrg(context.Background(), uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTask_NoRowsAffected(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM tasks WHERE id = \$1 AND org_id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteTask(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
