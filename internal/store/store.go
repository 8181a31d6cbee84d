// Package store is the persistence layer for users, organizations,
// memberships, tasks and the audit log. Every operation is a single
// statement; callers get no cross-row transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Dialect selects placeholder syntax and constraint error decoding
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store provides access to all persisted entities
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

// Option customizes a Store
type Option func(*Store)

// WithClock overrides the time source used for created_at/updated_at
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = func() time.Time { return now().UTC() }
	}
}

// New creates a store over an open database handle
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	var format sq.PlaceholderFormat
	switch dialect {
	case DialectPostgres:
		format = sq.Dollar
	case DialectSQLite:
		format = sq.Question
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format).RunWith(db),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect the store was built for
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
