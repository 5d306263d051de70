// Package store is the roastery repository layer. Every method takes a
// context and reports missing rows as runtime.ErrNotFound.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/marshallshelly/roastery/pkg/builder"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Store reads and writes roastery data through the query builder.
type Store struct {
	db *builder.DB
}

// New creates a Store backed by a connection pool.
func New(db *runtime.DB) *Store {
	return &Store{db: builder.New(db)}
}

// WithTx runs fn with a Store bound to one transaction. Nested calls reuse
// the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithTx(ctx, func(db *builder.DB) error {
		return fn(&Store{db: db})
	})
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.db.Runtime() == nil {
		_, err := s.exec(ctx, "SELECT 1")
		return err
	}
	return s.db.Runtime().Ping(ctx)
}

func (s *Store) querier() (runtime.Querier, error) {
	q := s.db.Querier()
	if q == nil {
		return nil, runtime.ErrNoConnection
	}
	return q, nil
}

func (s *Store) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	q, err := s.querier()
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Pagination defaults and bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Normalize clamps page to ≥ 1 and limit to 1..MaxLimit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// mustAffect turns a zero-row write into ErrNotFound.
func mustAffect(table string, n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(table)
	}
	return nil
}

func notFound(table string) error {
	return fmt.Errorf("%s: %w", table, runtime.ErrNotFound)
}

func isNotFound(err error) bool {
	return errors.Is(err, runtime.ErrNotFound)
}
