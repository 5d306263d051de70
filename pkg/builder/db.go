package builder

import (
	"context"

	"github.com/marshallshelly/roastery/pkg/registry"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// DB runs builder queries against a pool or a transaction.
type DB struct {
	conn runtime.Querier
	pool *runtime.DB
}

// New creates a query builder DB from a runtime DB.
func New(db *runtime.DB) *DB {
	d := &DB{pool: db}
	if db != nil {
		d.conn = db
	}
	return d
}

// NewFromQuerier creates a query builder DB over any Querier, such as a
// transaction handed out by runtime.DB.WithTx.
func NewFromQuerier(q runtime.Querier) *DB {
	return &DB{conn: q}
}

// Runtime returns the underlying runtime.DB, or nil inside a transaction.
func (d *DB) Runtime() *runtime.DB {
	return d.pool
}

// Querier returns the connection queries run on.
func (d *DB) Querier() runtime.Querier {
	return d.conn
}

// WithTx runs fn inside a transaction. Nested calls reuse the outer
// transaction.
func (d *DB) WithTx(ctx context.Context, fn func(tx *DB) error) error {
	if d.pool == nil {
		return fn(d)
	}
	return d.pool.WithTx(ctx, func(q runtime.Querier) error {
		return fn(NewFromQuerier(q))
	})
}

func (d *DB) querier() (runtime.Querier, error) {
	if d == nil || d.conn == nil {
		return nil, runtime.ErrNoConnection
	}
	return d.conn, nil
}

// Select creates a new type-safe SELECT query.
// Usage: builder.Select[Roaster](db).Where(...).All(ctx)
func Select[T any](d *DB) *SelectQuery[T] {
	var model T
	table, err := registry.GetOrRegister(model)
	return &SelectQuery[T]{
		db:      d,
		table:   table,
		err:     err,
		columns: []string{"*"},
	}
}

// Insert creates a new type-safe INSERT query.
// Usage: builder.Insert[Roaster](db).Values(r).One(ctx)
func Insert[T any](d *DB) *InsertQuery[T] {
	var model T
	table, err := registry.GetOrRegister(model)
	return &InsertQuery[T]{
		db:    d,
		table: table,
		err:   err,
	}
}

// Update creates a new type-safe UPDATE query.
// Usage: builder.Update[Roaster](db).Set("name", "Tim Wendelboe").Where(...).Exec(ctx)
func Update[T any](d *DB) *UpdateQuery[T] {
	var model T
	table, err := registry.GetOrRegister(model)
	return &UpdateQuery[T]{
		db:    d,
		table: table,
		err:   err,
	}
}

// Delete creates a new type-safe DELETE query.
// Usage: builder.Delete[Roaster](db).Where(...).Exec(ctx)
func Delete[T any](d *DB) *DeleteQuery[T] {
	var model T
	table, err := registry.GetOrRegister(model)
	return &DeleteQuery[T]{
		db:    d,
		table: table,
		err:   err,
	}
}
