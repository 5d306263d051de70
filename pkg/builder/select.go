package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Columns specifies which columns to select.
func (q *SelectQuery[T]) Columns(cols ...string) *SelectQuery[T] {
	q.columns = cols
	return q
}

// Where adds a WHERE condition.
func (q *SelectQuery[T]) Where(conditions ...Condition) *SelectQuery[T] {
	q.where = append(q.where, conditions...)
	return q
}

// Or adds an OR condition.
func (q *SelectQuery[T]) Or(condition Condition) *SelectQuery[T] {
	condition.Logic = LogicOr
	return q.Where(condition)
}

// OrderBy adds an ORDER BY clause.
func (q *SelectQuery[T]) OrderBy(column string, direction OrderDirection) *SelectQuery[T] {
	return q.OrderByNulls(column, direction, NullsDefault)
}

// OrderByNulls adds an ORDER BY clause with explicit NULL placement.
func (q *SelectQuery[T]) OrderByNulls(column string, direction OrderDirection, nulls NullsPosition) *SelectQuery[T] {
	q.orderBy = append(q.orderBy, OrderBy{
		Column:    column,
		Direction: direction,
		NullsPos:  nulls,
	})
	return q
}

// OrderByAsc adds an ascending ORDER BY clause.
func (q *SelectQuery[T]) OrderByAsc(column string) *SelectQuery[T] {
	return q.OrderBy(column, Asc)
}

// OrderByDesc adds a descending ORDER BY clause.
func (q *SelectQuery[T]) OrderByDesc(column string) *SelectQuery[T] {
	return q.OrderBy(column, Desc)
}

// Limit sets the LIMIT clause.
func (q *SelectQuery[T]) Limit(limit int) *SelectQuery[T] {
	q.limit = &limit
	return q
}

// Offset sets the OFFSET clause.
func (q *SelectQuery[T]) Offset(offset int) *SelectQuery[T] {
	q.offset = &offset
	return q
}

// Page applies LIMIT/OFFSET for a 1-based page number.
func (q *SelectQuery[T]) Page(page, limit int) *SelectQuery[T] {
	if page < 1 {
		page = 1
	}
	return q.Limit(limit).Offset((page - 1) * limit)
}

// Distinct adds DISTINCT to the query.
func (q *SelectQuery[T]) Distinct() *SelectQuery[T] {
	q.distinct = true
	return q
}

// ForUpdate adds FOR UPDATE lock.
func (q *SelectQuery[T]) ForUpdate() *SelectQuery[T] {
	q.forUpdate = true
	return q
}

func (q *SelectQuery[T]) check() error {
	if q.err != nil {
		return q.err
	}
	if q.table == nil {
		return fmt.Errorf("table metadata not available")
	}
	return nil
}

// ToSQL generates the SQL query and arguments.
func (q *SelectQuery[T]) ToSQL() (string, []any, error) {
	if err := q.check(); err != nil {
		return "", nil, err
	}

	var sql strings.Builder
	sql.WriteString("SELECT ")
	if q.distinct {
		sql.WriteString("DISTINCT ")
	}
	if len(q.columns) == 0 {
		sql.WriteString("*")
	} else {
		sql.WriteString(strings.Join(q.columns, ", "))
	}
	sql.WriteString(" FROM ")
	sql.WriteString(q.table.Name)

	whereSQL, args, err := NewWhereBuilder(q.where...).Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	if whereSQL != "" {
		sql.WriteString(" ")
		sql.WriteString(whereSQL)
	}

	if len(q.orderBy) > 0 {
		parts := make([]string, len(q.orderBy))
		for i, order := range q.orderBy {
			parts[i] = order.Column + " " + string(order.Direction)
			if order.NullsPos != NullsDefault {
				parts[i] += " " + string(order.NullsPos)
			}
		}
		sql.WriteString(" ORDER BY ")
		sql.WriteString(strings.Join(parts, ", "))
	}

	if q.limit != nil {
		fmt.Fprintf(&sql, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&sql, " OFFSET %d", *q.offset)
	}
	if q.forUpdate {
		sql.WriteString(" FOR UPDATE")
	}

	return sql.String(), args, nil
}

// All executes the query and returns all results. An empty result is an
// empty, non-nil slice.
func (q *SelectQuery[T]) All(ctx context.Context) ([]T, error) {
	sql, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}
	conn, err := q.db.querier()
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collect[T](rows, q.table)
}

// First returns the first matching row or runtime.ErrNotFound.
func (q *SelectQuery[T]) First(ctx context.Context) (*T, error) {
	results, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", q.table.Name, runtime.ErrNotFound)
	}
	return &results[0], nil
}

// Count returns the number of rows matching the WHERE conditions, ignoring
// ordering and pagination.
func (q *SelectQuery[T]) Count(ctx context.Context) (int64, error) {
	if err := q.check(); err != nil {
		return 0, err
	}
	whereSQL, args, err := NewWhereBuilder(q.where...).Build()
	if err != nil {
		return 0, err
	}
	sql := "SELECT COUNT(*) FROM " + q.table.Name
	if whereSQL != "" {
		sql += " " + whereSQL
	}

	conn, err := q.db.querier()
	if err != nil {
		return 0, err
	}
	var count int64
	if err := conn.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, runtime.ClassifyError(err)
	}
	return count, nil
}

// Exists reports whether any row matches the query.
func (q *SelectQuery[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
