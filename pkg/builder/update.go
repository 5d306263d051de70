package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Set assigns a value to column. Later calls for the same column replace
// earlier ones; columns are emitted in first-set order.
func (q *UpdateQuery[T]) Set(column string, value any) *UpdateQuery[T] {
	return q.assign(assignment{column: column, value: value})
}

// SetExpr assigns a raw SQL expression, e.g. SetExpr("updated_at", "now()").
func (q *UpdateQuery[T]) SetExpr(column, expr string) *UpdateQuery[T] {
	return q.assign(assignment{column: column, value: expr, expr: true})
}

func (q *UpdateQuery[T]) assign(a assignment) *UpdateQuery[T] {
	for i := range q.sets {
		if q.sets[i].column == a.column {
			q.sets[i] = a
			return q
		}
	}
	q.sets = append(q.sets, a)
	return q
}

// Where adds a WHERE condition.
func (q *UpdateQuery[T]) Where(conditions ...Condition) *UpdateQuery[T] {
	q.where = append(q.where, conditions...)
	return q
}

// Returning specifies columns to return after update.
func (q *UpdateQuery[T]) Returning(columns ...string) *UpdateQuery[T] {
	q.returning = columns
	return q
}

// ToSQL generates the UPDATE SQL and arguments. An UPDATE without WHERE is
// rejected.
func (q *UpdateQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}
	if len(q.sets) == 0 {
		return "", nil, fmt.Errorf("no columns to update")
	}
	if len(q.where) == 0 {
		return "", nil, fmt.Errorf("refusing to update %s without a WHERE clause", q.table.Name)
	}

	var sql strings.Builder
	var args []any
	paramNum := 1

	sql.WriteString("UPDATE ")
	sql.WriteString(q.table.Name)
	sql.WriteString(" SET ")

	setClauses := make([]string, len(q.sets))
	for i, set := range q.sets {
		if set.expr {
			setClauses[i] = fmt.Sprintf("%s = %s", set.column, set.value)
			continue
		}
		value := set.value
		if col := q.table.GetColumn(set.column); col != nil && col.IsJSONB && !implementsValuer(typeOf(value)) {
			encoded, err := marshalJSONB(value)
			if err != nil {
				return "", nil, fmt.Errorf("failed to marshal JSONB column %s: %w", set.column, err)
			}
			value = encoded
		}
		setClauses[i] = fmt.Sprintf("%s = $%d", set.column, paramNum)
		args = append(args, value)
		paramNum++
	}
	sql.WriteString(strings.Join(setClauses, ", "))

	whereSQL, whereArgs, err := NewWhereBuilderWithStart(paramNum, q.where...).Build()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build WHERE clause: %w", err)
	}
	sql.WriteString(" ")
	sql.WriteString(whereSQL)
	args = append(args, whereArgs...)

	if len(q.returning) > 0 {
		sql.WriteString(" RETURNING ")
		sql.WriteString(strings.Join(q.returning, ", "))
	}

	return sql.String(), args, nil
}

// Exec executes the UPDATE and returns the number of affected rows.
func (q *UpdateQuery[T]) Exec(ctx context.Context) (int64, error) {
	q.returning = nil
	sql, args, err := q.ToSQL()
	if err != nil {
		return 0, err
	}
	conn, err := q.db.querier()
	if err != nil {
		return 0, err
	}
	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExecReturning executes the UPDATE and returns the updated rows.
func (q *UpdateQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
	if len(q.returning) == 0 {
		q.Returning("*")
	}
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

// One updates and returns a single row, or runtime.ErrNotFound when nothing
// matched.
func (q *UpdateQuery[T]) One(ctx context.Context) (*T, error) {
	results, err := q.ExecReturning(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", q.table.Name, runtime.ErrNotFound)
	}
	return &results[0], nil
}
