package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/pkg/runtime"
)

// Values sets the rows to insert.
func (q *InsertQuery[T]) Values(values ...T) *InsertQuery[T] {
	q.values = append(q.values, values...)
	return q
}

// Returning specifies columns to return after insert.
func (q *InsertQuery[T]) Returning(columns ...string) *InsertQuery[T] {
	q.returning = columns
	return q
}

// OnConflictDoNothing adds ON CONFLICT DO NOTHING clause.
func (q *InsertQuery[T]) OnConflictDoNothing(columns ...string) *InsertQuery[T] {
	q.onConflict = &OnConflict{Columns: columns, Action: DoNothing}
	return q
}

// OnConflictDoUpdate overwrites the listed columns from EXCLUDED on conflict.
func (q *InsertQuery[T]) OnConflictDoUpdate(columns []string, updates ...string) *InsertQuery[T] {
	q.onConflict = &OnConflict{Columns: columns, Action: DoUpdate, Updates: updates}
	return q
}

// ToSQL generates the INSERT SQL and arguments.
func (q *InsertQuery[T]) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if q.table == nil {
		return "", nil, fmt.Errorf("table metadata not available")
	}
	if len(q.values) == 0 {
		return "", nil, fmt.Errorf("no values to insert")
	}

	columns, _, err := structToValues(q.values[0], q.table)
	if err != nil {
		return "", nil, fmt.Errorf("failed to extract values: %w", err)
	}

	var sql strings.Builder
	var args []any
	paramNum := 1

	sql.WriteString("INSERT INTO ")
	sql.WriteString(q.table.Name)
	if len(columns) == 0 {
		sql.WriteString(" DEFAULT VALUES")
	} else {
		sql.WriteString(" (")
		sql.WriteString(strings.Join(columns, ", "))
		sql.WriteString(") VALUES ")

		rows := make([]string, len(q.values))
		for i, val := range q.values {
			rowColumns, rowValues, err := structToValues(val, q.table)
			if err != nil {
				return "", nil, fmt.Errorf("failed to extract values from row %d: %w", i, err)
			}
			if !equalStrings(rowColumns, columns) {
				return "", nil, fmt.Errorf("row %d sets different columns than row 0", i)
			}
			placeholders := make([]string, len(rowValues))
			for j, v := range rowValues {
				placeholders[j] = fmt.Sprintf("$%d", paramNum)
				paramNum++
				args = append(args, v)
			}
			rows[i] = "(" + strings.Join(placeholders, ", ") + ")"
		}
		sql.WriteString(strings.Join(rows, ", "))
	}

	if q.onConflict != nil {
		sql.WriteString(" ON CONFLICT")
		if len(q.onConflict.Columns) > 0 {
			sql.WriteString(" (" + strings.Join(q.onConflict.Columns, ", ") + ")")
		}
		switch q.onConflict.Action {
		case DoNothing:
			sql.WriteString(" DO NOTHING")
		case DoUpdate:
			if len(q.onConflict.Updates) == 0 {
				return "", nil, fmt.Errorf("ON CONFLICT DO UPDATE requires at least one column")
			}
			sets := make([]string, len(q.onConflict.Updates))
			for i, col := range q.onConflict.Updates {
				sets[i] = col + " = EXCLUDED." + col
			}
			sql.WriteString(" " + string(DoUpdate) + " " + strings.Join(sets, ", "))
		}
	}

	if len(q.returning) > 0 {
		sql.WriteString(" RETURNING ")
		sql.WriteString(strings.Join(q.returning, ", "))
	}

	return sql.String(), args, nil
}

// Exec executes the INSERT and returns the number of inserted rows.
func (q *InsertQuery[T]) Exec(ctx context.Context) (int64, error) {
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

// ExecReturning executes the INSERT and returns the inserted rows.
func (q *InsertQuery[T]) ExecReturning(ctx context.Context) ([]T, error) {
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

// One inserts a single row and returns it as stored. With
// OnConflictDoNothing a skipped row yields runtime.ErrNotFound.
func (q *InsertQuery[T]) One(ctx context.Context) (*T, error) {
	results, err := q.ExecReturning(ctx)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s: %w", q.table.Name, runtime.ErrNotFound)
	}
	return &results[0], nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
