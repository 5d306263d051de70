package builder

import (
	"fmt"
	"strings"
)

// WhereBuilder helps build WHERE clauses.
type WhereBuilder struct {
	conditions []Condition
	paramStart int
}

// NewWhereBuilder creates a WhereBuilder numbering parameters from $1.
func NewWhereBuilder(conditions ...Condition) *WhereBuilder {
	return NewWhereBuilderWithStart(1, conditions...)
}

// NewWhereBuilderWithStart creates a WhereBuilder numbering parameters from
// $paramStart, for clauses that follow SET or VALUES arguments.
func NewWhereBuilderWithStart(paramStart int, conditions ...Condition) *WhereBuilder {
	return &WhereBuilder{
		conditions: conditions,
		paramStart: paramStart,
	}
}

// Add adds a condition to the WHERE clause.
func (w *WhereBuilder) Add(condition Condition) {
	w.conditions = append(w.conditions, condition)
}

// Build generates the WHERE clause SQL and arguments.
func (w *WhereBuilder) Build() (string, []any, error) {
	if len(w.conditions) == 0 {
		return "", nil, nil
	}
	sql, args, err := buildConditions(w.conditions, w.paramStart)
	if err != nil {
		return "", nil, err
	}
	return "WHERE " + sql, args, nil
}

// buildConditions recursively builds conditions.
func buildConditions(conditions []Condition, paramStart int) (string, []any, error) {
	var sb strings.Builder
	var args []any
	paramNum := paramStart

	for i, cond := range conditions {
		if i > 0 {
			logic := cond.Logic
			if logic == "" {
				logic = LogicAnd
			}
			sb.WriteString(" " + string(logic) + " ")
		}

		var condSQL string
		var condArgs []any
		var err error
		if len(cond.Group) > 0 {
			condSQL, condArgs, err = buildConditions(cond.Group, paramNum)
			condSQL = "(" + condSQL + ")"
		} else {
			condSQL, condArgs, err = buildCondition(cond, paramNum)
		}
		if err != nil {
			return "", nil, err
		}

		sb.WriteString(condSQL)
		args = append(args, condArgs...)
		paramNum += len(condArgs)
	}

	return sb.String(), args, nil
}

// buildCondition builds a single condition.
func buildCondition(cond Condition, paramNum int) (string, []any, error) {
	if cond.Raw {
		values, _ := cond.Value.([]any)
		sql, err := bindPlaceholders(cond.Column, paramNum, len(values))
		if err != nil {
			return "", nil, err
		}
		return sql, values, nil
	}

	column := cond.Column
	switch cond.Operator {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
		OpLike, OpILike:
		return fmt.Sprintf("%s %s $%d", column, cond.Operator, paramNum), []any{cond.Value}, nil

	case OpAny:
		return fmt.Sprintf("%s = ANY($%d)", column, paramNum), []any{cond.Value}, nil

	case OpIn:
		values, ok := cond.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("IN operator requires []any value")
		}
		if len(values) == 0 {
			// IN () is a syntax error; an empty set matches nothing.
			return "FALSE", nil, nil
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = fmt.Sprintf("$%d", paramNum+i)
		}
		return fmt.Sprintf("%s %s (%s)", column, cond.Operator, strings.Join(placeholders, ", ")), values, nil

	case OpIsNull:
		return fmt.Sprintf("%s %s", column, cond.Operator), nil, nil

	default:
		return "", nil, fmt.Errorf("unknown operator: %s", cond.Operator)
	}
}

// bindPlaceholders rewrites each ? in sql to a numbered $n parameter. A
// doubled ?? is emitted as a literal ?.
func bindPlaceholders(sql string, paramStart, want int) (string, error) {
	var sb strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			sb.WriteByte(sql[i])
			continue
		}
		if i+1 < len(sql) && sql[i+1] == '?' {
			sb.WriteByte('?')
			i++
			continue
		}
		fmt.Fprintf(&sb, "$%d", paramStart+n)
		n++
	}
	if n != want {
		return "", fmt.Errorf("raw condition %q has %d placeholders but %d arguments", sql, n, want)
	}
	return sb.String(), nil
}

// Eq creates an equality condition.
func Eq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpEqual, Value: value, Logic: LogicAnd}
}

// NotEq creates a not-equal condition.
func NotEq(column string, value any) Condition {
	return Condition{Column: column, Operator: OpNotEqual, Value: value, Logic: LogicAnd}
}

// Gt creates a greater-than condition.
func Gt(column string, value any) Condition {
	return Condition{Column: column, Operator: OpGreaterThan, Value: value, Logic: LogicAnd}
}

// Gte creates a greater-than-or-equal condition.
func Gte(column string, value any) Condition {
	return Condition{Column: column, Operator: OpGreaterThanOrEqual, Value: value, Logic: LogicAnd}
}

// Lt creates a less-than condition.
func Lt(column string, value any) Condition {
	return Condition{Column: column, Operator: OpLessThan, Value: value, Logic: LogicAnd}
}

// Lte creates a less-than-or-equal condition.
func Lte(column string, value any) Condition {
	return Condition{Column: column, Operator: OpLessThanOrEqual, Value: value, Logic: LogicAnd}
}

// In creates an IN condition.
func In(column string, values ...any) Condition {
	return Condition{Column: column, Operator: OpIn, Value: values, Logic: LogicAnd}
}

// Any matches column against a Go slice passed as one array parameter.
func Any(column string, slice any) Condition {
	return Condition{Column: column, Operator: OpAny, Value: slice, Logic: LogicAnd}
}

// Like creates a LIKE condition.
func Like(column string, pattern string) Condition {
	return Condition{Column: column, Operator: OpLike, Value: pattern, Logic: LogicAnd}
}

// ILike creates an ILIKE condition (case-insensitive).
func ILike(column string, pattern string) Condition {
	return Condition{Column: column, Operator: OpILike, Value: pattern, Logic: LogicAnd}
}

// IsNull creates an IS NULL condition.
func IsNull(column string) Condition {
	return Condition{Column: column, Operator: OpIsNull, Logic: LogicAnd}
}

// Raw creates a condition from SQL using ? placeholders.
//
//	builder.Raw("EXISTS (SELECT 1 FROM favourites f WHERE f.roaster_id = roasters.id AND f.user_id = ?)", userID)
func Raw(sql string, args ...any) Condition {
	return Condition{Column: sql, Value: args, Logic: LogicAnd, Raw: true}
}

// Or sets the logic operator to OR for the condition.
func Or(cond Condition) Condition {
	cond.Logic = LogicOr
	return cond
}

// Group creates a parenthesised group of conditions.
func Group(conditions ...Condition) Condition {
	return Condition{Group: conditions, Logic: LogicAnd}
}
