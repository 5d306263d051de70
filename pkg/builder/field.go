package builder

import "github.com/marshallshelly/roastery/pkg/registry"

// Col returns the column name for a Go field of T, so queries can refer to
// struct fields instead of repeating column names.
//
//	builder.Eq(builder.Col[models.Roaster]("Slug"), slug)
//
// Unknown fields are returned unchanged and fail when the query runs.
func Col[T any](goFieldName string) string {
	var zero T
	table, err := registry.GetOrRegister(zero)
	if err != nil {
		return goFieldName
	}
	if column := table.GetColumnByField(goFieldName); column != nil {
		return column.Name
	}
	return goFieldName
}

// Table returns the table name T is mapped to, or "" if T cannot be parsed.
func Table[T any]() string {
	var zero T
	table, err := registry.GetOrRegister(zero)
	if err != nil {
		return ""
	}
	return table.Name
}
