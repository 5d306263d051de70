package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/marshallshelly/roastery/pkg/runtime"
	"github.com/marshallshelly/roastery/pkg/schema"
)

// Introspector reads table and column definitions from the public schema.
type Introspector struct {
	db runtime.Querier
}

// NewIntrospector creates a new database introspector.
func NewIntrospector(db runtime.Querier) *Introspector {
	return &Introspector{db: db}
}

// columnRow is one row of information_schema.columns.
type columnRow struct {
	table     string
	name      string
	dataType  string
	udtName   string
	maxLength *int32
	precision *int32
	scale     *int32
	nullable  string
	def       *string
	position  int32
}

// IntrospectSchema returns every base table in the public schema keyed by
// name.
func (i *Introspector) IntrospectSchema(ctx context.Context) (map[string]*schema.TableMetadata, error) {
	const query = `
		SELECT c.table_name, c.column_name, c.data_type, c.udt_name,
		       c.character_maximum_length, c.numeric_precision, c.numeric_scale,
		       c.is_nullable, c.column_default, c.ordinal_position
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = 'public' AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := i.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*schema.TableMetadata)
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.table, &r.name, &r.dataType, &r.udtName, &r.maxLength,
			&r.precision, &r.scale, &r.nullable, &r.def, &r.position); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		table, ok := tables[r.table]
		if !ok {
			table = &schema.TableMetadata{Name: r.table}
			tables[r.table] = table
		}
		table.Columns = append(table.Columns, r.toColumn())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := i.loadPrimaryKeys(ctx, tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (i *Introspector) loadPrimaryKeys(ctx context.Context, tables map[string]*schema.TableMetadata) error {
	const query = `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = 'public' AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY tc.table_name, kcu.ordinal_position`

	rows, err := i.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query primary keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, constraint, column string
		if err := rows.Scan(&tableName, &constraint, &column); err != nil {
			return fmt.Errorf("failed to scan primary key: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			continue
		}
		if table.PrimaryKey == nil {
			table.PrimaryKey = &schema.PrimaryKeyMetadata{Name: constraint}
		}
		table.PrimaryKey.Columns = append(table.PrimaryKey.Columns, column)
	}
	return rows.Err()
}

func (r columnRow) toColumn() schema.ColumnMetadata {
	col := schema.ColumnMetadata{
		Name:     r.name,
		SQLType:  r.sqlType(),
		Nullable: r.nullable == "YES",
		Position: int(r.position),
	}
	col.IsJSONB = col.SQLType == "jsonb" || col.SQLType == "json"
	if r.def != nil {
		if strings.HasPrefix(*r.def, "nextval(") {
			col.AutoIncrement = true
			if col.SQLType == "bigint" {
				col.SQLType = "bigserial"
			} else {
				col.SQLType = "serial"
			}
		} else {
			def := *r.def
			col.Default = &def
		}
	}
	return col
}

// sqlType renders the column type the way it would be written in DDL.
func (r columnRow) sqlType() string {
	switch r.dataType {
	case "character varying":
		if r.maxLength != nil {
			return fmt.Sprintf("varchar(%d)", *r.maxLength)
		}
		return "varchar"
	case "character":
		if r.maxLength != nil {
			return fmt.Sprintf("char(%d)", *r.maxLength)
		}
		return "char"
	case "numeric":
		if r.precision != nil && r.scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *r.precision, *r.scale)
		}
		return "numeric"
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "ARRAY":
		return pgBaseType(strings.TrimPrefix(r.udtName, "_")) + "[]"
	case "USER-DEFINED":
		return r.udtName
	default:
		return r.dataType
	}
}

// pgBaseType maps internal udt names used by array columns to DDL names.
func pgBaseType(udt string) string {
	switch udt {
	case "int2":
		return "smallint"
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	case "varchar":
		return "varchar"
	default:
		return udt
	}
}
