package builder

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/marshallshelly/roastery/pkg/registry"
	"github.com/marshallshelly/roastery/pkg/runtime"
	"github.com/marshallshelly/roastery/pkg/schema"
)

var (
	scannerType = reflect.TypeFor[interface{ Scan(any) error }]()
	valuerType  = reflect.TypeFor[driver.Valuer]()
)

// Collect scans every row of a hand-written query into T using T's
// registered column mapping, then closes rows. Columns without a matching
// field are discarded.
func Collect[T any](rows pgx.Rows) ([]T, error) {
	var model T
	table, err := registry.GetOrRegister(model)
	if err != nil {
		rows.Close()
		return nil, err
	}
	return collect[T](rows, table)
}

func collect[T any](rows pgx.Rows, table *schema.TableMetadata) ([]T, error) {
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		var item T
		if err := scanIntoStruct(rows, &item, table); err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, runtime.ClassifyError(err)
	}
	return results, nil
}

// scanIntoStruct scans the current row into dest by column name.
func scanIntoStruct(rows pgx.Rows, dest any, table *schema.TableMetadata) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Pointer || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dest must be a pointer to struct")
	}
	destValue = destValue.Elem()

	fields := rows.FieldDescriptions()
	targets := make([]any, len(fields))
	var jsonbTargets []*jsonbScanTarget

	for i, fd := range fields {
		col := table.GetColumn(fd.Name)
		if col == nil {
			targets[i] = new(any)
			continue
		}
		field := destValue.FieldByName(col.GoField)
		if !field.IsValid() || !field.CanSet() {
			targets[i] = new(any)
			continue
		}

		if col.IsJSONB && !implementsScanner(field.Type()) {
			target := &jsonbScanTarget{field: field}
			targets[i] = target
			jsonbTargets = append(jsonbTargets, target)
		} else {
			targets[i] = field.Addr().Interface()
		}
	}

	if err := rows.Scan(targets...); err != nil {
		return fmt.Errorf("failed to scan %s row: %w", table.Name, err)
	}

	for _, target := range jsonbTargets {
		if err := target.unmarshalIntoField(); err != nil {
			return fmt.Errorf("failed to unmarshal JSONB: %w", err)
		}
	}
	return nil
}

// jsonbScanTarget buffers a jsonb column for fields that are not Scanners.
type jsonbScanTarget struct {
	field reflect.Value
	data  []byte
}

// Scan implements sql.Scanner.
func (j *jsonbScanTarget) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		j.data = nil
	case []byte:
		j.data = append([]byte(nil), v...)
	case string:
		j.data = []byte(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal decoded JSONB: %w", err)
		}
		j.data = data
	}
	return nil
}

func (j *jsonbScanTarget) unmarshalIntoField() error {
	if j.data == nil {
		j.field.Set(reflect.Zero(j.field.Type()))
		return nil
	}
	return json.Unmarshal(j.data, j.field.Addr().Interface())
}

func implementsScanner(t reflect.Type) bool {
	return t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType)
}

func implementsValuer(t reflect.Type) bool {
	if t == nil {
		return false
	}
	return t.Implements(valuerType) || reflect.PointerTo(t).Implements(valuerType)
}

func typeOf(v any) reflect.Type {
	return reflect.TypeOf(v)
}

// structToValues returns the columns and values to INSERT for model.
// Auto-increment columns and zero-valued columns with a database default are
// omitted so the database fills them in. JSONB values are marshalled unless
// the field type is a driver.Valuer.
func structToValues(model any, table *schema.TableMetadata) ([]string, []any, error) {
	modelValue := reflect.ValueOf(model)
	if modelValue.Kind() == reflect.Pointer {
		modelValue = modelValue.Elem()
	}
	if modelValue.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be a struct")
	}

	var columns []string
	var values []any

	for _, col := range table.Columns {
		field := modelValue.FieldByName(col.GoField)
		if !field.IsValid() {
			continue
		}
		if col.AutoIncrement && field.IsZero() {
			continue
		}
		if col.Default != nil && field.IsZero() {
			continue
		}

		columns = append(columns, col.Name)
		if col.IsJSONB && !implementsValuer(field.Type()) {
			encoded, err := marshalJSONB(field.Interface())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to marshal JSONB field %s: %w", col.GoField, err)
			}
			values = append(values, encoded)
		} else {
			values = append(values, field.Interface())
		}
	}

	return columns, values, nil
}

// marshalJSONB encodes value as a JSON string, or nil for SQL NULL. A string
// is returned because pgx encodes string parameters for jsonb as text while
// []byte would be sent as bytea.
func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
