package schema

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONB represents a free-form PostgreSQL jsonb object.
type JSONB map[string]any

// Value implements the driver.Valuer interface for database writes.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database reads.
func (j *JSONB) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	case map[string]any:
		*j = v
		return nil
	default:
		return errors.New("failed to scan JSONB: unsupported type")
	}
}
