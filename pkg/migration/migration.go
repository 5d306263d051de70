// Package migration generates, tracks and applies SQL schema migrations.
package migration

import (
	"time"

	"github.com/marshallshelly/roastery/pkg/schema"
)

// Migration represents a database migration.
type Migration struct {
	Version   string // Version/timestamp (e.g., "20250101000000")
	Name      string // Migration name (e.g., "init")
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
}

// MigrationFile represents a migration file pair on disk.
type MigrationFile struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// SchemaDiff represents differences between the models and the database.
type SchemaDiff struct {
	TablesAdded    []schema.TableMetadata
	TablesDropped  []schema.TableMetadata
	TablesModified []TableDiff
}

// TableDiff represents column changes to a single table.
type TableDiff struct {
	TableName      string
	ColumnsAdded   []schema.ColumnMetadata
	ColumnsDropped []schema.ColumnMetadata
}

// MigrationStatus represents the status of a migration.
type MigrationStatus string

const (
	// StatusPending means the migration has not been applied.
	StatusPending MigrationStatus = "pending"
	// StatusApplied means the migration has been applied.
	StatusApplied MigrationStatus = "applied"
	// StatusFailed means the migration failed to apply.
	StatusFailed MigrationStatus = "failed"
)

// MigrationRecord represents a row in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	Name      string
	Status    MigrationStatus
	AppliedAt *time.Time
	Error     *string
}

// HasChanges returns true if there are any schema differences.
func (d *SchemaDiff) HasChanges() bool {
	return len(d.TablesAdded) > 0 || len(d.TablesDropped) > 0 || len(d.TablesModified) > 0
}

// HasChanges returns true if the table has any changes.
func (t *TableDiff) HasChanges() bool {
	return len(t.ColumnsAdded) > 0 || len(t.ColumnsDropped) > 0
}

// GenerateVersion generates a timestamp-based version string.
// Format: YYYYMMDDHHmmss
func GenerateVersion() string {
	return time.Now().UTC().Format("20060102150405")
}

// GenerateFileName generates a migration filename.
// Format: {version}_{name}.{up|down}.sql
func GenerateFileName(version, name, direction string) string {
	return version + "_" + name + "." + direction + ".sql"
}
