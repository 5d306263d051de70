package migration

import (
	"sort"

	"github.com/marshallshelly/roastery/pkg/schema"
)

// bookkeepingTables are managed by the tooling, never by models.
var bookkeepingTables = map[string]bool{
	"schema_migrations": true,
	"data_migrations":   true,
}

// Differ compares model metadata with an introspected database.
type Differ struct{}

// NewDiffer creates a new schema differ.
func NewDiffer() *Differ {
	return &Differ{}
}

// Compare returns the changes needed to bring the database schema in line
// with the models. Added tables keep model order; everything else is sorted
// by name.
func (d *Differ) Compare(models []*schema.TableMetadata, database map[string]*schema.TableMetadata) *SchemaDiff {
	diff := &SchemaDiff{}
	inModels := make(map[string]bool, len(models))

	for _, model := range models {
		inModels[model.Name] = true
		dbTable, ok := database[model.Name]
		if !ok {
			diff.TablesAdded = append(diff.TablesAdded, *model)
			continue
		}
		if tableDiff := d.compareTable(model, dbTable); tableDiff.HasChanges() {
			diff.TablesModified = append(diff.TablesModified, tableDiff)
		}
	}

	names := make([]string, 0, len(database))
	for name := range database {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !inModels[name] && !bookkeepingTables[name] {
			diff.TablesDropped = append(diff.TablesDropped, *database[name])
		}
	}

	return diff
}

// compareTable compares the columns of two versions of a table.
func (d *Differ) compareTable(model, db *schema.TableMetadata) TableDiff {
	diff := TableDiff{TableName: model.Name}
	for _, col := range model.Columns {
		if db.GetColumn(col.Name) == nil {
			diff.ColumnsAdded = append(diff.ColumnsAdded, col)
		}
	}
	for _, col := range db.Columns {
		if model.GetColumn(col.Name) == nil {
			diff.ColumnsDropped = append(diff.ColumnsDropped, col)
		}
	}
	return diff
}
