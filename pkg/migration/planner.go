package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/marshallshelly/roastery/pkg/schema"
)

// PlannerOptions configures migration generation behavior.
type PlannerOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE statements.
	IfNotExists bool
}

// Planner generates SQL migration statements from schema diffs.
type Planner struct {
	options PlannerOptions
}

// NewPlanner creates a new migration planner with default options.
func NewPlanner() *Planner {
	return &Planner{options: PlannerOptions{IfNotExists: true}}
}

// NewPlannerWithOptions creates a new migration planner with custom options.
func NewPlannerWithOptions(opts PlannerOptions) *Planner {
	return &Planner{options: opts}
}

// GenerateMigration generates up and down SQL from a schema diff. Down
// statements undo the up statements in reverse order.
func (p *Planner) GenerateMigration(diff *SchemaDiff) (upSQL, downSQL string) {
	var up, down []string

	for _, table := range SortByDependencies(diff.TablesAdded) {
		up = append(up, p.generateCreateTable(&table))
		down = append(down, p.generateDropTable(table.Name))
	}

	for _, tableDiff := range diff.TablesModified {
		u, d := p.generateAlterTable(tableDiff)
		up = append(up, u...)
		down = append(down, d...)
	}

	dropped := SortByDependencies(diff.TablesDropped)
	for i := len(dropped) - 1; i >= 0; i-- {
		up = append(up, p.generateDropTable(dropped[i].Name))
		down = append(down, p.generateCreateTable(&dropped[i]))
	}

	slices.Reverse(down)
	return strings.Join(up, "\n\n") + "\n", strings.Join(down, "\n\n") + "\n"
}

// generateCreateTable generates a CREATE TABLE statement.
func (p *Planner) generateCreateTable(table *schema.TableMetadata) string {
	var singlePK string
	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) == 1 {
		singlePK = table.PrimaryKey.Columns[0]
	}

	parts := make([]string, 0, len(table.Columns)+len(table.ForeignKeys)+1)
	for _, col := range table.Columns {
		def := p.generateColumnDefinition(col)
		if col.Name == singlePK {
			def += " PRIMARY KEY"
		}
		parts = append(parts, "    "+def)
	}

	if table.PrimaryKey != nil && len(table.PrimaryKey.Columns) > 1 {
		parts = append(parts, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)",
			table.PrimaryKey.Name, strings.Join(table.PrimaryKey.Columns, ", ")))
	}

	for _, fk := range table.ForeignKeys {
		parts = append(parts, "    "+p.generateForeignKeyDefinition(fk))
	}

	create := "CREATE TABLE"
	if p.options.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS"
	}
	return fmt.Sprintf("%s %s (\n%s\n);", create, table.Name, strings.Join(parts, ",\n"))
}

// generateColumnDefinition generates a column definition.
func (p *Planner) generateColumnDefinition(col schema.ColumnMetadata) string {
	parts := []string{col.Name, col.SQLType}

	// serial types imply NOT NULL and their own default.
	if !col.AutoIncrement {
		if !col.Nullable {
			parts = append(parts, "NOT NULL")
		}
		if col.Default != nil {
			parts = append(parts, "DEFAULT", *col.Default)
		}
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}

	return strings.Join(parts, " ")
}

// generateForeignKeyDefinition generates a foreign key constraint.
func (p *Planner) generateForeignKeyDefinition(fk schema.ForeignKeyMetadata) string {
	def := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		fk.Name,
		strings.Join(fk.Columns, ", "),
		fk.ReferencedTable,
		strings.Join(fk.ReferencedColumns, ", "))
	if fk.OnDelete != "" && fk.OnDelete != schema.NoAction {
		def += " ON DELETE " + string(fk.OnDelete)
	}
	return def
}

// generateDropTable generates a DROP TABLE statement.
func (p *Planner) generateDropTable(tableName string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", tableName)
}

// generateAlterTable generates ALTER TABLE statements for column changes.
func (p *Planner) generateAlterTable(diff TableDiff) (up, down []string) {
	for _, col := range diff.ColumnsAdded {
		up = append(up, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", diff.TableName, p.generateColumnDefinition(col)))
		down = append(down, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", diff.TableName, col.Name))
	}
	for _, col := range diff.ColumnsDropped {
		up = append(up, fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", diff.TableName, col.Name))
		down = append(down, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", diff.TableName, p.generateColumnDefinition(col)))
	}
	return up, down
}

// SortByDependencies orders tables so that every table comes after the
// tables its foreign keys reference. Self references and cycles fall back
// to input order.
func SortByDependencies(tables []schema.TableMetadata) []schema.TableMetadata {
	byName := make(map[string]int, len(tables))
	for i, t := range tables {
		byName[t.Name] = i
	}

	sorted := make([]schema.TableMetadata, 0, len(tables))
	state := make([]int, len(tables)) // 0 unvisited, 1 visiting, 2 done

	var visit func(i int)
	visit = func(i int) {
		if state[i] != 0 {
			return
		}
		state[i] = 1
		for _, fk := range tables[i].ForeignKeys {
			if j, ok := byName[fk.ReferencedTable]; ok && j != i {
				visit(j)
			}
		}
		state[i] = 2
		sorted = append(sorted, tables[i])
	}
	for i := range tables {
		visit(i)
	}
	return sorted
}
