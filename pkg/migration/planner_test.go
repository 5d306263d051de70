package migration

import (
	"strings"
	"testing"

	"github.com/marshallshelly/roastery/pkg/schema"
)

func strPtr(s string) *string { return &s }

func countriesTable() schema.TableMetadata {
	return schema.TableMetadata{
		Name: "countries",
		Columns: []schema.ColumnMetadata{
			{Name: "id", SQLType: "serial", AutoIncrement: true},
			{Name: "code", SQLType: "char(2)", Unique: true},
			{Name: "name", SQLType: "jsonb", Default: strPtr("'{}'::jsonb")},
		},
		PrimaryKey: &schema.PrimaryKeyMetadata{Name: "countries_pkey", Columns: []string{"id"}},
	}
}

func regionsTable() schema.TableMetadata {
	return schema.TableMetadata{
		Name: "regions",
		Columns: []schema.ColumnMetadata{
			{Name: "id", SQLType: "serial", AutoIncrement: true},
			{Name: "country_id", SQLType: "integer"},
			{Name: "slug", SQLType: "varchar(120)", Nullable: true},
		},
		PrimaryKey: &schema.PrimaryKeyMetadata{Name: "regions_pkey", Columns: []string{"id"}},
		ForeignKeys: []schema.ForeignKeyMetadata{{
			Name:              "fk_regions_country_id",
			Columns:           []string{"country_id"},
			ReferencedTable:   "countries",
			ReferencedColumns: []string{"id"},
			OnDelete:          schema.Cascade,
		}},
	}
}

func TestPlanner_CreateTable(t *testing.T) {
	p := NewPlanner()
	table := regionsTable()

	got := p.generateCreateTable(&table)
	want := `CREATE TABLE IF NOT EXISTS regions (
    id serial PRIMARY KEY,
    country_id integer NOT NULL,
    slug varchar(120),
    CONSTRAINT fk_regions_country_id FOREIGN KEY (country_id) REFERENCES countries (id) ON DELETE CASCADE
);`
	if got != want {
		t.Errorf("CREATE TABLE mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}

	plain := NewPlannerWithOptions(PlannerOptions{IfNotExists: false})
	if sql := plain.generateCreateTable(&table); !strings.HasPrefix(sql, "CREATE TABLE regions (") {
		t.Errorf("IfNotExists=false should omit the guard: %s", sql)
	}
}

func TestPlanner_CompositePrimaryKey(t *testing.T) {
	table := schema.TableMetadata{
		Name: "favourites",
		Columns: []schema.ColumnMetadata{
			{Name: "user_id", SQLType: "bigint"},
			{Name: "roaster_id", SQLType: "bigint"},
		},
		PrimaryKey: &schema.PrimaryKeyMetadata{Name: "favourites_pkey", Columns: []string{"user_id", "roaster_id"}},
	}
	sql := NewPlanner().generateCreateTable(&table)
	if !strings.Contains(sql, "CONSTRAINT favourites_pkey PRIMARY KEY (user_id, roaster_id)") {
		t.Errorf("missing composite key: %s", sql)
	}
	if strings.Contains(sql, "bigint NOT NULL PRIMARY KEY") {
		t.Errorf("composite key columns must not be inline keys: %s", sql)
	}
}

func TestPlanner_ColumnDefinition(t *testing.T) {
	p := NewPlanner()
	tests := []struct {
		col  schema.ColumnMetadata
		want string
	}{
		{schema.ColumnMetadata{Name: "id", SQLType: "bigserial", AutoIncrement: true}, "id bigserial"},
		{schema.ColumnMetadata{Name: "email", SQLType: "varchar(320)", Unique: true}, "email varchar(320) NOT NULL UNIQUE"},
		{schema.ColumnMetadata{Name: "verified", SQLType: "boolean", Default: strPtr("false")}, "verified boolean NOT NULL DEFAULT false"},
		{schema.ColumnMetadata{Name: "lat", SQLType: "double precision", Nullable: true}, "lat double precision"},
	}
	for _, tt := range tests {
		if got := p.generateColumnDefinition(tt.col); got != tt.want {
			t.Errorf("generateColumnDefinition(%s) = %q, want %q", tt.col.Name, got, tt.want)
		}
	}
}

func TestPlanner_GenerateMigrationOrdering(t *testing.T) {
	diff := &SchemaDiff{
		// Dependent table listed first on purpose.
		TablesAdded: []schema.TableMetadata{regionsTable(), countriesTable()},
		TablesModified: []TableDiff{{
			TableName:    "roasters",
			ColumnsAdded: []schema.ColumnMetadata{{Name: "instagram", SQLType: "text", Nullable: true}},
		}},
	}

	up, down := NewPlanner().GenerateMigration(diff)

	if strings.Index(up, "CREATE TABLE IF NOT EXISTS countries") > strings.Index(up, "CREATE TABLE IF NOT EXISTS regions") {
		t.Errorf("countries must be created before regions:\n%s", up)
	}
	if !strings.Contains(up, "ALTER TABLE roasters ADD COLUMN instagram text;") {
		t.Errorf("missing ADD COLUMN:\n%s", up)
	}

	if strings.Index(down, "DROP TABLE IF EXISTS regions;") > strings.Index(down, "DROP TABLE IF EXISTS countries;") {
		t.Errorf("regions must be dropped before countries:\n%s", down)
	}
	if !strings.HasPrefix(down, "ALTER TABLE roasters DROP COLUMN IF EXISTS instagram;") {
		t.Errorf("down should undo the last up statement first:\n%s", down)
	}
}

func TestPlanner_DropTableRecreatesInDown(t *testing.T) {
	diff := &SchemaDiff{TablesDropped: []schema.TableMetadata{countriesTable(), regionsTable()}}
	up, down := NewPlanner().GenerateMigration(diff)

	if strings.Index(up, "DROP TABLE IF EXISTS regions;") > strings.Index(up, "DROP TABLE IF EXISTS countries;") {
		t.Errorf("dependent table must be dropped first:\n%s", up)
	}
	if strings.Index(down, "regions (") < strings.Index(down, "countries (") {
		t.Errorf("down must recreate referenced table first:\n%s", down)
	}
}

func TestSortByDependencies_SelfReference(t *testing.T) {
	self := schema.TableMetadata{
		Name:        "categories",
		ForeignKeys: []schema.ForeignKeyMetadata{{ReferencedTable: "categories"}},
	}
	sorted := SortByDependencies([]schema.TableMetadata{self, countriesTable()})
	if len(sorted) != 2 || sorted[0].Name != "categories" {
		t.Errorf("self reference should keep input order, got %v", sorted)
	}
}
