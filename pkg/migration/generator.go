package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Generator writes and reads migration files in a directory.
type Generator struct {
	migrationsDir string
}

// NewGenerator creates a new migration file generator.
func NewGenerator(migrationsDir string) *Generator {
	return &Generator{migrationsDir: migrationsDir}
}

// Dir returns the migrations directory.
func (g *Generator) Dir() string {
	return g.migrationsDir
}

// Generate writes up/down files for a schema diff.
func (g *Generator) Generate(name string, diff *SchemaDiff) (*MigrationFile, error) {
	upSQL, downSQL := NewPlanner().GenerateMigration(diff)
	return g.write(name, upSQL, downSQL)
}

// GenerateEmpty creates empty migration files for manual editing.
func (g *Generator) GenerateEmpty(name string) (*MigrationFile, error) {
	header := "-- Migration: %s\n\n-- Write your %s migration here\n"
	return g.write(name, fmt.Sprintf(header, name, "UP"), fmt.Sprintf(header, name, "DOWN"))
}

func (g *Generator) write(name, upSQL, downSQL string) (*MigrationFile, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(g.migrationsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := GenerateVersion()
	file := &MigrationFile{
		Version:  version,
		Name:     name,
		UpPath:   filepath.Join(g.migrationsDir, GenerateFileName(version, name, "up")),
		DownPath: filepath.Join(g.migrationsDir, GenerateFileName(version, name, "down")),
	}

	if err := os.WriteFile(file.UpPath, []byte(upSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write up migration: %w", err)
	}
	if err := os.WriteFile(file.DownPath, []byte(downSQL), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write down migration: %w", err)
	}
	return file, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("migration name is required")
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return fmt.Errorf("migration name %q may only contain lowercase letters, digits and underscores", name)
		}
	}
	return nil
}

// ListMigrations lists complete up/down pairs sorted by version. A missing
// directory yields an empty list.
func (g *Generator) ListMigrations() ([]MigrationFile, error) {
	entries, err := os.ReadDir(g.migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MigrationFile{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make(map[string]*MigrationFile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, rest, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}

		var name string
		var up bool
		if before, found := strings.CutSuffix(rest, ".up.sql"); found {
			name, up = before, true
		} else if before, found := strings.CutSuffix(rest, ".down.sql"); found {
			name = before
		} else {
			continue
		}

		mf, exists := files[version]
		if !exists {
			mf = &MigrationFile{Version: version, Name: name}
			files[version] = mf
		}
		path := filepath.Join(g.migrationsDir, entry.Name())
		if up {
			mf.UpPath = path
		} else {
			mf.DownPath = path
		}
	}

	migrations := make([]MigrationFile, 0, len(files))
	for _, mf := range files {
		if mf.UpPath != "" && mf.DownPath != "" {
			migrations = append(migrations, *mf)
		}
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ReadMigration reads the SQL content from a migration file pair.
func (g *Generator) ReadMigration(file MigrationFile) (*Migration, error) {
	up, err := os.ReadFile(file.UpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read up migration: %w", err)
	}
	down, err := os.ReadFile(file.DownPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read down migration: %w", err)
	}
	return &Migration{
		Version: file.Version,
		Name:    file.Name,
		UpSQL:   string(up),
		DownSQL: string(down),
	}, nil
}

// LoadAll reads every migration in version order.
func (g *Generator) LoadAll() ([]Migration, error) {
	files, err := g.ListMigrations()
	if err != nil {
		return nil, err
	}
	migrations := make([]Migration, 0, len(files))
	for _, f := range files {
		m, err := g.ReadMigration(f)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, *m)
	}
	return migrations, nil
}
