package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/roastery/cmd/roastery/output"
	"github.com/marshallshelly/roastery/cmd/roastery/tui"
	"github.com/marshallshelly/roastery/internal/config"
	"github.com/marshallshelly/roastery/internal/models"
	"github.com/marshallshelly/roastery/pkg/migration"
	"github.com/marshallshelly/roastery/pkg/registry"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

var (
	dryRun        bool
	all           bool
	steps         int
	target        string
	interactive   bool
	migrationName string
	empty         bool
	diffOutput    string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations",
	Long: `Keep the database schema in sync with the roastery models.

Subcommands:
  up        Apply pending migrations
  down      Roll back migrations
  status    Show migration status
  diff      Show what a generated migration would contain
  generate  Write a migration from the difference between models and database`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations.

Examples:
  roastery migrate up --all              # Apply all pending migrations
  roastery migrate up --steps 1          # Apply the next migration
  roastery migrate up --all --dry-run    # List what would be applied
  roastery migrate up -i                 # Pick migrations interactively`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp(cmd)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Long: `Roll back applied migrations, newest first.

Examples:
  roastery migrate down                    # Roll back the last migration
  roastery migrate down --steps 2          # Roll back the last two
  roastery migrate down --target VERSION   # Roll back everything newer than VERSION`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(cmd)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd)
	},
}

var migrateDiffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show differences between models and database",
	Long: `Compare the registered roastery models with the database and print the
SQL a generated migration would contain, without writing migration files.

Examples:
  roastery migrate diff
  roastery migrate diff --json
  roastery migrate diff --output preview.sql`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDiff(cmd)
	},
}

var migrateGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a migration",
	Long: `Compare the registered roastery models with the database and write
timestamped up/down SQL files for the difference.

Examples:
  roastery migrate generate --name add_cafe_hours
  roastery migrate generate --name backfill --empty   # Empty files to edit by hand`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateGenerate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateDiffCmd, migrateGenerateCmd)

	migrateUpCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode")
	migrateUpCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List migrations without applying them")
	migrateUpCmd.Flags().BoolVar(&all, "all", false, "Apply all pending migrations")
	migrateUpCmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply")

	migrateDownCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run in interactive mode")
	migrateDownCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List migrations without rolling them back")
	migrateDownCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	migrateDownCmd.Flags().StringVar(&target, "target", "", "Roll back to this version")

	migrateGenerateCmd.Flags().StringVarP(&migrationName, "name", "n", "", "Migration name (required)")
	migrateGenerateCmd.Flags().BoolVar(&empty, "empty", false, "Generate an empty migration")
	_ = migrateGenerateCmd.MarkFlagRequired("name")

	migrateDiffCmd.Flags().StringVarP(&diffOutput, "output", "o", "", "Also write the up SQL to this file")
}

// migrationEnv is what every migrate subcommand needs.
type migrationEnv struct {
	cfg        *config.Config
	db         *runtime.DB
	executor   *migration.Executor
	migrations []migration.Migration
}

func openMigrations(ctx context.Context, cmd *cobra.Command) (*migrationEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	migrations, err := migration.NewGenerator(cfg.MigrationsDir).LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations from %s: %w", cfg.MigrationsDir, err)
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	executor := migration.NewExecutor(db)
	if err := executor.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &migrationEnv{cfg: cfg, db: db, executor: executor, migrations: migrations}, nil
}

// pendingMigrations returns the migrations not yet applied, in order. A
// failed migration counts as pending.
func pendingMigrations(migrations []migration.Migration, applied []migration.MigrationRecord) []migration.Migration {
	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	var out []migration.Migration
	for _, m := range migrations {
		if !done[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func runMigrateUp(cmd *cobra.Command) error {
	if !interactive && !all && steps <= 0 {
		return errors.New("must specify --all, --steps or --interactive")
	}
	ctx := cmd.Context()
	env, err := openMigrations(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.db.Close()

	if interactive {
		return tui.Run(ctx, &tui.SchemaSource{Executor: env.executor, Migrations: env.migrations})
	}

	out := printer(cmd)
	if len(env.migrations) == 0 {
		out.Warning("No migrations found in %s", env.cfg.MigrationsDir)
		return nil
	}

	unlock, err := env.executor.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	applied, err := env.executor.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	toApply := pendingMigrations(env.migrations, applied)
	if !all && len(toApply) > steps {
		toApply = toApply[:steps]
	}
	if len(toApply) == 0 {
		out.Info("No pending migrations")
		return nil
	}

	if dryRun {
		out.Section("DRY RUN")
		out.Info("The following migrations would be applied:")
		for _, m := range toApply {
			out.Muted("  %s %s - %s", output.StatusIcon("pending"), m.Version, m.Name)
		}
		return nil
	}

	out.Section("Applying migrations")
	for _, m := range toApply {
		out.Info("Applying %s - %s", m.Version, m.Name)
		if err := env.executor.Apply(ctx, m, false); err != nil {
			out.Error("Failed to apply %s", m.Version)
			return err
		}
		out.Success("Applied %s", m.Version)
	}
	out.Success("Applied %d migration(s)", len(toApply))
	return nil
}

func runMigrateDown(cmd *cobra.Command) error {
	ctx := cmd.Context()
	env, err := openMigrations(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.db.Close()

	if interactive {
		return tui.Run(ctx, &tui.SchemaSource{Executor: env.executor, Migrations: env.migrations, Down: true})
	}

	out := printer(cmd)
	if target != "" {
		if _, err := strconv.ParseUint(target, 10, 64); err != nil || len(target) != 14 {
			return fmt.Errorf("--target %q is not a migration version (YYYYMMDDHHMMSS)", target)
		}
		done, err := env.executor.RollbackTo(ctx, target, env.migrations, dryRun)
		if err != nil {
			return err
		}
		for _, v := range done {
			out.Success("Rolled back %s", v)
		}
		out.Success("Rolled back %d migration(s) to %s", len(done), target)
		return nil
	}

	unlock, err := env.executor.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	applied, err := env.executor.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		out.Info("No migrations to roll back")
		return nil
	}
	n := min(max(steps, 1), len(applied))

	byVersion := make(map[string]migration.Migration, len(env.migrations))
	for _, m := range env.migrations {
		byVersion[m.Version] = m
	}

	if dryRun {
		out.Section("DRY RUN")
		out.Info("The following migrations would be rolled back:")
	} else {
		out.Section("Rolling back migrations")
	}
	for i := range n {
		record := applied[len(applied)-1-i]
		m, ok := byVersion[record.Version]
		if !ok {
			return fmt.Errorf("migration file not found for version %s", record.Version)
		}
		if dryRun {
			out.Muted("  %s %s - %s", output.StatusIcon("applied"), m.Version, m.Name)
			continue
		}
		out.Warning("Rolling back %s - %s", m.Version, m.Name)
		if err := env.executor.Rollback(ctx, m, false); err != nil {
			out.Error("Failed to roll back %s", m.Version)
			return err
		}
		out.Success("Rolled back %s", m.Version)
	}
	if !dryRun {
		out.Success("Rolled back %d migration(s)", n)
	}
	return nil
}

// statusRow is the JSON shape of one migration in `migrate status --json`.
type statusRow struct {
	Version   string  `json:"version"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	AppliedAt *string `json:"appliedAt,omitempty"`
	Error     *string `json:"error,omitempty"`
}

func runMigrateStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	env, err := openMigrations(ctx, cmd)
	if err != nil {
		return err
	}
	defer env.db.Close()

	status, err := env.executor.GetStatus(ctx, env.migrations)
	if err != nil {
		return err
	}
	out := printer(cmd)
	if err := env.executor.Validate(ctx, env.migrations); err != nil && !jsonOutput {
		out.Warning("%v", err)
	}

	rows := make([]statusRow, len(status))
	var applied, pending, failed int
	for i, r := range status {
		rows[i] = statusRow{Version: r.Version, Name: r.Name, Status: string(r.Status), Error: r.Error}
		if r.AppliedAt != nil {
			at := r.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			rows[i].AppliedAt = &at
		}
		switch r.Status {
		case migration.StatusApplied:
			applied++
		case migration.StatusPending:
			pending++
		case migration.StatusFailed:
			failed++
		}
	}

	if jsonOutput {
		return out.JSON(rows)
	}
	if len(rows) == 0 {
		out.Warning("No migrations found in %s", env.cfg.MigrationsDir)
		return nil
	}
	table := make([][]string, len(rows))
	for i, r := range rows {
		at := "-"
		if r.AppliedAt != nil {
			at = *r.AppliedAt
		}
		table[i] = []string{r.Version, r.Name, output.StatusIcon(r.Status) + " " + r.Status, at}
	}
	out.Table([]string{"VERSION", "NAME", "STATUS", "APPLIED AT"}, table)
	summary := fmt.Sprintf("%d applied, %d pending", applied, pending)
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	out.Muted("\n%s", summary)
	return nil
}

func runMigrateGenerate(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := printer(cmd)
	generator := migration.NewGenerator(cfg.MigrationsDir)

	if empty {
		file, err := generator.GenerateEmpty(migrationName)
		if err != nil {
			return fmt.Errorf("failed to generate empty migration: %w", err)
		}
		printMigrationFile(out, file)
		out.Info("Edit the SQL files to add the migration logic.")
		return nil
	}

	diff, err := schemaDiff(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if !diff.HasChanges() {
		out.Info("No schema changes detected, the database matches the models.")
		return nil
	}
	out.Section("Detected schema changes")
	printDiff(out, diff)

	file, err := generator.Generate(migrationName, diff)
	if err != nil {
		return fmt.Errorf("failed to generate migration: %w", err)
	}
	printMigrationFile(out, file)
	out.Info("Review the generated SQL before applying it.")
	return nil
}

func runMigrateDiff(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	diff, err := schemaDiff(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	out := printer(cmd)
	if jsonOutput {
		return out.JSON(diff)
	}
	if !diff.HasChanges() {
		out.Success("No schema changes detected, the database matches the models.")
		return nil
	}

	upSQL, downSQL := migration.NewPlanner().GenerateMigration(diff)
	if diffOutput != "" {
		if err := os.WriteFile(diffOutput, []byte(upSQL), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", diffOutput, err)
		}
	}

	out.Section("Schema differences")
	printDiff(out, diff)
	out.Section("Migration SQL (up)")
	out.Muted("%s", upSQL)
	if verbose {
		out.Section("Migration SQL (down)")
		out.Muted("%s", downSQL)
	}
	if diffOutput != "" {
		out.Success("Wrote up SQL to %s", diffOutput)
	}
	return nil
}

// schemaDiff compares the registered models with the live database.
func schemaDiff(ctx context.Context, cfg *config.Config) (*migration.SchemaDiff, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := models.RegisterAll(); err != nil {
		return nil, fmt.Errorf("failed to register models: %w", err)
	}
	dbSchema, err := migration.NewIntrospector(db).IntrospectSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect database: %w", err)
	}
	return migration.NewDiffer().Compare(registry.All(), dbSchema), nil
}

func printDiff(out *output.Printer, diff *migration.SchemaDiff) {
	for _, t := range diff.TablesAdded {
		out.Success("+ %s (%d columns)", t.Name, len(t.Columns))
	}
	for _, t := range diff.TablesDropped {
		out.Warning("- %s", t.Name)
	}
	for _, t := range diff.TablesModified {
		out.Info("~ %s", t.TableName)
		for _, c := range t.ColumnsAdded {
			out.Muted("    + column %s %s", c.Name, c.SQLType)
		}
		for _, c := range t.ColumnsDropped {
			out.Muted("    - column %s", c.Name)
		}
	}
}

func printMigrationFile(out *output.Printer, file *migration.MigrationFile) {
	out.Success("Created migration %s", file.Version)
	out.Muted("  Up:   %s", file.UpPath)
	out.Muted("  Down: %s", file.DownPath)
}
