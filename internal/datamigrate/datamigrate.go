// Package datamigrate runs named, one-off data fixes such as reshaping JSON
// columns or backfilling derived values. Each runs once and is recorded in
// the data_migrations table.
package datamigrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marshallshelly/roastery/pkg/builder"
	"github.com/marshallshelly/roastery/pkg/runtime"
	"go.uber.org/zap"
)

// ErrUnknown is returned for a name no migration is registered under.
var ErrUnknown = errors.New("unknown data migration")

// errDryRun aborts the transaction of a dry run after the work is done.
var errDryRun = errors.New("dry run")

// Migration is one named data fix. Run returns the number of rows changed.
type Migration struct {
	Name        string
	Description string
	Run         func(ctx context.Context, q runtime.Querier) (int64, error)
}

// Record is a row of data_migrations.
type Record struct {
	Name         string    `po:"name,varchar(128),primaryKey"`
	AppliedAt    time.Time `po:"applied_at,timestamptz,notNull,default(NOW())"`
	RowsAffected int64     `po:"rows_affected,bigint,notNull,default(0)"`
}

func (Record) TableName() string { return "data_migrations" }

// Info describes a migration and whether it has been applied.
type Info struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	AppliedAt    *time.Time `json:"appliedAt,omitempty"`
	RowsAffected int64      `json:"rowsAffected"`
}

// Result reports the outcome of running one migration.
type Result struct {
	Name         string `json:"name"`
	RowsAffected int64  `json:"rowsAffected"`
	DryRun       bool   `json:"dryRun"`
	Skipped      bool   `json:"skipped"`
}

// Options control Run.
type Options struct {
	DryRun bool
	// Force reruns a migration that is already recorded as applied.
	Force bool
}

// Runner executes registered migrations.
type Runner struct {
	db         *runtime.DB
	logger     *zap.Logger
	migrations []Migration
}

// NewRunner creates a Runner with the built-in migrations. defaultLocale is
// the key bare JSON strings are stored under by translations-json.
func NewRunner(db *runtime.DB, logger *zap.Logger, defaultLocale string) *Runner {
	return NewRunnerWith(db, logger, Builtin(defaultLocale)...)
}

// NewRunnerWith creates a Runner with an explicit migration list.
func NewRunnerWith(db *runtime.DB, logger *zap.Logger, migrations ...Migration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, logger: logger, migrations: migrations}
}

// List returns the registered migrations in run order.
func (r *Runner) List() []Info {
	out := make([]Info, len(r.migrations))
	for i, m := range r.migrations {
		out[i] = Info{Name: m.Name, Description: m.Description}
	}
	return out
}

func (r *Runner) find(name string) (Migration, bool) {
	for _, m := range r.migrations {
		if m.Name == name {
			return m, true
		}
	}
	return Migration{}, false
}

// Initialize creates the data_migrations table.
func (r *Runner) Initialize(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS data_migrations (
			name VARCHAR(128) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			rows_affected BIGINT NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return fmt.Errorf("failed to create data_migrations table: %w", err)
	}
	return nil
}

// Status returns every registered migration with its applied state.
func (r *Runner) Status(ctx context.Context) ([]Info, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}
	records, err := builder.Select[Record](builder.New(r.db)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read data_migrations: %w", err)
	}
	applied := make(map[string]Record, len(records))
	for _, rec := range records {
		applied[rec.Name] = rec
	}

	out := r.List()
	for i := range out {
		if rec, ok := applied[out[i].Name]; ok {
			at := rec.AppliedAt
			out[i].AppliedAt = &at
			out[i].RowsAffected = rec.RowsAffected
		}
	}
	return out, nil
}

// Run executes the migration called name in one transaction. An applied
// migration is skipped unless opts.Force is set; a dry run reports the rows
// it would change and rolls back.
func (r *Runner) Run(ctx context.Context, name string, opts Options) (Result, error) {
	m, ok := r.find(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if err := r.Initialize(ctx); err != nil {
		return Result{}, err
	}

	result := Result{Name: name, DryRun: opts.DryRun}
	err := r.db.WithTx(ctx, func(q runtime.Querier) error {
		tx := builder.NewFromQuerier(q)
		if !opts.Force {
			done, err := builder.Select[Record](tx).Where(builder.Eq("name", name)).Exists(ctx)
			if err != nil {
				return err
			}
			if done {
				result.Skipped = true
				return nil
			}
		}

		n, err := m.Run(ctx, q)
		if err != nil {
			return err
		}
		result.RowsAffected = n

		if opts.DryRun {
			return errDryRun
		}
		_, err = builder.Insert[Record](tx).
			Values(Record{Name: name, AppliedAt: time.Now().UTC(), RowsAffected: n}).
			OnConflictDoUpdate([]string{"name"}, "applied_at", "rows_affected").
			Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return Result{}, fmt.Errorf("data migration %s failed: %w", name, err)
	}

	r.logger.Info("data migration finished",
		zap.String("name", name),
		zap.Int64("rows_affected", result.RowsAffected),
		zap.Bool("dry_run", result.DryRun),
		zap.Bool("skipped", result.Skipped),
	)
	return result, nil
}

// RunAll runs every registered migration in order, stopping at the first
// failure.
func (r *Runner) RunAll(ctx context.Context, dryRun bool) ([]Result, error) {
	results := make([]Result, 0, len(r.migrations))
	for _, m := range r.migrations {
		res, err := r.Run(ctx, m.Name, Options{DryRun: dryRun})
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
