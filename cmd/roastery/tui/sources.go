package tui

import (
	"context"
	"fmt"

	"github.com/marshallshelly/roastery/internal/datamigrate"
	"github.com/marshallshelly/roastery/pkg/migration"
)

const timeLayout = "2006-01-02 15:04:05"

// SchemaSource lists schema migrations. Up applies pending or failed ones;
// down rolls back the latest applied one.
type SchemaSource struct {
	Executor   *migration.Executor
	Migrations []migration.Migration
	Down       bool

	latest string
}

func (s *SchemaSource) Title() string {
	if s.Down {
		return "Schema migrations (down)"
	}
	return "Schema migrations (up)"
}

func (s *SchemaSource) Verb() string {
	if s.Down {
		return "roll back"
	}
	return "apply"
}

func (s *SchemaSource) Load(ctx context.Context) ([]Item, error) {
	status, err := s.Executor.GetStatus(ctx, s.Migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	s.latest = ""
	items := make([]Item, len(status))
	for i, rec := range status {
		item := Item{Key: rec.Version, Name: rec.Name, Status: string(rec.Status)}
		switch {
		case rec.Error != nil:
			item.Detail = "error: " + *rec.Error
		case rec.AppliedAt != nil:
			item.Detail = "applied " + rec.AppliedAt.Format(timeLayout)
		}
		if rec.Status == migration.StatusApplied {
			s.latest = rec.Version
		}
		items[i] = item
	}
	return items, nil
}

func (s *SchemaSource) Runnable(item Item) bool {
	if s.Down {
		return item.Key == s.latest
	}
	return item.Status == string(migration.StatusPending) || item.Status == string(migration.StatusFailed)
}

func (s *SchemaSource) Run(ctx context.Context, item Item) (string, error) {
	var m *migration.Migration
	for i := range s.Migrations {
		if s.Migrations[i].Version == item.Key {
			m = &s.Migrations[i]
			break
		}
	}
	if m == nil {
		return "", fmt.Errorf("migration file not found for version %s", item.Key)
	}

	unlock, err := s.Executor.Lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if s.Down {
		if err := s.Executor.Rollback(ctx, *m, false); err != nil {
			return "", err
		}
		return fmt.Sprintf("rolled back %s - %s", m.Version, m.Name), nil
	}
	if err := s.Executor.Apply(ctx, *m, false); err != nil {
		return "", err
	}
	return fmt.Sprintf("applied %s - %s", m.Version, m.Name), nil
}

// DataSource lists data migrations. Applied ones only run again with Force.
type DataSource struct {
	Runner *datamigrate.Runner
	DryRun bool
	Force  bool
}

func (d *DataSource) Title() string {
	if d.DryRun {
		return "Data migrations (dry run)"
	}
	return "Data migrations"
}

func (d *DataSource) Verb() string { return "run" }

func (d *DataSource) Load(ctx context.Context) ([]Item, error) {
	infos, err := d.Runner.Status(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(infos))
	for i, info := range infos {
		item := Item{Key: info.Name, Name: info.Description, Status: "pending"}
		if info.AppliedAt != nil {
			item.Status = "applied"
			item.Detail = fmt.Sprintf("applied %s, %d row(s)", info.AppliedAt.Format(timeLayout), info.RowsAffected)
		}
		items[i] = item
	}
	return items, nil
}

func (d *DataSource) Runnable(item Item) bool {
	return item.Status == "pending" || d.Force
}

func (d *DataSource) Run(ctx context.Context, item Item) (string, error) {
	res, err := d.Runner.Run(ctx, item.Key, datamigrate.Options{DryRun: d.DryRun, Force: d.Force})
	if err != nil {
		return "", err
	}
	return Summary(res), nil
}

// Summary describes the outcome of one data migration.
func Summary(res datamigrate.Result) string {
	switch {
	case res.Skipped:
		return res.Name + ": already applied"
	case res.DryRun:
		return fmt.Sprintf("%s: would change %d row(s)", res.Name, res.RowsAffected)
	default:
		return fmt.Sprintf("%s: changed %d row(s)", res.Name, res.RowsAffected)
	}
}
