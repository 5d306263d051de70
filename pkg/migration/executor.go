package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// DefaultLockID is the advisory lock key shared by every migration runner.
const DefaultLockID int64 = 7_210_042_025

// Executor executes and tracks database migrations.
type Executor struct {
	db     *runtime.DB
	lockID int64
}

// NewExecutor creates a new migration executor.
func NewExecutor(db *runtime.DB) *Executor {
	return &Executor{db: db, lockID: DefaultLockID}
}

// WithLockID sets a custom advisory lock ID.
func (e *Executor) WithLockID(lockID int64) *Executor {
	e.lockID = lockID
	return e
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (e *Executor) Initialize(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			applied_at TIMESTAMPTZ,
			error TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := e.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// Lock acquires the session advisory lock on a dedicated connection and
// returns the function that releases it. Session locks belong to a single
// connection, so the same one must be used to unlock.
func (e *Executor) Lock(ctx context.Context) (unlock func(), err error) {
	pool := e.db.Pool()
	if pool == nil {
		return nil, runtime.ErrNoConnection
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for migration lock: %w", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", e.lockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return func() { release(conn, e.lockID) }, nil
}

func release(conn *pgxpool.Conn, lockID int64) {
	// The request context may already be cancelled; unlocking must still run.
	_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID)
	conn.Release()
}

// withLock runs fn while holding the migration lock.
func (e *Executor) withLock(ctx context.Context, fn func() error) error {
	unlock, err := e.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// GetAppliedMigrations returns all migrations that have been applied.
func (e *Executor) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, "WHERE status = 'applied'")
}

// GetAllMigrations returns every migration record.
func (e *Executor) GetAllMigrations(ctx context.Context) ([]MigrationRecord, error) {
	return e.records(ctx, "")
}

func (e *Executor) records(ctx context.Context, where string) ([]MigrationRecord, error) {
	query := "SELECT version, name, status, applied_at, error FROM schema_migrations " + where + " ORDER BY version ASC"
	rows, err := e.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.Version, &r.Name, &r.Status, &r.AppliedAt, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// IsMigrationApplied checks if a specific migration has been applied.
func (e *Executor) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	var applied bool
	err := e.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1 AND status = 'applied')",
		version,
	).Scan(&applied)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return applied, nil
}

// Apply executes a migration's up SQL in a transaction. On failure the
// transaction is rolled back and the failure is recorded separately.
func (e *Executor) Apply(ctx context.Context, m Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, m.Version)
	if err != nil {
		return err
	}
	if applied {
		return fmt.Errorf("migration %s is already applied", m.Version)
	}
	if dryRun {
		return nil
	}

	err = e.db.WithTx(ctx, func(tx runtime.Querier) error {
		if err := execStatements(ctx, tx, m.UpSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO schema_migrations (version, name, status, applied_at, error)
			VALUES ($1, $2, 'applied', NOW(), NULL)
			ON CONFLICT (version) DO UPDATE SET status = 'applied', applied_at = NOW(), error = NULL`,
			m.Version, m.Name)
		return err
	})
	if err != nil {
		e.recordFailure(ctx, m, err)
		return &runtime.MigrationError{Version: m.Version, Message: "apply failed", Err: err}
	}
	return nil
}

func (e *Executor) recordFailure(ctx context.Context, m Migration, cause error) {
	_, _ = e.db.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, status, error)
		VALUES ($1, $2, 'failed', $3)
		ON CONFLICT (version) DO UPDATE SET status = 'failed', error = EXCLUDED.error`,
		m.Version, m.Name, cause.Error())
}

// Rollback executes a migration's down SQL and removes its record.
func (e *Executor) Rollback(ctx context.Context, m Migration, dryRun bool) error {
	applied, err := e.IsMigrationApplied(ctx, m.Version)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("migration %s is not applied", m.Version)
	}
	if dryRun {
		return nil
	}

	err = e.db.WithTx(ctx, func(tx runtime.Querier) error {
		if err := execStatements(ctx, tx, m.DownSQL); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
		return err
	})
	if err != nil {
		return &runtime.MigrationError{Version: m.Version, Message: "rollback failed", Err: err}
	}
	return nil
}

// ApplyAll applies all pending migrations in order under the advisory lock
// and returns the versions it applied.
func (e *Executor) ApplyAll(ctx context.Context, migrations []Migration, dryRun bool) ([]string, error) {
	var done []string
	err := e.withLock(ctx, func() error {
		if err := e.Initialize(ctx); err != nil {
			return err
		}
		applied, err := e.appliedSet(ctx)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			if applied[m.Version] {
				continue
			}
			if err := e.Apply(ctx, m, dryRun); err != nil {
				return err
			}
			done = append(done, m.Version)
		}
		return nil
	})
	return done, err
}

// RollbackLast rolls back the most recently applied migration. It returns
// the rolled back version, or "" when nothing is applied.
func (e *Executor) RollbackLast(ctx context.Context, migrations []Migration, dryRun bool) (string, error) {
	var version string
	err := e.withLock(ctx, func() error {
		if err := e.Initialize(ctx); err != nil {
			return err
		}
		applied, err := e.GetAppliedMigrations(ctx)
		if err != nil || len(applied) == 0 {
			return err
		}
		last := applied[len(applied)-1]
		m, ok := findMigration(migrations, last.Version)
		if !ok {
			return fmt.Errorf("migration file not found for version %s", last.Version)
		}
		version = last.Version
		return e.Rollback(ctx, m, dryRun)
	})
	return version, err
}

// RollbackTo rolls back every applied migration newer than targetVersion.
func (e *Executor) RollbackTo(ctx context.Context, targetVersion string, migrations []Migration, dryRun bool) ([]string, error) {
	var done []string
	err := e.withLock(ctx, func() error {
		applied, err := e.GetAppliedMigrations(ctx)
		if err != nil {
			return err
		}
		for i := len(applied) - 1; i >= 0; i-- {
			record := applied[i]
			if record.Version <= targetVersion {
				break
			}
			m, ok := findMigration(migrations, record.Version)
			if !ok {
				return fmt.Errorf("migration file not found for version %s", record.Version)
			}
			if err := e.Rollback(ctx, m, dryRun); err != nil {
				return err
			}
			done = append(done, record.Version)
		}
		return nil
	})
	return done, err
}

// GetStatus merges migration files with their tracking records.
func (e *Executor) GetStatus(ctx context.Context, migrations []Migration) ([]MigrationRecord, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	all, err := e.GetAllMigrations(ctx)
	if err != nil {
		return nil, err
	}
	return MergeStatus(migrations, all), nil
}

// MergeStatus returns one record per migration file, pending when the
// database has no record for it.
func MergeStatus(migrations []Migration, records []MigrationRecord) []MigrationRecord {
	byVersion := make(map[string]MigrationRecord, len(records))
	for _, r := range records {
		byVersion[r.Version] = r
	}
	status := make([]MigrationRecord, 0, len(migrations))
	for _, m := range migrations {
		if r, ok := byVersion[m.Version]; ok {
			status = append(status, r)
			continue
		}
		status = append(status, MigrationRecord{Version: m.Version, Name: m.Name, Status: StatusPending})
	}
	return status
}

// Validate checks that every migration recorded in the database still has
// its files.
func (e *Executor) Validate(ctx context.Context, migrations []Migration) error {
	records, err := e.GetAllMigrations(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, r := range records {
		if _, ok := findMigration(migrations, r.Version); !ok {
			missing = append(missing, r.Version)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing migration files: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (e *Executor) appliedSet(ctx context.Context) (map[string]bool, error) {
	applied, err := e.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(applied))
	for _, r := range applied {
		set[r.Version] = true
	}
	return set, nil
}

func findMigration(migrations []Migration, version string) (Migration, bool) {
	for _, m := range migrations {
		if m.Version == version {
			return m, true
		}
	}
	return Migration{}, false
}

func execStatements(ctx context.Context, q runtime.Querier, sql string) error {
	for i, stmt := range SplitSQL(sql) {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d failed: %w", i+1, err)
		}
	}
	return nil
}

// SplitSQL splits a script into statements on top-level semicolons. Line
// comments are dropped; single-quoted strings, quoted identifiers and
// dollar-quoted bodies are kept intact.
func SplitSQL(sql string) []string {
	var statements []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			statements = append(statements, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case c == '\'' || c == '"':
			end := strings.IndexByte(sql[i+1:], c)
			if end < 0 {
				cur.WriteString(sql[i:])
				i = len(sql)
				break
			}
			cur.WriteString(sql[i : i+end+2])
			i += end + 1
		case c == '$':
			tagEnd := strings.IndexByte(sql[i+1:], '$')
			tag := ""
			if tagEnd >= 0 {
				tag = sql[i : i+tagEnd+2]
			}
			if tag == "" || !isDollarTag(tag) {
				cur.WriteByte(c)
				break
			}
			body := strings.Index(sql[i+len(tag):], tag)
			if body < 0 {
				cur.WriteString(sql[i:])
				i = len(sql)
				break
			}
			stop := i + len(tag) + body + len(tag)
			cur.WriteString(sql[i:stop])
			i = stop - 1
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return statements
}

// isDollarTag reports whether s looks like $tag$ or $$.
func isDollarTag(s string) bool {
	inner := s[1 : len(s)-1]
	for i, r := range inner {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || (i > 0 && r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
