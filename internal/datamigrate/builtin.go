package datamigrate

import (
	"context"
	"fmt"

	"github.com/marshallshelly/roastery/internal/slug"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// translatedColumns lists the jsonb columns holding i18n.Text values.
var translatedColumns = []struct{ table, column string }{
	{"roasters", "description"},
	{"countries", "name"},
	{"regions", "name"},
	{"specialties", "name"},
}

// Builtin returns the shipped migrations in run order.
func Builtin(defaultLocale string) []Migration {
	return []Migration{
		{
			Name:        "translations-json",
			Description: "wrap bare JSON strings in translated columns as {\"" + defaultLocale + "\": ...}",
			Run: func(ctx context.Context, q runtime.Querier) (int64, error) {
				return translationsJSON(ctx, q, defaultLocale)
			},
		},
		{
			Name:        "roaster-slugs",
			Description: "backfill empty roaster slugs from names",
			Run:         roasterSlugs,
		},
		{
			Name:        "roaster-ratings",
			Description: "recompute roaster rating and review_count from reviews",
			Run:         roasterRatings,
		},
		{
			Name:        "country-codes",
			Description: "upper-case and trim country codes",
			Run:         countryCodes,
		},
	}
}

func translationsJSON(ctx context.Context, q runtime.Querier, locale string) (int64, error) {
	var total int64
	for _, tc := range translatedColumns {
		sql := fmt.Sprintf(
			`UPDATE %[1]s SET %[2]s = jsonb_build_object($1::text, %[2]s #>> '{}') WHERE jsonb_typeof(%[2]s) = 'string'`,
			tc.table, tc.column)
		tag, err := q.Exec(ctx, sql, locale)
		if err != nil {
			return total, fmt.Errorf("%s.%s: %w", tc.table, tc.column, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func roasterSlugs(ctx context.Context, q runtime.Querier) (int64, error) {
	rows, err := q.Query(ctx, `SELECT id, name FROM roasters WHERE TRIM(slug) = '' ORDER BY id`)
	if err != nil {
		return 0, err
	}
	type pending struct {
		id   int
		name string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.name); err != nil {
			rows.Close()
			return 0, err
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	taken := func(s string) (bool, error) {
		var exists bool
		err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roasters WHERE slug = $1)`, s).Scan(&exists)
		return exists, err
	}

	var n int64
	for _, p := range todo {
		base := slug.Make(p.name)
		if base == "" {
			base = fmt.Sprintf("roaster-%d", p.id)
		}
		s, err := slug.Unique(base, taken)
		if err != nil {
			return n, err
		}
		if _, err := q.Exec(ctx, `UPDATE roasters SET slug = $1, updated_at = NOW() WHERE id = $2`, s, p.id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func roasterRatings(ctx context.Context, q runtime.Querier) (int64, error) {
	tag, err := q.Exec(ctx, `
		UPDATE roasters r
		SET rating = s.avg, review_count = s.cnt
		FROM (
			SELECT ro.id,
			       COALESCE(ROUND(AVG(rv.rating)::numeric, 2)::float8, 0) AS avg,
			       COUNT(rv.id)::int AS cnt
			FROM roasters ro LEFT JOIN reviews rv ON rv.roaster_id = ro.id
			GROUP BY ro.id
		) s
		WHERE s.id = r.id AND (r.rating <> s.avg OR r.review_count <> s.cnt)`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func countryCodes(ctx context.Context, q runtime.Querier) (int64, error) {
	tag, err := q.Exec(ctx, `UPDATE countries SET code = UPPER(TRIM(code)) WHERE code <> UPPER(TRIM(code))`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
