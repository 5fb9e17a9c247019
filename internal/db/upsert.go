package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig names the profile table a rebuild writes and its natural key.
type UpsertConfig struct {
	Table        string   // target table, optionally schema qualified
	Columns      []string // columns carried by every row
	ConflictKeys []string // natural key of the table
	UpdateCols   []string // refreshed on conflict; nil means every non-key column
}

// upsertPlan is the SQL for one bulk upsert, derived from an UpsertConfig.
type upsertPlan struct {
	table   string
	staging string
	columns []string
	keys    []string
	updates []string
}

func newUpsertPlan(cfg UpsertConfig) (*upsertPlan, error) {
	if len(cfg.Columns) == 0 {
		return nil, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return nil, eris.New("db: upsert: no conflict keys specified")
	}
	p := &upsertPlan{
		table:   cfg.Table,
		staging: "_tmp_upsert_" + strings.ReplaceAll(cfg.Table, ".", "_"),
		columns: cfg.Columns,
		keys:    cfg.ConflictKeys,
		updates: cfg.UpdateCols,
	}
	if p.updates == nil {
		isKey := make(map[string]bool, len(p.keys))
		for _, k := range p.keys {
			isKey[k] = true
		}
		for _, c := range p.columns {
			if !isKey[c] {
				p.updates = append(p.updates, c)
			}
		}
	}
	return p, nil
}

func (p *upsertPlan) stagingSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{p.staging}.Sanitize(), sanitizeTable(p.table))
}

func (p *upsertPlan) mergeSQL() string {
	set := make([]string, len(p.updates))
	for i, c := range p.updates {
		col := pgx.Identifier{c}.Sanitize()
		set[i] = col + " = EXCLUDED." + col
	}
	cols := quoteAndJoin(p.columns)
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		sanitizeTable(p.table), cols, cols, pgx.Identifier{p.staging}.Sanitize(),
		quoteAndJoin(p.keys), strings.Join(set, ", "))
}

// BulkUpsert stages rows in a temp table over COPY and merges them with
// INSERT ... ON CONFLICT, so a whole profile rebuild commits at once. Stored
// columns outside cfg.Columns keep their values.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	plan, err := newUpsertPlan(cfg)
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, plan.stagingSQL()); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: create temp table for %s", cfg.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{plan.staging}, plan.columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: COPY into temp table for %s", cfg.Table)
	}
	tag, err := tx.Exec(ctx, plan.mergeSQL())
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge into %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func sanitizeTable(table string) string {
	if schema, name, ok := strings.Cut(table, "."); ok {
		return pgx.Identifier{schema, name}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
