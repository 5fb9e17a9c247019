package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Loader is the part of a pgx transaction that Replace needs.
type Loader interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Replace empties table and loads rows over COPY. Run it inside a
// transaction so readers never see the table half rebuilt.
func Replace(ctx context.Context, tx Loader, table string, columns []string, rows [][]any) (int64, error) {
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", sanitizeTable(table))); err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: clear", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace %s: copy", table)
	}
	return n, nil
}
