package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"devhelper/internal/domain"
)

// checkVersioned turns a conditional update that touched no rows into
// ErrNotFound or ErrConflict.
func checkVersioned(ctx context.Context, db *sqlx.DB, res sql.Result, table, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(fmt.Errorf("rows affected: %w", err))
	}
	if n > 0 {
		return nil
	}

	var exists int
	query := db.Rebind(`SELECT COUNT(*) FROM ` + table + ` WHERE id = ?`)
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, db), &exists, query, id); err != nil {
		return mapError(fmt.Errorf("check %s %s: %w", table, id, err))
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, table, id)
	}
	return fmt.Errorf("%w: %s %s was modified", domain.ErrConflict, table, id)
}
