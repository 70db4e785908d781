// Package tx wraps the begin/rollback/commit ceremony around a function, so
// stores express multi-statement writes as a single closure.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Run executes fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error comes back unwrapped so
// sentinel checks keep working.
func Run(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	t, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(t); err != nil {
		if rbErr := t.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
