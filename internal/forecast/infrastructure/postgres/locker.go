package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// AdvisoryLocker serializes work per settlement using Postgres advisory
// locks. The lock is held on a dedicated transaction for the duration of
// the callback and released on commit.
type AdvisoryLocker struct {
	db *sql.DB
}

// NewAdvisoryLocker constructs a locker.
func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// WithLock runs fn while holding an exclusive advisory lock keyed by the
// account/settlement pair.
func (l *AdvisoryLocker) WithLock(ctx context.Context, accountID, settlementID string, fn func(ctx context.Context) error) error {
	if l == nil || l.db == nil {
		return errors.New("advisory locker: nil db")
	}
	if fn == nil {
		return errors.New("advisory locker: nil callback")
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	key := accountID + "|" + settlementID
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
