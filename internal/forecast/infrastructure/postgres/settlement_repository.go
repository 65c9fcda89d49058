package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	forecast "payoutflow/internal/forecast/domain"
)

const defaultSettlementTable = "settlement_periods"

// SettlementRepository is a Postgres implementation for settlement periods
// and their per-day forecast rows.
type SettlementRepository struct {
	db       *sql.DB
	table    string
	currency string
}

// NewSettlementRepository constructs a repository with defaults.
func NewSettlementRepository(db *sql.DB, opts ...SettlementOption) *SettlementRepository {
	repo := &SettlementRepository{
		db:       db,
		table:    defaultSettlementTable,
		currency: "USD",
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SettlementOption configures the repository.
type SettlementOption func(*SettlementRepository)

// WithSettlementTable overrides the default table.
func WithSettlementTable(table string) SettlementOption {
	return func(repo *SettlementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithCurrency sets the default currency code.
func WithCurrency(currency string) SettlementOption {
	return func(repo *SettlementRepository) {
		if currency != "" {
			repo.currency = currency
		}
	}
}

const settlementColumns = "settlement_id, account_id, period_start, period_end, total_amount, beginning_balance, currency, status"

// FindBySettlementID returns the parent (estimated or confirmed) settlement
// row, or nil.
func (r *SettlementRepository) FindBySettlementID(ctx context.Context, accountID, settlementID string) (*forecast.SettlementPeriod, error) {
	if err := r.check(accountID); err != nil {
		return nil, err
	}
	if settlementID == "" {
		return nil, forecast.ErrEmptySettlementID
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_id = $1 AND settlement_id = $2 AND status IN ('estimated', 'confirmed')
ORDER BY CASE WHEN status = 'estimated' THEN 0 ELSE 1 END
LIMIT 1`, settlementColumns, r.table)
	return r.queryOne(ctx, query, accountID, settlementID)
}

// ListOpen returns open settlements ordered newest first; open-ended
// periods sort before closed ones.
func (r *SettlementRepository) ListOpen(ctx context.Context, accountID string) ([]*forecast.SettlementPeriod, error) {
	if err := r.check(accountID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_id = $1 AND status = 'estimated'
ORDER BY period_end DESC NULLS FIRST, period_start DESC`, settlementColumns, r.table)
	return r.queryMany(ctx, query, accountID)
}

// ListConfirmedClosedSince returns confirmed settlements closing on or after
// the given day, newest first.
func (r *SettlementRepository) ListConfirmedClosedSince(ctx context.Context, accountID string, since time.Time) ([]*forecast.SettlementPeriod, error) {
	if err := r.check(accountID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_id = $1 AND status = 'confirmed' AND period_end >= $2
ORDER BY period_end DESC`, settlementColumns, r.table)
	return r.queryMany(ctx, query, accountID, since.UTC())
}

// FindForecastOnDate returns the forecast row for the calendar day, or nil.
func (r *SettlementRepository) FindForecastOnDate(ctx context.Context, accountID string, day time.Time) (*forecast.SettlementPeriod, error) {
	if err := r.check(accountID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_id = $1 AND status IN ('forecasted', 'rolled_over') AND period_start = $2
ORDER BY status
LIMIT 1`, settlementColumns, r.table)
	return r.queryOne(ctx, query, accountID, day.UTC())
}

// ListForecastsBetween returns forecast rows in the inclusive day range.
func (r *SettlementRepository) ListForecastsBetween(ctx context.Context, accountID string, from, to time.Time) ([]*forecast.SettlementPeriod, error) {
	if err := r.check(accountID); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE account_id = $1 AND status IN ('forecasted', 'rolled_over')
  AND period_start >= $2 AND period_start <= $3
ORDER BY period_start ASC, status ASC`, settlementColumns, r.table)
	return r.queryMany(ctx, query, accountID, from.UTC(), to.UTC())
}

// ReplaceAccountForecasts swaps the account's entire forecasted set in one
// transaction, so no window exists where no forecast rows are visible.
func (r *SettlementRepository) ReplaceAccountForecasts(ctx context.Context, accountID string, rows []*forecast.SettlementPeriod) error {
	if err := r.check(accountID); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE account_id = $1 AND status = 'forecasted'`, r.table)
		if _, err := tx.ExecContext(ctx, query, accountID); err != nil {
			return err
		}
		return r.insertRows(ctx, tx, rows)
	})
}

// ReplaceForecastRange swaps one settlement's forecasted rows within the
// inclusive day range in one transaction.
func (r *SettlementRepository) ReplaceForecastRange(ctx context.Context, accountID, settlementID string, from, to time.Time, rows []*forecast.SettlementPeriod) error {
	if err := r.check(accountID); err != nil {
		return err
	}
	if settlementID == "" {
		return forecast.ErrEmptySettlementID
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		query := fmt.Sprintf(`
DELETE FROM %s
WHERE account_id = $1 AND settlement_id = $2 AND status = 'forecasted'
  AND period_start >= $3 AND period_start <= $4`, r.table)
		if _, err := tx.ExecContext(ctx, query, accountID, settlementID, from.UTC(), to.UTC()); err != nil {
			return err
		}
		return r.insertRows(ctx, tx, rows)
	})
}

// ApplyRollover marks the source settlement's day rolled over and folds its
// amount into the target settlement's day atomically. Both updates key on
// the settlement id, so a sibling settlement's row on the same day stays
// untouched. The status guard on the source update makes a second run a
// no-op instead of a double-carry.
func (r *SettlementRepository) ApplyRollover(ctx context.Context, accountID, sourceSettlementID, targetSettlementID string, fromDay, toDay time.Time, carry forecast.Money) (bool, error) {
	if err := r.check(accountID); err != nil {
		return false, err
	}
	if sourceSettlementID == "" || targetSettlementID == "" {
		return false, forecast.ErrEmptySettlementID
	}
	applied := false
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		source := fmt.Sprintf(`
UPDATE %s
SET status = 'rolled_over', updated_at = NOW()
WHERE account_id = $1 AND settlement_id = $2 AND period_start = $3 AND status = 'forecasted'`, r.table)
		res, err := tx.ExecContext(ctx, source, accountID, sourceSettlementID, fromDay.UTC())
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		target := fmt.Sprintf(`
UPDATE %s
SET total_amount = total_amount + $4, updated_at = NOW()
WHERE account_id = $1 AND settlement_id = $2 AND period_start = $3 AND status = 'forecasted'`, r.table)
		res, err = tx.ExecContext(ctx, target, accountID, targetSettlementID, toDay.UTC(), int64(carry))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return forecast.ErrStaleRolloverTarget
		}
		applied = true
		return nil
	})
	return applied, err
}

// Save upserts a settlement period.
func (r *SettlementRepository) Save(ctx context.Context, period *forecast.SettlementPeriod) error {
	if period == nil {
		return forecast.ErrNilSettlement
	}
	if err := r.check(period.AccountID); err != nil {
		return err
	}
	if period.SettlementID == "" {
		return forecast.ErrEmptySettlementID
	}
	currency := period.CurrencyCode
	if currency == "" {
		currency = r.currency
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	settlement_id, account_id, period_start, period_end,
	total_amount, beginning_balance, currency, status, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
)
ON CONFLICT (account_id, settlement_id, period_start, status)
DO UPDATE SET
	period_end = EXCLUDED.period_end,
	total_amount = EXCLUDED.total_amount,
	beginning_balance = EXCLUDED.beginning_balance,
	currency = EXCLUDED.currency,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		period.SettlementID,
		period.AccountID,
		period.PeriodStart.UTC(),
		nullTime(period.PeriodEnd),
		int64(period.TotalAmount),
		nullBalance(period),
		currency,
		string(period.Status),
	)
	return err
}

// ListAccountIDs returns every account with settlement rows.
func (r *SettlementRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	query := fmt.Sprintf(`SELECT DISTINCT account_id FROM %s ORDER BY account_id`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var accountID string
		if err := rows.Scan(&accountID); err != nil {
			return nil, err
		}
		result = append(result, accountID)
	}
	return result, rows.Err()
}

func (r *SettlementRepository) check(accountID string) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	if accountID == "" {
		return forecast.ErrEmptyAccountID
	}
	return nil
}

func (r *SettlementRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r *SettlementRepository) insertRows(ctx context.Context, tx *sql.Tx, rows []*forecast.SettlementPeriod) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	settlement_id, account_id, period_start, period_end,
	total_amount, beginning_balance, currency, status, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`, r.table)
	for _, row := range rows {
		if row == nil {
			continue
		}
		currency := row.CurrencyCode
		if currency == "" {
			currency = r.currency
		}
		if _, err := tx.ExecContext(ctx, query,
			row.SettlementID,
			row.AccountID,
			row.PeriodStart.UTC(),
			nullTime(row.PeriodEnd),
			int64(row.TotalAmount),
			nullBalance(row),
			currency,
			string(row.Status),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SettlementRepository) queryOne(ctx context.Context, query string, args ...any) (*forecast.SettlementPeriod, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	period, err := scanPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return period, err
}

func (r *SettlementRepository) queryMany(ctx context.Context, query string, args ...any) ([]*forecast.SettlementPeriod, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*forecast.SettlementPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, period)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPeriod(row scanner) (*forecast.SettlementPeriod, error) {
	var (
		period    forecast.SettlementPeriod
		periodEnd sql.NullTime
		beginning sql.NullInt64
		total     int64
		status    string
	)
	if err := row.Scan(
		&period.SettlementID,
		&period.AccountID,
		&period.PeriodStart,
		&periodEnd,
		&total,
		&beginning,
		&period.CurrencyCode,
		&status,
	); err != nil {
		return nil, err
	}
	period.PeriodStart = period.PeriodStart.UTC()
	if periodEnd.Valid {
		period.PeriodEnd = periodEnd.Time.UTC()
	}
	period.TotalAmount = forecast.Money(total)
	if beginning.Valid {
		period.BeginningBalance = forecast.Money(beginning.Int64)
		period.HasBeginning = true
	}
	period.Status = forecast.Status(status)
	return &period, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullBalance(period *forecast.SettlementPeriod) any {
	if !period.HasBeginning {
		return nil
	}
	return int64(period.BeginningBalance)
}
