package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	forecast "payoutflow/internal/forecast/domain"
)

const defaultAccuracyTable = "forecast_accuracy"

// AccuracyRepository is a Postgres implementation for accuracy records.
type AccuracyRepository struct {
	db    *sql.DB
	table string
}

// NewAccuracyRepository constructs a repository.
func NewAccuracyRepository(db *sql.DB, opts ...AccuracyOption) *AccuracyRepository {
	repo := &AccuracyRepository{db: db, table: defaultAccuracyTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AccuracyOption configures the repository.
type AccuracyOption func(*AccuracyRepository)

// WithAccuracyTable overrides the default table.
func WithAccuracyTable(table string) AccuracyOption {
	return func(repo *AccuracyRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Upsert writes the record keyed by settlement id, so re-processing after a
// crash never duplicates rows.
func (r *AccuracyRepository) Upsert(ctx context.Context, record *forecast.ForecastAccuracyRecord) error {
	if r == nil || r.db == nil {
		return errors.New("accuracy repo: nil db")
	}
	if record == nil {
		return errors.New("accuracy repo: nil record")
	}
	byDay, err := json.Marshal(record.ForecastedByDay)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	settlement_id, account_id, period_start, period_end, days_accumulated,
	forecasted_amount, forecasted_by_day, actual_amount,
	difference_amount, difference_pct, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
)
ON CONFLICT (settlement_id)
DO UPDATE SET
	days_accumulated = EXCLUDED.days_accumulated,
	forecasted_amount = EXCLUDED.forecasted_amount,
	forecasted_by_day = EXCLUDED.forecasted_by_day,
	actual_amount = EXCLUDED.actual_amount,
	difference_amount = EXCLUDED.difference_amount,
	difference_pct = EXCLUDED.difference_pct,
	updated_at = NOW()`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		record.SettlementID,
		record.AccountID,
		record.PeriodStart.UTC(),
		record.PeriodEnd.UTC(),
		record.DaysAccumulated,
		int64(record.ForecastedAmount),
		byDay,
		int64(record.ActualAmount),
		int64(record.DifferenceAmount),
		record.DifferencePercentage,
	)
	return err
}

// FindBySettlementID loads one record, or nil.
func (r *AccuracyRepository) FindBySettlementID(ctx context.Context, settlementID string) (*forecast.ForecastAccuracyRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("accuracy repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT settlement_id, account_id, period_start, period_end, days_accumulated,
	forecasted_amount, forecasted_by_day, actual_amount,
	difference_amount, difference_pct, created_at, updated_at
FROM %s
WHERE settlement_id = $1`, r.table)
	record, err := scanAccuracy(r.db.QueryRowContext(ctx, query, settlementID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// ListByAccount returns an account's records ordered by period end
// descending.
func (r *AccuracyRepository) ListByAccount(ctx context.Context, accountID string) ([]*forecast.ForecastAccuracyRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("accuracy repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT settlement_id, account_id, period_start, period_end, days_accumulated,
	forecasted_amount, forecasted_by_day, actual_amount,
	difference_amount, difference_pct, created_at, updated_at
FROM %s
WHERE account_id = $1
ORDER BY period_end DESC`, r.table)
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*forecast.ForecastAccuracyRecord
	for rows.Next() {
		record, err := scanAccuracy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func scanAccuracy(row scanner) (*forecast.ForecastAccuracyRecord, error) {
	var (
		record     forecast.ForecastAccuracyRecord
		forecasted int64
		actual     int64
		difference int64
		byDay      []byte
	)
	if err := row.Scan(
		&record.SettlementID,
		&record.AccountID,
		&record.PeriodStart,
		&record.PeriodEnd,
		&record.DaysAccumulated,
		&forecasted,
		&byDay,
		&actual,
		&difference,
		&record.DifferencePercentage,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.ForecastedAmount = forecast.Money(forecasted)
	record.ActualAmount = forecast.Money(actual)
	record.DifferenceAmount = forecast.Money(difference)
	if len(byDay) > 0 {
		if err := json.Unmarshal(byDay, &record.ForecastedByDay); err != nil {
			return nil, err
		}
	}
	return &record, nil
}
