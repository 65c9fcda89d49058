package volume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	forecast "payoutflow/internal/forecast/domain"
)

const defaultOrdersTable = "seller_orders"

// DailyVolumeReader aggregates captured order volume per calendar day. The
// totals weight the daily distribution so heavier sales days unlock more.
type DailyVolumeReader struct {
	db    *sql.DB
	table string
}

// NewDailyVolumeReader constructs a reader.
func NewDailyVolumeReader(db *sql.DB, opts ...ReaderOption) *DailyVolumeReader {
	reader := &DailyVolumeReader{db: db, table: defaultOrdersTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ReaderOption configures the reader.
type ReaderOption func(*DailyVolumeReader)

// WithTable overrides the orders table name.
func WithTable(table string) ReaderOption {
	return func(reader *DailyVolumeReader) {
		if reader != nil && table != "" {
			reader.table = table
		}
	}
}

// ListDailyVolume returns per-day captured volume for an account in the
// inclusive range. Days without orders are absent from the result.
func (r *DailyVolumeReader) ListDailyVolume(ctx context.Context, accountID string, from, to time.Time) ([]forecast.DayVolume, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("daily volume reader: nil db")
	}
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, forecast.ErrInvalidPeriodBounds
	}

	from = forecast.DateOnly(from, time.UTC)
	to = forecast.DateOnly(to, time.UTC)

	query := fmt.Sprintf(`
SELECT order_date, COALESCE(SUM(amount_cents), 0)
FROM %s
WHERE account_id = $1 AND order_date >= $2 AND order_date <= $3 AND status = 'captured'
GROUP BY order_date
ORDER BY order_date ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []forecast.DayVolume
	for rows.Next() {
		var day time.Time
		var amount int64
		if err := rows.Scan(&day, &amount); err != nil {
			return nil, err
		}
		if amount <= 0 {
			continue
		}
		result = append(result, forecast.DayVolume{
			Date:   forecast.DateOnly(day, time.UTC),
			Volume: amount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
