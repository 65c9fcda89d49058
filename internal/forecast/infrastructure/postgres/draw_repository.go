package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	forecast "payoutflow/internal/forecast/domain"
)

const defaultDrawTable = "daily_draws"

// DrawRepository is a Postgres implementation for the draw ledger. Draws
// are append-only; totals are always recomputed by summation.
type DrawRepository struct {
	db    *sql.DB
	table string
}

// NewDrawRepository constructs a repository.
func NewDrawRepository(db *sql.DB, opts ...DrawOption) *DrawRepository {
	repo := &DrawRepository{db: db, table: defaultDrawTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// DrawOption configures the repository.
type DrawOption func(*DrawRepository)

// WithDrawTable overrides the default table.
func WithDrawTable(table string) DrawOption {
	return func(repo *DrawRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Insert appends a draw to the ledger.
func (r *DrawRepository) Insert(ctx context.Context, draw *forecast.DailyDraw) error {
	if r == nil || r.db == nil {
		return errors.New("draw repo: nil db")
	}
	if draw == nil {
		return errors.New("draw repo: nil draw")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, account_id, settlement_id, draw_date, amount, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)
	_, err := r.db.ExecContext(ctx, query,
		draw.ID, draw.AccountID, draw.SettlementID,
		draw.DrawDate.UTC(), int64(draw.Amount), draw.Notes, draw.CreatedAt.UTC())
	return err
}

// ListBySettlement returns the settlement's draws ordered by date.
func (r *DrawRepository) ListBySettlement(ctx context.Context, accountID, settlementID string) ([]*forecast.DailyDraw, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("draw repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, account_id, settlement_id, draw_date, amount, notes, created_at
FROM %s
WHERE account_id = $1 AND settlement_id = $2
ORDER BY draw_date ASC, created_at ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query, accountID, settlementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*forecast.DailyDraw
	for rows.Next() {
		var (
			draw   forecast.DailyDraw
			amount int64
		)
		if err := rows.Scan(&draw.ID, &draw.AccountID, &draw.SettlementID, &draw.DrawDate, &amount, &draw.Notes, &draw.CreatedAt); err != nil {
			return nil, err
		}
		draw.DrawDate = draw.DrawDate.UTC()
		draw.Amount = forecast.Money(amount)
		result = append(result, &draw)
	}
	return result, rows.Err()
}

// SumBySettlement totals the settlement's draws.
func (r *DrawRepository) SumBySettlement(ctx context.Context, accountID, settlementID string) (forecast.Money, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("draw repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(amount), 0)
FROM %s
WHERE account_id = $1 AND settlement_id = $2`, r.table)
	var total int64
	if err := r.db.QueryRowContext(ctx, query, accountID, settlementID).Scan(&total); err != nil {
		return 0, err
	}
	return forecast.Money(total), nil
}

// SumSince totals the account's draws dated on or after the given day.
func (r *DrawRepository) SumSince(ctx context.Context, accountID string, since time.Time) (forecast.Money, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("draw repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(SUM(amount), 0)
FROM %s
WHERE account_id = $1 AND draw_date >= $2`, r.table)
	var total int64
	if err := r.db.QueryRowContext(ctx, query, accountID, since.UTC()).Scan(&total); err != nil {
		return 0, err
	}
	return forecast.Money(total), nil
}

// ExistsOnDate reports whether any draw exists for the account on the day.
func (r *DrawRepository) ExistsOnDate(ctx context.Context, accountID string, day time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("draw repo: nil db")
	}
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE account_id = $1 AND draw_date = $2 LIMIT 1`, r.table)
	var one int
	err := r.db.QueryRowContext(ctx, query, accountID, day.UTC()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
