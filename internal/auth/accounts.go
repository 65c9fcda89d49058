package auth

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrAccountMismatch indicates the resource belongs to a different account.
	ErrAccountMismatch = errors.New("account mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// AccountAccessChecker validates account ownership for seller-bound tokens.
type AccountAccessChecker interface {
	EnsureAccountAccess(ctx context.Context, callerAccountID, accountID string) error
}

// AccountChecker checks account existence and ownership against the
// accounts table.
type AccountChecker struct {
	db *sql.DB
}

// NewAccountChecker constructs an AccountChecker.
func NewAccountChecker(db *sql.DB) *AccountChecker {
	if db == nil {
		return nil
	}
	return &AccountChecker{db: db}
}

// EnsureAccountAccess verifies the account exists and, when the caller's
// token is bound to an account, that both match. Service-wide tokens carry
// no binding and pass the ownership check.
func (c *AccountChecker) EnsureAccountAccess(ctx context.Context, callerAccountID, accountID string) error {
	if c == nil || c.db == nil {
		return nil
	}
	if accountID == "" {
		return nil
	}
	var exists bool
	err := c.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)`, accountID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if callerAccountID != "" && callerAccountID != accountID {
		return ErrAccountMismatch
	}
	return nil
}
