package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// CreditLedger keeps credit balances in the credit_balances table. Consume
// is a single conditional UPDATE, so concurrent callers can never drive a
// balance negative.
type CreditLedger struct {
	db *DB
}

var _ ports.CreditLedger = (*CreditLedger)(nil)

// NewCreditLedger wires a database handle.
func NewCreditLedger(db *DB) *CreditLedger {
	return &CreditLedger{db: db}
}

// Grant sets the quota of a user and resource, creating the balance row when
// missing. Consumed credits are kept.
func (l *CreditLedger) Grant(ctx context.Context, userID string, resource domain.ResourceType, quota int) error {
	if quota < 0 {
		return domain.NewError(domain.KindValidation, "quota must not be negative", nil)
	}
	_, err := l.db.exec(ctx, l.db.builder.Insert("credit_balances").
		Columns("user_id", "resource", "quota", "consumed").
		Values(userID, string(resource), quota, 0).
		Suffix("ON CONFLICT (user_id, resource) DO UPDATE SET quota = excluded.quota"))
	if err != nil {
		return fmt.Errorf("grant %s credits to %s: %w", resource, userID, err)
	}
	return nil
}

// Balance returns the stored balance; a missing row is an empty balance.
func (l *CreditLedger) Balance(ctx context.Context, userID string, resource domain.ResourceType) (domain.CreditBalance, error) {
	balance := domain.CreditBalance{UserID: userID, Resource: resource}
	row, err := l.db.queryRow(ctx, l.db.builder.Select("quota", "consumed").From("credit_balances").
		Where(sq.Eq{"user_id": userID, "resource": string(resource)}))
	if err != nil {
		return balance, err
	}
	if err := row.Scan(&balance.Quota, &balance.Consumed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return balance, nil
		}
		return balance, fmt.Errorf("load %s credits of %s: %w", resource, userID, err)
	}
	return balance, nil
}

// Check reports whether qty credits are available.
func (l *CreditLedger) Check(ctx context.Context, userID string, resource domain.ResourceType, qty int) (domain.CreditCheck, error) {
	balance, err := l.Balance(ctx, userID, resource)
	if err != nil {
		return domain.CreditCheck{}, err
	}
	available := balance.Available()
	return domain.CreditCheck{HasCredits: qty > 0 && available >= qty, CurrentCredits: available}, nil
}

// Consume atomically takes qty credits and returns the remaining balance.
// It fails with insufficient-credits instead of going negative.
func (l *CreditLedger) Consume(ctx context.Context, userID string, resource domain.ResourceType, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.NewError(domain.KindValidation, "quantity must be positive", nil)
	}
	res, err := l.db.exec(ctx, l.db.builder.Update("credit_balances").
		Set("consumed", sq.Expr("consumed + ?", qty)).
		Where(sq.Eq{"user_id": userID, "resource": string(resource)}).
		Where(sq.Expr("quota - consumed >= ?", qty)))
	if err != nil {
		return 0, fmt.Errorf("consume %s credits of %s: %w", resource, userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("consume %s credits of %s: %w", resource, userID, err)
	}

	balance, balanceErr := l.Balance(ctx, userID, resource)
	if balanceErr != nil {
		return 0, balanceErr
	}
	if n == 0 {
		return balance.Available(), domain.NewError(domain.KindInsufficientCredits,
			fmt.Sprintf("%d %s credits requested, %d available", qty, resource, balance.Available()), nil)
	}
	return balance.Available(), nil
}

// Restore gives back qty credits. Consumed never drops below zero.
func (l *CreditLedger) Restore(ctx context.Context, userID string, resource domain.ResourceType, qty int) error {
	if qty <= 0 {
		return domain.NewError(domain.KindValidation, "quantity must be positive", nil)
	}
	_, err := l.db.exec(ctx, l.db.builder.Update("credit_balances").
		Set("consumed", sq.Expr("CASE WHEN consumed > ? THEN consumed - ? ELSE 0 END", qty, qty)).
		Where(sq.Eq{"user_id": userID, "resource": string(resource)}))
	if err != nil {
		return fmt.Errorf("restore %s credits of %s: %w", resource, userID, err)
	}
	return nil
}
