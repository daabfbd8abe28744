package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/logger"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

// RecordExpense inserts the expense and decrements the trip balances in one transaction.
// The balances are re-read inside the transaction so concurrent expenses never overwrite each other.
func (s *Store) RecordExpense(ctx context.Context, e ledger.NewExpense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.CategoryID == 0 {
		e.CategoryID = ledger.DefaultCategoryID
	}
	var description *string
	if d := strings.TrimSpace(e.Description); d != "" {
		description = &d
	}

	var (
		id  int64
		bal struct {
			Status  ledger.TripStatus `db:"status"`
			Home    float64           `db:"current_balance_home"`
			Foreign float64           `db:"current_balance_foreign"`
		}
	)
	err := s.write(ctx, "expense.record", func(tx *sqlx.Tx) error {
		if err := consume(ctx, tx, e.Claim); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &bal, tx.Rebind(`
			SELECT status, current_balance_home, current_balance_foreign FROM trips WHERE id = ?`), e.TripID)
		if err != nil {
			return notFound(err)
		}
		if bal.Status == ledger.TripClosed {
			return ledger.ErrTripClosed
		}

		var one int
		if err := tx.GetContext(ctx, &one, tx.Rebind(`SELECT 1 FROM expense_categories WHERE id = ?`), e.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("category %d: %w", e.CategoryID, ledger.ErrNotFound)
			}
			return err
		}

		err = tx.QueryRowxContext(ctx, tx.Rebind(`
			INSERT INTO expenses (trip_id, category_id, amount_foreign, amount_home, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
			e.TripID, e.CategoryID, e.AmountForeign, e.AmountHome, description, s.now(),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}

		bal.Home -= e.AmountHome
		bal.Foreign -= e.AmountForeign
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE trips SET current_balance_home = ?, current_balance_foreign = ? WHERE id = ?`),
			bal.Home, bal.Foreign, e.TripID)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, logger.ComponentLedger, "expense.recorded",
		slog.Int64("expense_id", id),
		slog.Int64("trip_id", e.TripID),
		slog.Int64("category_id", e.CategoryID),
		slog.Float64("amount", e.AmountForeign),
	)
	return id, nil
}

// ListExpenses returns the newest expenses of a trip with their category name and icon.
func (s *Store) ListExpenses(ctx context.Context, tripID int64, limit int, categoryID *int64) ([]ledger.Expense, error) {
	q := s.sb.Select(
		"e.id", "e.trip_id", "e.category_id", "e.amount_foreign", "e.amount_home",
		"e.description", "e.created_at", "c.name AS category_name", "c.icon AS category_icon",
	).
		From("expenses e").
		Join("expense_categories c ON c.id = e.category_id").
		Where(squirrel.Eq{"e.trip_id": tripID}).
		OrderBy("e.created_at DESC", "e.id DESC")
	if categoryID != nil {
		q = q.Where(squirrel.Eq{"e.category_id": *categoryID})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	var out []ledger.Expense
	if err := s.selectBuilt(ctx, "expense.list", &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpenseTotals sums all expenses of a trip.
func (s *Store) ExpenseTotals(ctx context.Context, tripID int64) (ledger.Totals, error) {
	var t ledger.Totals
	err := s.get(ctx, "expense.totals", &t, `
		SELECT COALESCE(SUM(amount_foreign), 0.0) AS total_foreign,
		       COALESCE(SUM(amount_home), 0.0) AS total_home
		FROM expenses WHERE trip_id = ?`, tripID)
	return t, err
}

type categoryTotalRow struct {
	ID      int64   `db:"id"`
	Name    string  `db:"name"`
	Icon    string  `db:"icon"`
	Count   int     `db:"cnt"`
	Foreign float64 `db:"total_foreign"`
	Home    float64 `db:"total_home"`
}

// ExpenseTotalsByCategory groups a trip's expenses by category, largest foreign total first.
func (s *Store) ExpenseTotalsByCategory(ctx context.Context, tripID int64) ([]ledger.CategoryTotal, error) {
	q := s.sb.Select(
		"c.id", "c.name", "c.icon", "COUNT(e.id) AS cnt",
		"SUM(e.amount_foreign) AS total_foreign", "SUM(e.amount_home) AS total_home",
	).
		From("expenses e").
		Join("expense_categories c ON c.id = e.category_id").
		Where(squirrel.Eq{"e.trip_id": tripID}).
		GroupBy("c.id", "c.name", "c.icon").
		OrderBy("total_foreign DESC", "c.id")
	var rows []categoryTotalRow
	if err := s.selectBuilt(ctx, "expense.totals_by_category", &rows, q); err != nil {
		return nil, err
	}
	out := make([]ledger.CategoryTotal, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.CategoryTotal{
			Category: ledger.Category{ID: r.ID, Name: r.Name, Icon: r.Icon},
			Count:    r.Count,
			Totals:   ledger.Totals{Foreign: r.Foreign, Home: r.Home},
		})
	}
	return out, nil
}

// Stats counts users, trips and expenses.
func (s *Store) Stats(ctx context.Context) (ledger.Stats, error) {
	var st ledger.Stats
	err := s.get(ctx, "stats", &st, `
		SELECT (SELECT COUNT(*) FROM users) AS users,
		       (SELECT COUNT(*) FROM trips) AS trips,
		       (SELECT COUNT(*) FROM expenses) AS expenses`)
	return st, err
}
