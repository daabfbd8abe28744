package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/core/bootstrap"
	"github.com/m3rciful/travelwallet/internal/ledger"
)

// DefaultCategories is the fixed category set. The last entry is the default "Other".
var DefaultCategories = []ledger.Category{
	{ID: 1, Name: "Food & drinks", Icon: "🍽"},
	{ID: 2, Name: "Transport", Icon: "🚕"},
	{ID: 3, Name: "Lodging", Icon: "🏨"},
	{ID: 4, Name: "Entertainment", Icon: "🎭"},
	{ID: 5, Name: "Shopping", Icon: "🛍"},
	{ID: 6, Name: "Health", Icon: "💊"},
	{ID: 7, Name: "Connectivity", Icon: "📱"},
	{ID: ledger.DefaultCategoryID, Name: "Other", Icon: "📦"},
}

// CategorySeeder inserts DefaultCategories, leaving existing rows alone.
func CategorySeeder() bootstrap.Seeder {
	return bootstrap.SeederFunc{Label: "expense_categories", Fn: SeedCategories}
}

// SeedCategories inserts the default categories that are missing.
func SeedCategories(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, c := range DefaultCategories {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO expense_categories (id, name, icon) VALUES (?, ?, ?)
			ON CONFLICT (id) DO NOTHING`), c.ID, c.Name, c.Icon)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	var out []ledger.Category
	err := s.read(ctx, "category.list", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &out, `SELECT id, name, icon FROM expense_categories ORDER BY id`)
	})
	return out, err
}

// GetCategory loads one category.
func (s *Store) GetCategory(ctx context.Context, id int64) (ledger.Category, error) {
	var c ledger.Category
	err := s.get(ctx, "category.get", &c, `SELECT id, name, icon FROM expense_categories WHERE id = ?`, id)
	return c, err
}
