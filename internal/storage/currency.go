package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/travelwallet/internal/ledger"
)

func countryKey(country string) string {
	return strings.ToLower(strings.Join(strings.Fields(country), " "))
}

// LookupCurrency returns the cached currency code for a country.
func (s *Store) LookupCurrency(ctx context.Context, country string) (string, bool, error) {
	key := countryKey(country)
	if key == "" {
		return "", false, nil
	}
	var codes []string
	err := s.read(ctx, "currency.lookup", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &codes, s.db.Rebind(`
			SELECT currency_code FROM currency_cache WHERE country_name = ?`), key)
	})
	if err != nil || len(codes) == 0 {
		return "", false, err
	}
	return codes[0], true, nil
}

// StoreCurrency records or overwrites the currency code of a country.
func (s *Store) StoreCurrency(ctx context.Context, country, code string) error {
	key := countryKey(country)
	code = strings.ToUpper(strings.TrimSpace(code))
	if key == "" || code == "" {
		return fmt.Errorf("%w: country and currency are required", ledger.ErrInvalidArgument)
	}
	return s.write(ctx, "currency.store", func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO currency_cache (country_name, currency_code, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT (country_name) DO UPDATE SET
				currency_code = excluded.currency_code,
				updated_at = excluded.updated_at`),
			key, code, s.now())
		if err != nil {
			return fmt.Errorf("store currency: %w", err)
		}
		return nil
	})
}
