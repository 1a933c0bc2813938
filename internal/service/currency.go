package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Rhymond/go-money"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/prefs"
)

// currencyTables lists every table carrying a currency column. Tables or
// columns missing from an older database are tolerated and skipped.
var currencyTables = []string{"accounts", "transactions", "budgets", "savings_goals", "debts"}

// CurrencyMigrator normalizes the currency column across all monetary
// tables to one canonical code and records that selection in the
// preference store.
type CurrencyMigrator struct {
	db        *sql.DB
	prefs     *prefs.Store
	canonical string
	log       *zap.Logger
}

func NewCurrencyMigrator(db *sql.DB, store *prefs.Store, canonical string, log *zap.Logger) *CurrencyMigrator {
	return &CurrencyMigrator{db: db, prefs: store, canonical: canonical, log: log}
}

// CheckCurrencyConsistency counts, per table, the rows whose currency
// differs from the canonical code. Read-only.
func (c *CurrencyMigrator) CheckCurrencyConsistency(ctx context.Context, ownerID string) (map[string]int, error) {
	counts := map[string]int{}
	for _, table := range currencyTables {
		ok, err := c.hasCurrencyColumn(ctx, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE currency != ?`, table)
		args := []interface{}{c.canonical}
		if ownerID != "" {
			query += " AND owner_id = ?"
			args = append(args, ownerID)
		}
		var n int
		if err := c.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("check %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// MigrateAllToCanonical rewrites every non-canonical currency value in one
// SQL transaction, then persists the canonical code to the preference
// store. Re-entrant: a second run finds nothing to update. Returns the
// number of rows changed.
func (c *CurrencyMigrator) MigrateAllToCanonical(ctx context.Context, ownerID string) (int, error) {
	if money.GetCurrency(c.canonical) == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCurrency, c.canonical)
	}

	total := 0
	err := database.WithTx(c.db, func(tx *sql.Tx) error {
		for _, table := range currencyTables {
			ok, err := c.hasCurrencyColumn(ctx, table)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			query := fmt.Sprintf(`UPDATE %s SET currency = ? WHERE currency != ?`, table)
			args := []interface{}{c.canonical, c.canonical}
			if ownerID != "" {
				query += " AND owner_id = ?"
				args = append(args, ownerID)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("normalize %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := c.prefs.SetCanonicalCurrency(c.canonical); err != nil {
		return total, fmt.Errorf("persist canonical currency: %w", err)
	}
	if total > 0 {
		c.log.Info("normalized currencies",
			zap.String("canonical", c.canonical), zap.Int("rows", total))
	}
	return total, nil
}

// hasCurrencyColumn reports whether table exists and carries a currency
// column. PRAGMA table_info returns no rows for a missing table, which
// reads as "skip" rather than an error.
func (c *CurrencyMigrator) hasCurrencyColumn(ctx context.Context, table string) (bool, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == "currency" {
			return true, nil
		}
	}
	return false, rows.Err()
}
