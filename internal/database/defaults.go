package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// taxonomyEntry describes one canonical category. Children reference their
// parent by name; ids are deterministic so reinstall keeps them stable.
type taxonomyEntry struct {
	name      string
	parent    string
	typ       string
	color     string
	icon      string
	sortOrder int
}

// canonicalTaxonomy is the fixed two-level category set. It is a versioned
// resource, not user data; the forced installer may replace the whole table
// with it.
var canonicalTaxonomy = []taxonomyEntry{
	{"Income", "", "income", "#a6e3a1", "wallet", 1},
	{"Salary", "Income", "income", "#a6e3a1", "banknote", 2},
	{"Freelance", "Income", "income", "#94e2d5", "laptop", 3},
	{"Housing", "", "expense", "#f38ba8", "home", 4},
	{"Rent", "Housing", "expense", "#f38ba8", "key", 5},
	{"Utilities", "Housing", "expense", "#cba6f7", "zap", 6},
	{"Food", "", "expense", "#fab387", "utensils", 7},
	{"Groceries", "Food", "expense", "#94e2d5", "cart", 8},
	{"Restaurants", "Food", "expense", "#fab387", "coffee", 9},
	{"Transport", "", "expense", "#89b4fa", "car", 10},
	{"Fuel", "Transport", "expense", "#89b4fa", "fuel", 11},
	{"Taxi & Tram", "Transport", "expense", "#74c7ec", "bus", 12},
	{"Health", "", "expense", "#74c7ec", "heart", 13},
	{"Pharmacy", "Health", "expense", "#74c7ec", "pill", 14},
	{"Shopping", "", "expense", "#f2cdcd", "bag", 15},
	{"Clothing", "Shopping", "expense", "#f2cdcd", "shirt", 16},
	{"Entertainment", "", "expense", "#f5c2e7", "film", 17},
	{"Subscriptions", "Entertainment", "expense", "#cba6f7", "repeat", 18},
	{"Savings", "", "transfer", "#b4befe", "piggy-bank", 19},
	{"Transfers", "", "transfer", "#b4befe", "arrows", 20},
	{"Other", "", "expense", "#7f849c", "dots", 21},
}

// CategoryID returns the deterministic id used for a canonical category name.
func CategoryID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("cat:"+strings.ToLower(name))).String()
}

// TaxonomySize is the expected row count after a successful install.
func TaxonomySize() int { return len(canonicalTaxonomy) }

// InitializeDefaultCategories seeds the canonical taxonomy. Without force,
// any existing category row gates seeding off entirely. With force, the
// table is atomically replaced: all rows deleted, the autoincrement counter
// reset, and the taxonomy reinstalled parents first; the whole reinstall
// rolls back unless the final count matches the taxonomy size.
func InitializeDefaultCategories(ctx context.Context, db *sql.DB, force bool) error {
	if !force {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		if n > 0 {
			return nil
		}
	}

	return WithTx(db, func(tx *sql.Tx) error {
		if force {
			if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
				return fmt.Errorf("clear categories: %w", err)
			}
			// sqlite_sequence only exists once an AUTOINCREMENT table has
			// been written; its absence is fine.
			if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'categories'`); err != nil &&
				!strings.Contains(err.Error(), "no such table") {
				return fmt.Errorf("reset category sequence: %w", err)
			}
		}

		// parents first so child rows can reference them by id.
		for _, e := range canonicalTaxonomy {
			if e.parent != "" {
				continue
			}
			if err := insertCategory(ctx, tx, e, nil); err != nil {
				return err
			}
		}
		for _, e := range canonicalTaxonomy {
			if e.parent == "" {
				continue
			}
			parentID := CategoryID(e.parent)
			if err := insertCategory(ctx, tx, e, &parentID); err != nil {
				return err
			}
		}

		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
			return fmt.Errorf("verify category count: %w", err)
		}
		if n != len(canonicalTaxonomy) {
			return fmt.Errorf("category install verification: have %d rows, want %d", n, len(canonicalTaxonomy))
		}
		return nil
	})
}

func insertCategory(ctx context.Context, tx *sql.Tx, e taxonomyEntry, parentID *string) error {
	level := 0
	if parentID != nil {
		level = 1
	}
	_, err := tx.ExecContext(ctx, `
	INSERT INTO categories(id, name, category_type, color, icon, parent_id, level, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 category_type=excluded.category_type,
	 color=excluded.color,
	 icon=excluded.icon,
	 parent_id=excluded.parent_id,
	 level=excluded.level,
	 sort_order=excluded.sort_order;
	`, CategoryID(e.name), e.name, e.typ, e.color, e.icon, parentID, level, e.sortOrder)
	if err != nil {
		return fmt.Errorf("install category %s: %w", e.name, err)
	}
	return nil
}
