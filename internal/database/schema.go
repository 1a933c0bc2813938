package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrSchema marks a table that could not be created at all. Anything wrapped
// with it leaves the store unbootable and must surface to the host.
var ErrSchema = errors.New("schema")

// ErrUnknownTable is returned by Diagnose and Repair for tables outside the
// canonical catalog.
var ErrUnknownTable = errors.New("unknown table")

// Schema owns idempotent creation, diagnosis, and column repair of the store.
type Schema struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSchema(db *sql.DB, log *zap.Logger) *Schema {
	return &Schema{db: db, log: log}
}

type column struct {
	name string
	typ  string
	dflt string // empty means no DEFAULT clause
}

// canonical required columns per table. Repair adds what is absent and never
// drops or renames. Defaults must be constants: SQLite rejects ALTER TABLE
// ADD COLUMN with a non-constant default, so repaired timestamp columns come
// back without one.
var requiredColumns = map[string][]column{
	"users": {
		{"id", "TEXT", ""},
		{"name", "TEXT", "''"},
		{"email", "TEXT", ""},
		{"created_at", "TIMESTAMP", ""},
	},
	"accounts": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"name", "TEXT", "''"},
		{"account_type", "TEXT", "'cash'"},
		{"balance", "TEXT", "'0'"},
		{"currency", "TEXT", "'MAD'"},
		{"is_active", "INTEGER", "1"},
		{"created_at", "TIMESTAMP", ""},
	},
	"categories": {
		{"id", "TEXT", ""},
		{"name", "TEXT", "''"},
		{"category_type", "TEXT", "'expense'"},
		{"color", "TEXT", ""},
		{"icon", "TEXT", ""},
		{"parent_id", "TEXT", ""},
		{"level", "INTEGER", "0"},
		{"sort_order", "INTEGER", "0"},
	},
	"transactions": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"account_id", "TEXT", "''"},
		{"amount", "TEXT", "'0'"},
		{"tx_type", "TEXT", "'expense'"},
		{"category_id", "TEXT", ""},
		{"date", "TEXT", "''"},
		{"description", "TEXT", "''"},
		{"is_recurring", "INTEGER", "0"},
		{"recurrence_pattern", "TEXT", ""},
		{"recurrence_end_date", "TEXT", ""},
		{"parent_template_id", "TEXT", ""},
		{"next_occurrence", "TEXT", ""},
		{"created_at", "TIMESTAMP", ""},
	},
	"recurring_transactions": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"account_id", "TEXT", "''"},
		{"amount", "TEXT", "'0'"},
		{"pattern", "TEXT", "''"},
		{"next_date", "TEXT", ""},
		{"created_at", "TIMESTAMP", ""},
	},
	"budgets": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"category_id", "TEXT", ""},
		{"amount", "TEXT", "'0'"},
		{"currency", "TEXT", "'MAD'"},
		{"period", "TEXT", "'monthly'"},
		{"created_at", "TIMESTAMP", ""},
	},
	"debts": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"name", "TEXT", "''"},
		{"initial_amount", "TEXT", "'0'"},
		{"current_amount", "TEXT", "'0'"},
		{"monthly_payment", "TEXT", "'0'"},
		{"currency", "TEXT", "'MAD'"},
		{"due_date", "TEXT", ""},
		{"payment_account_id", "TEXT", ""},
		{"auto_pay", "INTEGER", "0"},
		{"start_payment_next_month", "INTEGER", "0"},
		{"status", "TEXT", "'active'"},
		{"created_at", "TIMESTAMP", ""},
	},
	"debt_payments": {
		{"id", "TEXT", ""},
		{"debt_id", "TEXT", "''"},
		{"amount", "TEXT", "'0'"},
		{"payment_date", "TEXT", "''"},
		{"payment_month", "TEXT", "''"},
		{"from_account_id", "TEXT", ""},
		{"created_at", "TIMESTAMP", ""},
	},
	"savings_goals": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", "''"},
		{"name", "TEXT", "''"},
		{"target_amount", "TEXT", "'0'"},
		{"current_amount", "TEXT", "'0'"},
		{"currency", "TEXT", "'MAD'"},
		{"created_at", "TIMESTAMP", ""},
	},
	"alerts": {
		{"id", "TEXT", ""},
		{"owner_id", "TEXT", ""},
		{"kind", "TEXT", "''"},
		{"message", "TEXT", "''"},
		{"created_at", "TIMESTAMP", ""},
	},
}

// creation order matters only for readability; foreign keys are off while the
// batch runs, so references cannot fail on ordering.
var tableOrder = []string{
	"users", "accounts", "categories", "transactions", "recurring_transactions",
	"budgets", "debts", "debt_payments", "savings_goals", "alerts",
}

var tableDDL = map[string]string{
	"users": `CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"accounts": `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		account_type TEXT NOT NULL CHECK (account_type IN ('cash', 'bank', 'card', 'savings')),
		balance TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'MAD',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"categories": `CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category_type TEXT NOT NULL DEFAULT 'expense',
		color TEXT,
		icon TEXT,
		parent_id TEXT REFERENCES categories(id),
		level INTEGER NOT NULL DEFAULT 0 CHECK (level IN (0, 1)),
		sort_order INTEGER NOT NULL DEFAULT 0)`,
	"transactions": `CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL CHECK (tx_type IN ('income', 'expense', 'transfer')),
		category_id TEXT,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurrence_pattern TEXT,
		recurrence_end_date TEXT,
		parent_template_id TEXT,
		next_occurrence TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"recurring_transactions": `CREATE TABLE IF NOT EXISTS recurring_transactions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		pattern TEXT NOT NULL,
		next_date TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"budgets": `CREATE TABLE IF NOT EXISTS budgets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		category_id TEXT,
		amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'MAD',
		period TEXT NOT NULL DEFAULT 'monthly',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"debts": `CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		initial_amount TEXT NOT NULL DEFAULT '0',
		current_amount TEXT NOT NULL DEFAULT '0',
		monthly_payment TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'MAD',
		due_date TEXT,
		payment_account_id TEXT,
		auto_pay INTEGER NOT NULL DEFAULT 0,
		start_payment_next_month INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'paid', 'overdue')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"debt_payments": `CREATE TABLE IF NOT EXISTS debt_payments (
		id TEXT PRIMARY KEY,
		debt_id TEXT NOT NULL REFERENCES debts(id),
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_month TEXT NOT NULL,
		from_account_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (debt_id, payment_month))`,
	"savings_goals": `CREATE TABLE IF NOT EXISTS savings_goals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target_amount TEXT NOT NULL DEFAULT '0',
		current_amount TEXT NOT NULL DEFAULT '0',
		currency TEXT NOT NULL DEFAULT 'MAD',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	"alerts": `CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		owner_id TEXT,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}

// EnsureSchema creates every table the engine needs. Foreign keys are off for
// the duration of the batch so creation order cannot fail, then restored.
// Safe to call any number of times.
func (s *Schema) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("%w: disable foreign keys: %v", ErrSchema, err)
	}
	defer func() {
		if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			s.log.Error("re-enable foreign keys", zap.Error(err))
		}
	}()

	for _, table := range tableOrder {
		if _, err := s.db.ExecContext(ctx, tableDDL[table]); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrSchema, table, err)
		}
	}
	return nil
}

// Diagnosis is the read-only health report for one table.
type Diagnosis struct {
	Table        string
	Columns      []string
	Missing      []string
	DuplicateIDs []string
	RowCount     int
}

// Diagnose inspects a table without modifying it.
func (s *Schema) Diagnose(ctx context.Context, table string) (Diagnosis, error) {
	required, ok := requiredColumns[table]
	if !ok {
		return Diagnosis{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	d := Diagnosis{Table: table}

	present, err := s.tableColumns(ctx, table)
	if err != nil {
		return Diagnosis{}, err
	}
	d.Columns = present

	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}
	for _, c := range required {
		if !have[c.name] {
			d.Missing = append(d.Missing, c.name)
		}
	}

	if have["id"] {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT id FROM %s GROUP BY id HAVING COUNT(*) > 1`, table))
		if err != nil {
			return Diagnosis{}, err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return Diagnosis{}, err
			}
			d.DuplicateIDs = append(d.DuplicateIDs, id)
		}
		if err := rows.Err(); err != nil {
			return Diagnosis{}, err
		}
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table))
	if err := row.Scan(&d.RowCount); err != nil {
		return Diagnosis{}, err
	}
	return d, nil
}

// Repair adds every canonical column missing from table. A column that
// already exists is a no-op; nothing is ever dropped or renamed.
func (s *Schema) Repair(ctx context.Context, table string) error {
	required, ok := requiredColumns[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	present, err := s.tableColumns(ctx, table)
	if err != nil {
		return fmt.Errorf("repair %s: %w", table, err)
	}
	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}

	for _, c := range required {
		if have[c.name] {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, c.name, c.typ)
		if c.dflt != "" {
			stmt += " DEFAULT " + c.dflt
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("repair %s.%s: %w", table, c.name, err)
		}
		s.log.Info("repaired missing column",
			zap.String("table", table), zap.String("column", c.name))
	}
	return nil
}

// RepairAll repairs every cataloged table. A failing table is logged and
// skipped so startup proceeds degraded instead of becoming unbootable.
func (s *Schema) RepairAll(ctx context.Context) {
	for _, table := range tableOrder {
		if err := s.Repair(ctx, table); err != nil {
			s.log.Warn("schema repair skipped", zap.String("table", table), zap.Error(err))
		}
	}
}

// Tables returns the canonical table list in creation order.
func Tables() []string {
	out := make([]string, len(tableOrder))
	copy(out, tableOrder)
	return out
}

func (s *Schema) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
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
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}
