package repository

import (
	"context"
	"database/sql"
	"strings"
)

// TransactionFilters defines list filters.
type TransactionFilters struct {
	OwnerID   string
	AccountID string
	TxType    string
	DateFrom  string // YYYY-MM-DD inclusive
	DateTo    string // YYYY-MM-DD inclusive
}

// TransactionRepo handles transaction reads and template bookkeeping.
// Balance-bearing writes go through the ledger service, never here.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = `id, owner_id, account_id, amount, tx_type, category_id, date, description,
 is_recurring, recurrence_pattern, recurrence_end_date, parent_template_id, next_occurrence, created_at`

func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []interface{}

	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.TxType != "" {
		where = append(where, "tx_type = ?")
		args = append(args, f.TxType)
	}
	if f.DateFrom != "" {
		where = append(where, "date >= ?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		where = append(where, "date <= ?")
		args = append(args, f.DateTo)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTemplates returns active recurring templates: rows flagged recurring
// whose end date, if any, has not passed the given day.
func (r *TransactionRepo) ListTemplates(ctx context.Context, today string) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+transactionColumns+` FROM transactions
	WHERE is_recurring = 1
	  AND recurrence_pattern IS NOT NULL
	  AND (recurrence_end_date IS NULL OR recurrence_end_date >= ?)
	ORDER BY created_at`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// OccurrenceExists reports whether a materialized occurrence already exists
// for (template, date).
func (r *TransactionRepo) OccurrenceExists(ctx context.Context, templateID, date string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE parent_template_id = ? AND date = ?`,
		templateID, date).Scan(&n)
	return n > 0, err
}

// SetNextOccurrence advances a template's cached next-occurrence date.
func (r *TransactionRepo) SetNextOccurrence(ctx context.Context, id, date string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET next_occurrence = ? WHERE id = ?`, date, id)
	return err
}

// scanTransaction handles nullable fields for both Row and Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (Transaction, error) {
	var t Transaction
	var category, pattern, endDate, parent, next sql.NullString
	if err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.Amount, &t.TxType, &category,
		&t.Date, &t.Description, &t.IsRecurring, &pattern, &endDate, &parent, &next,
		&t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	if category.Valid {
		t.CategoryID = &category.String
	}
	if pattern.Valid {
		t.RecurrencePattern = &pattern.String
	}
	if endDate.Valid {
		t.RecurrenceEndDate = &endDate.String
	}
	if parent.Valid {
		t.ParentTemplateID = &parent.String
	}
	if next.Valid {
		t.NextOccurrence = &next.String
	}
	return t, nil
}
