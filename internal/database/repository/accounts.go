package repository

import (
	"context"
	"database/sql"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(id, owner_id, name, account_type, balance, currency, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 account_type=excluded.account_type,
	 currency=excluded.currency,
	 is_active=excluded.is_active;
	`, a.ID, a.OwnerID, a.Name, a.AccountType, a.Balance, a.Currency, a.IsActive)
	return err
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner_id, name, account_type, balance, currency, is_active, created_at FROM accounts WHERE id = ?`, id)
	var a Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.AccountType, &a.Balance, &a.Currency, &a.IsActive, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context, ownerID string) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, name, account_type, balance, currency, is_active, created_at FROM accounts WHERE owner_id = ? ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.AccountType, &a.Balance, &a.Currency, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Deactivate soft-deletes an account still referenced by history.
func (r *AccountRepo) Deactivate(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET is_active = 0 WHERE id = ?`, id)
	return err
}
