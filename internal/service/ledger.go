package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
)

// Ledger posts and deletes transactions atomically against account balances.
// The row insert and the balance delta commit together or not at all; the
// cached balance therefore always equals the sum of posted deltas.
type Ledger struct {
	db  *sql.DB
	log *zap.Logger
}

func NewLedger(db *sql.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// SignedDelta is the balance movement a transaction applies to its account.
// Expenses always subtract and income always adds regardless of the sign the
// caller stored; transfers keep their stored sign.
func SignedDelta(txType string, amount decimal.Decimal) decimal.Decimal {
	switch txType {
	case "expense":
		return amount.Abs().Neg()
	case "income":
		return amount.Abs()
	default:
		return amount
	}
}

// PostTransaction inserts t and applies its signed delta to the account
// balance in one SQL transaction. An unknown account aborts with
// ErrAccountNotFound; an unknown category is informational only and logged.
func (l *Ledger) PostTransaction(ctx context.Context, t Transaction) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := database.WithTx(l.db, func(tx *sql.Tx) error {
		return l.post(ctx, tx, t)
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// DeleteTransaction reverses the transaction's delta and removes the row,
// with the same atomicity as posting. Edits are delete + recreate; there is
// no update path that could apply a partial delta.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	return database.WithTx(l.db, func(tx *sql.Tx) error {
		var accountID, txType string
		var amount decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT account_id, tx_type, amount FROM transactions WHERE id = ?`, id).
			Scan(&accountID, &txType, &amount)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		if err != nil {
			return err
		}

		delta := SignedDelta(txType, amount)
		if err := l.applyDelta(ctx, tx, accountID, delta.Neg()); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: delete removed %d rows for %s", ErrIntegrity, n, id)
		}
		return nil
	})
}

// Transaction is the posting input. Fields mirror the stored row; see
// repository.Transaction for semantics.
type Transaction struct {
	ID                string
	OwnerID           string
	AccountID         string
	Amount            decimal.Decimal
	TxType            string
	CategoryID        *string
	Date              string
	Description       string
	IsRecurring       bool
	RecurrencePattern *string
	RecurrenceEndDate *string
	ParentTemplateID  *string
	NextOccurrence    *string
}

// post runs inside an open SQL transaction so sibling services can compose
// it with their own writes.
func (l *Ledger) post(ctx context.Context, tx *sql.Tx, t Transaction) error {
	if t.CategoryID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, *t.CategoryID).Scan(&one)
		if err == sql.ErrNoRows {
			// category is informational; the ledger never fails on it
			l.log.Warn("posting with unknown category",
				zap.String("transaction", t.ID), zap.String("category", *t.CategoryID))
		} else if err != nil {
			return err
		}
	}

	if err := l.applyDelta(ctx, tx, t.AccountID, SignedDelta(t.TxType, t.Amount)); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
	INSERT INTO transactions(
	 id, owner_id, account_id, amount, tx_type, category_id, date, description,
	 is_recurring, recurrence_pattern, recurrence_end_date, parent_template_id,
	 next_occurrence, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		t.ID, t.OwnerID, t.AccountID, t.Amount, t.TxType, t.CategoryID, t.Date,
		t.Description, t.IsRecurring, t.RecurrencePattern, t.RecurrenceEndDate,
		t.ParentTemplateID, t.NextOccurrence)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (l *Ledger) applyDelta(ctx context.Context, tx *sql.Tx, accountID string, delta decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
		balance.Add(delta), accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: balance update touched %d rows for account %s", ErrIntegrity, n, accountID)
	}
	return nil
}
