package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
)

// authoritativeMark tags rows earlier cleanup passes decided to keep; a
// marked row always survives its duplicate group.
const authoritativeMark = "(original)"

// Reconciler detects and removes accidental duplicate postings, refunding
// each deleted row's magnitude to its account.
type Reconciler struct {
	db           *sql.DB
	transactions *repository.TransactionRepo
	log          *zap.Logger
}

func NewReconciler(db *sql.DB, transactions *repository.TransactionRepo, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, transactions: transactions, log: log}
}

// ReconcileResult reports what a reconciliation pass removed.
type ReconcileResult struct {
	Deleted  int
	Refunded decimal.Decimal
}

// ReconcileDuplicates groups matching transactions by (account, |amount|,
// date), keeps exactly one row per group, and deletes the rest inside one
// SQL transaction, refunding |amount| to the account for each deletion.
// Any failure rolls the whole pass back.
func (r *Reconciler) ReconcileDuplicates(ctx context.Context, filter repository.TransactionFilters) (ReconcileResult, error) {
	result := ReconcileResult{Refunded: decimal.Zero}

	txs, err := r.transactions.List(ctx, filter)
	if err != nil {
		return result, fmt.Errorf("list transactions: %w", err)
	}

	groups := map[string][]repository.Transaction{}
	for _, t := range txs {
		if t.IsRecurring {
			continue // templates are patterns, not postings
		}
		key := t.AccountID + "|" + t.Amount.Abs().String() + "|" + t.Date
		groups[key] = append(groups[key], t)
	}

	var losers []repository.Transaction
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		keep := chooseKeeper(group)
		for _, t := range group {
			if t.ID != keep.ID {
				losers = append(losers, t)
			}
		}
	}
	if len(losers) == 0 {
		return result, nil
	}

	refunds := map[string]decimal.Decimal{}
	for _, t := range losers {
		refunds[t.AccountID] = refunds[t.AccountID].Add(t.Amount.Abs())
	}

	err = database.WithTx(r.db, func(tx *sql.Tx) error {
		for _, t := range losers {
			res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, t.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n != 1 {
				return fmt.Errorf("%w: duplicate %s vanished mid-pass", ErrIntegrity, t.ID)
			}
		}
		for accountID, refund := range refunds {
			var balance decimal.Decimal
			err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, accountID).Scan(&balance)
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
			}
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE id = ?`,
				balance.Add(refund), accountID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{Refunded: decimal.Zero}, err
	}

	for _, t := range losers {
		result.Refunded = result.Refunded.Add(t.Amount.Abs())
	}
	result.Deleted = len(losers)
	r.log.Info("reconciled duplicates",
		zap.Int("deleted", result.Deleted), zap.String("refunded", result.Refunded.String()))
	return result, nil
}

// chooseKeeper picks the surviving row of a duplicate group: a marked row
// first, else the earliest by creation time; remaining ties go to the row
// closest to the group's longest description, then lowest id so the choice
// is deterministic.
func chooseKeeper(group []repository.Transaction) repository.Transaction {
	for _, t := range group {
		if strings.Contains(t.Description, authoritativeMark) {
			return t
		}
	}

	reference := ""
	for _, t := range group {
		if len(t.Description) > len(reference) {
			reference = t.Description
		}
	}

	sorted := make([]repository.Transaction, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		da := levenshtein.ComputeDistance(a.Description, reference)
		db := levenshtein.ComputeDistance(b.Description, reference)
		if da != db {
			return da < db
		}
		return a.ID < b.ID
	})
	return sorted[0]
}
