package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
)

// AutoPay evaluates debts and posts monthly installments without user
// action. The debt_payments (debt, month) row is the idempotency guard; a
// second evaluation in the same month posts nothing.
type AutoPay struct {
	db     *sql.DB
	ledger *Ledger
	debts  *repository.DebtRepo
	log    *zap.Logger

	// Clock is injectable for tests; defaults to database.Now.
	Clock func() time.Time
}

func NewAutoPay(db *sql.DB, ledger *Ledger, debts *repository.DebtRepo, log *zap.Logger) *AutoPay {
	return &AutoPay{db: db, ledger: ledger, debts: debts, log: log, Clock: database.Now}
}

// EvaluateDebtAutoPay walks every unpaid debt and posts at most one
// installment per debt per calendar month. A failure on one debt aborts only
// that debt's posting; the batch continues. Returns the number of payments
// posted.
func (a *AutoPay) EvaluateDebtAutoPay(ctx context.Context) (int, error) {
	debts, err := a.debts.ListUnpaid(ctx)
	if err != nil {
		return 0, fmt.Errorf("list debts: %w", err)
	}

	now := a.Clock()
	posted := 0
	for _, d := range debts {
		if !a.eligible(d, now) {
			continue
		}

		exists, err := a.debts.PaymentExists(ctx, d.ID, database.Month(now))
		if err != nil {
			return posted, err
		}
		if exists {
			continue // already paid this month
		}

		if err := a.postInstallment(ctx, d, now); err != nil {
			// deliberate: no global rollback; other debts still get paid
			a.log.Warn("debt auto-pay failed", zap.String("debt", d.ID), zap.Error(err))
			continue
		}
		posted++
	}
	return posted, nil
}

// eligible applies the auto-pay gate: the flag, a payment account, a
// positive installment, and the due condition.
func (a *AutoPay) eligible(d repository.Debt, now time.Time) bool {
	if !d.AutoPay || d.PaymentAccountID == nil || !d.MonthlyPayment.IsPositive() {
		return false
	}
	if !d.CurrentAmount.IsPositive() {
		return false
	}
	return a.dueConditionMet(d, now)
}

// dueConditionMet decides whether the installment is due. The due month is
// always derived from the stored due date at evaluation time so the two
// "as soon as possible" triggers cannot disagree through staleness.
func (a *AutoPay) dueConditionMet(d repository.Debt, now time.Time) bool {
	if d.DueDate == nil || *d.DueDate == "" {
		return false
	}
	due, err := time.Parse("2006-01-02", *d.DueDate)
	if err != nil {
		a.log.Warn("debt has unparseable due date",
			zap.String("debt", d.ID), zap.String("due_date", *d.DueDate))
		return false
	}

	today := database.Day(now)

	if d.StartPaymentNextMonth {
		// skip the month the debt was created in, then pay from the due date
		if database.Month(d.CreatedAt) == database.Month(now) {
			return false
		}
		return *d.DueDate <= today
	}

	// "as soon as possible": due this month, or due date already passed
	return database.Month(due) == database.Month(now) || *d.DueDate <= today
}

// postInstallment records the payment, decrements the debt, and posts the
// expense through the ledger, all in one SQL transaction.
func (a *AutoPay) postInstallment(ctx context.Context, d repository.Debt, now time.Time) error {
	amount := decimal.Min(d.MonthlyPayment, d.CurrentAmount)
	remaining := d.CurrentAmount.Sub(amount)
	status := d.Status
	if remaining.IsZero() {
		status = "paid"
	}

	return database.WithTx(a.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO debt_payments(id, debt_id, amount, payment_date, payment_month, from_account_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
			uuid.NewString(), d.ID, amount, database.Day(now), database.Month(now), d.PaymentAccountID)
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE debts SET current_amount = ?, status = ? WHERE id = ?`,
			remaining, status, d.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: %s", ErrDebtNotFound, d.ID)
		}

		return a.ledger.post(ctx, tx, Transaction{
			ID:          uuid.NewString(),
			OwnerID:     d.OwnerID,
			AccountID:   *d.PaymentAccountID,
			Amount:      amount,
			TxType:      "expense",
			Date:        database.Day(now),
			Description: fmt.Sprintf("Debt payment: %s", d.Name),
		})
	})
}
