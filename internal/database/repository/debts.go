package repository

import (
	"context"
	"database/sql"
)

// DebtRepo handles debts and their payment history.
type DebtRepo struct {
	db *sql.DB
}

func NewDebtRepo(db *sql.DB) *DebtRepo { return &DebtRepo{db: db} }

const debtColumns = `id, owner_id, name, initial_amount, current_amount, monthly_payment, currency,
 due_date, payment_account_id, auto_pay, start_payment_next_month, status, created_at`

func (r *DebtRepo) Upsert(ctx context.Context, d Debt) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO debts(id, owner_id, name, initial_amount, current_amount, monthly_payment, currency,
	 due_date, payment_account_id, auto_pay, start_payment_next_month, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 current_amount=excluded.current_amount,
	 monthly_payment=excluded.monthly_payment,
	 currency=excluded.currency,
	 due_date=excluded.due_date,
	 payment_account_id=excluded.payment_account_id,
	 auto_pay=excluded.auto_pay,
	 start_payment_next_month=excluded.start_payment_next_month,
	 status=excluded.status;
	`, d.ID, d.OwnerID, d.Name, d.InitialAmount, d.CurrentAmount, d.MonthlyPayment, d.Currency,
		d.DueDate, d.PaymentAccountID, d.AutoPay, d.StartPaymentNextMonth, d.Status)
	return err
}

func (r *DebtRepo) Get(ctx context.Context, id string) (*Debt, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id)
	d, err := scanDebt(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// ListUnpaid returns debts whose status is not 'paid', the auto-pay
// evaluator's working set.
func (r *DebtRepo) ListUnpaid(ctx context.Context) ([]Debt, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts WHERE status != 'paid' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PaymentExists reports whether a payment is already recorded for
// (debt, calendar month).
func (r *DebtRepo) PaymentExists(ctx context.Context, debtID, month string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM debt_payments WHERE debt_id = ? AND payment_month = ?`,
		debtID, month).Scan(&n)
	return n > 0, err
}

// Payments returns a debt's payment history, oldest first.
func (r *DebtRepo) Payments(ctx context.Context, debtID string) ([]DebtPayment, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, debt_id, amount, payment_date, payment_month, from_account_id, created_at
	FROM debt_payments WHERE debt_id = ? ORDER BY payment_month`, debtID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DebtPayment
	for rows.Next() {
		var p DebtPayment
		var from sql.NullString
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.PaymentDate, &p.PaymentMonth, &from, &p.CreatedAt); err != nil {
			return nil, err
		}
		if from.Valid {
			p.FromAccountID = &from.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDebt(row scanner) (Debt, error) {
	var d Debt
	var due, payAcct sql.NullString
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.InitialAmount, &d.CurrentAmount,
		&d.MonthlyPayment, &d.Currency, &due, &payAcct, &d.AutoPay,
		&d.StartPaymentNextMonth, &d.Status, &d.CreatedAt); err != nil {
		return Debt{}, err
	}
	if due.Valid {
		d.DueDate = &due.String
	}
	if payAcct.Valid {
		d.PaymentAccountID = &payAcct.String
	}
	return d, nil
}
