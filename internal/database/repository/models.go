package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents an account row. Balance is the cached authoritative
// value; it moves only through the ledger's atomic post contract.
type Account struct {
	ID          string
	OwnerID     string
	Name        string
	AccountType string // cash, bank, card, savings
	Balance     decimal.Decimal
	Currency    string
	IsActive    bool
	CreatedAt   time.Time
}

// Category represents a category row in the two-level taxonomy.
type Category struct {
	ID           string
	Name         string
	CategoryType string
	Color        *string
	Icon         *string
	ParentID     *string
	Level        int
	SortOrder    int
}

// Transaction represents a transaction row. A row with IsRecurring set is a
// template; occurrences materialized from it carry ParentTemplateID.
type Transaction struct {
	ID                string
	OwnerID           string
	AccountID         string
	Amount            decimal.Decimal // signed
	TxType            string          // income, expense, transfer
	CategoryID        *string
	Date              string // YYYY-MM-DD
	Description       string
	IsRecurring       bool
	RecurrencePattern *string // daily, weekly, monthly, yearly
	RecurrenceEndDate *string
	ParentTemplateID  *string
	NextOccurrence    *string
	CreatedAt         time.Time
}

// Debt represents a debt row.
type Debt struct {
	ID                    string
	OwnerID               string
	Name                  string
	InitialAmount         decimal.Decimal
	CurrentAmount         decimal.Decimal
	MonthlyPayment        decimal.Decimal
	Currency              string
	DueDate               *string // YYYY-MM-DD
	PaymentAccountID      *string
	AutoPay               bool
	StartPaymentNextMonth bool
	Status                string // active, paid, overdue
	CreatedAt             time.Time
}

// DebtPayment represents one accepted installment. One row per debt per
// calendar month; the UNIQUE(debt_id, payment_month) constraint is the
// auto-pay idempotency guard.
type DebtPayment struct {
	ID            string
	DebtID        string
	Amount        decimal.Decimal
	PaymentDate   string // YYYY-MM-DD
	PaymentMonth  string // YYYY-MM
	FromAccountID *string
	CreatedAt     time.Time
}

// Alert represents a maintenance note surfaced to the host application.
type Alert struct {
	ID        string
	OwnerID   *string
	Kind      string
	Message   string
	CreatedAt time.Time
}
