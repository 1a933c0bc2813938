package service

import "errors"

var (
	// ErrAccountNotFound aborts any posting against an unknown account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when deleting an unknown transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDebtNotFound is returned for operations on an unknown debt id.
	ErrDebtNotFound = errors.New("debt not found")

	// ErrIntegrity marks a post or delete that would leave a dangling balance
	// delta. It always aborts the enclosing SQL transaction.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrInvalidCurrency rejects a canonical code outside the ISO-4217 table.
	ErrInvalidCurrency = errors.New("invalid currency code")
)
