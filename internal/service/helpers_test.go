package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
)

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestDB(t *testing.T) (*sql.DB, *zap.Logger) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zaptest.NewLogger(t)
	require.NoError(t, database.NewSchema(db, log).EnsureSchema(testCtx(t)))
	return db, log
}

func seedAccount(t *testing.T, db *sql.DB, id string, balance string) {
	t.Helper()
	repo := repository.NewAccountRepo(db)
	require.NoError(t, repo.Upsert(testCtx(t), repository.Account{
		ID:          id,
		OwnerID:     "owner-1",
		Name:        "Account " + id,
		AccountType: "bank",
		Balance:     decimal.RequireFromString(balance),
		Currency:    "MAD",
		IsActive:    true,
	}))
}

func accountBalance(t *testing.T, db *sql.DB, id string) decimal.Decimal {
	t.Helper()
	var balance decimal.Decimal
	require.NoError(t, db.QueryRowContext(testCtx(t),
		`SELECT balance FROM accounts WHERE id = ?`, id).Scan(&balance))
	return balance
}

func countTransactions(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(testCtx(t),
		`SELECT COUNT(*) FROM transactions`).Scan(&n))
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
