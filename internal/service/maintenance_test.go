package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
	"github.com/omarfs/mizania/internal/prefs"
)

func TestStartupMaintenanceIsRepeatable(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)

	// fresh file, no schema: the pass must boot it end to end
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zaptest.NewLogger(t)
	store := prefs.NewStore(t.TempDir())
	schema := database.NewSchema(db, log)
	txRepo := repository.NewTransactionRepo(db)
	debtRepo := repository.NewDebtRepo(db)
	alertRepo := repository.NewAlertRepo(db)

	ledger := NewLedger(db, log)
	materializer := NewMaterializer(db, ledger, txRepo, log)
	autopay := NewAutoPay(db, ledger, debtRepo, log)
	reconciler := NewReconciler(db, txRepo, log)
	currency := NewCurrencyMigrator(db, store, "MAD", log)

	m := NewMaintenance(db, schema, materializer, autopay, reconciler, currency, alertRepo, store, log)
	require.NoError(t, m.Run(ctx))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n))
	require.Equal(t, database.TaxonomySize(), n)

	// seed work for the second run: one due template, one due debt
	seedAccount(t, db, "acc-1", "5000")
	now := time.Now().UTC()
	monthly := "monthly"
	_, err = ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("90"), TxType: "expense",
		Date: now.AddDate(0, -1, 0).Format("2006-01-02"), Description: "rent share",
		IsRecurring: true, RecurrencePattern: &monthly,
	})
	require.NoError(t, err)
	require.NoError(t, debtRepo.Upsert(ctx, repository.Debt{
		ID: "debt-1", OwnerID: "owner-1", Name: "Loan",
		InitialAmount: dec("1000"), CurrentAmount: dec("1000"), MonthlyPayment: dec("250"),
		Currency: "MAD", DueDate: strp(now.AddDate(0, 0, -1).Format("2006-01-02")),
		PaymentAccountID: strp("acc-1"), AutoPay: true, Status: "active",
	}))
	_, err = db.ExecContext(ctx, `UPDATE debts SET created_at = ? WHERE id = 'debt-1'`,
		now.AddDate(0, -2, 0).Format("2006-01-02 15:04:05"))
	require.NoError(t, err)

	require.NoError(t, m.Run(ctx))
	afterSecond := countTransactions(t, db)

	// a third run in the same state must change nothing: the occurrence key
	// and the monthly payment guard both hold
	require.NoError(t, m.Run(ctx))
	require.Equal(t, afterSecond, countTransactions(t, db))

	payments, err := debtRepo.Payments(ctx, "debt-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)

	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n))
	require.Equal(t, database.TaxonomySize(), n, "repeat runs must not reseed categories")
}
