package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
	"github.com/omarfs/mizania/internal/service"
)

func TestRunStopsOnCancelAndStaysIdempotent(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zaptest.NewLogger(t)
	require.NoError(t, database.NewSchema(db, log).EnsureSchema(ctx))

	require.NoError(t, repository.NewAccountRepo(db).Upsert(ctx, repository.Account{
		ID: "acc-1", OwnerID: "owner-1", Name: "Bank", AccountType: "bank",
		Balance: decimal.RequireFromString("1000"), Currency: "MAD", IsActive: true,
	}))

	ledger := service.NewLedger(db, log)
	txRepo := repository.NewTransactionRepo(db)
	materializer := service.NewMaterializer(db, ledger, txRepo, log)
	autopay := service.NewAutoPay(db, ledger, repository.NewDebtRepo(db), log)

	monthly := "monthly"
	_, err = ledger.PostTransaction(ctx, service.Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: decimal.RequireFromString("50"), TxType: "expense",
		Date: time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02"),
		IsRecurring: true, RecurrencePattern: &monthly,
	})
	require.NoError(t, err)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(materializer, autopay, 10*time.Millisecond, log).Run(runCtx)
	}()

	// let several ticks fire; the occurrence key keeps the count stable
	time.Sleep(120 * time.Millisecond)
	stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE parent_template_id IS NOT NULL`).Scan(&n))
	require.LessOrEqual(t, n, 1, "repeated ticks must not re-materialize")
}
