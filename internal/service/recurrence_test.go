package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omarfs/mizania/internal/database/repository"
)

func TestNextOccurrenceDate(t *testing.T) {
	t.Parallel()

	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}

	cases := []struct {
		name    string
		base    string
		pattern string
		want    string
	}{
		{"monthly preserves day of month", "2025-11-02", "monthly", "2025-12-02"},
		{"monthly across year end", "2025-12-15", "monthly", "2026-01-15"},
		{"daily", "2025-11-02", "daily", "2025-11-03"},
		{"weekly", "2025-11-02", "weekly", "2025-11-09"},
		{"yearly", "2025-11-02", "yearly", "2026-11-02"},
		// no end-of-month clamping: Jan 31 + 1 month normalizes forward
		{"monthly overflow normalizes", "2025-01-31", "monthly", "2025-03-03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextOccurrenceDate(day(tc.base), tc.pattern)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Format("2006-01-02"))
		})
	}

	_, err := NextOccurrenceDate(day("2025-11-02"), "fortnightly")
	require.Error(t, err)
}

func TestProcessRecurringTransactionsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db, log := newTestDB(t)
	seedAccount(t, db, "acc-1", "1000")

	ledger := NewLedger(db, log)
	txRepo := repository.NewTransactionRepo(db)
	m := NewMaterializer(db, ledger, txRepo, log)
	m.Clock = func() time.Time {
		return time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC)
	}

	pattern := "monthly"
	templateID, err := ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("80"), TxType: "expense",
		Date: "2025-10-02", Description: "internet",
		IsRecurring: true, RecurrencePattern: &pattern,
	})
	require.NoError(t, err)
	require.Equal(t, 1, countTransactions(t, db)) // just the template

	created, err := m.ProcessRecurringTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Equal(t, 2, countTransactions(t, db))

	// occurrence carries the template key and its own due date
	occ, err := txRepo.List(ctx, repository.TransactionFilters{DateFrom: "2025-11-01"})
	require.NoError(t, err)
	require.Len(t, occ, 1)
	require.Equal(t, "2025-11-02", occ[0].Date)
	require.NotNil(t, occ[0].ParentTemplateID)
	require.Equal(t, templateID, *occ[0].ParentTemplateID)

	// template + occurrence both moved the balance
	require.True(t, accountBalance(t, db, "acc-1").Equal(dec("840")))

	// same simulated day, same data: nothing new
	created, err = m.ProcessRecurringTransactions(ctx)
	require.NoError(t, err)
	require.Zero(t, created)
	require.Equal(t, 2, countTransactions(t, db))
	require.True(t, accountBalance(t, db, "acc-1").Equal(dec("840")))

	// cached next-occurrence advanced exactly one period
	tpl, err := txRepo.Get(ctx, templateID)
	require.NoError(t, err)
	require.NotNil(t, tpl.NextOccurrence)
	require.Equal(t, "2025-12-02", *tpl.NextOccurrence)
}

func TestProcessRecurringSkipsFutureAndEnded(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db, log := newTestDB(t)
	seedAccount(t, db, "acc-1", "1000")

	ledger := NewLedger(db, log)
	txRepo := repository.NewTransactionRepo(db)
	m := NewMaterializer(db, ledger, txRepo, log)
	m.Clock = func() time.Time {
		return time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC)
	}

	weekly := "weekly"
	// not due yet: next occurrence lands after the clock
	_, err := ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("10"), TxType: "expense",
		Date: "2025-11-03", Description: "future",
		IsRecurring: true, RecurrencePattern: &weekly,
	})
	require.NoError(t, err)

	// ended before today: template is no longer active
	ended := "2025-10-01"
	_, err = ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("10"), TxType: "expense",
		Date: "2025-09-01", Description: "ended",
		IsRecurring: true, RecurrencePattern: &weekly, RecurrenceEndDate: &ended,
	})
	require.NoError(t, err)

	created, err := m.ProcessRecurringTransactions(ctx)
	require.NoError(t, err)
	require.Zero(t, created)
}

func TestProcessRecurringRepairsStaleCache(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db, log := newTestDB(t)
	seedAccount(t, db, "acc-1", "1000")

	ledger := NewLedger(db, log)
	txRepo := repository.NewTransactionRepo(db)
	m := NewMaterializer(db, ledger, txRepo, log)
	m.Clock = func() time.Time {
		return time.Date(2025, 11, 5, 10, 0, 0, 0, time.UTC)
	}

	pattern := "monthly"
	templateID, err := ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("80"), TxType: "expense",
		Date: "2025-10-02", Description: "internet",
		IsRecurring: true, RecurrencePattern: &pattern,
	})
	require.NoError(t, err)

	// occurrence already exists but the cached date was never advanced
	tid := templateID
	_, err = ledger.PostTransaction(ctx, Transaction{
		OwnerID: "owner-1", AccountID: "acc-1",
		Amount: dec("80"), TxType: "expense",
		Date: "2025-11-02", Description: "internet",
		ParentTemplateID: &tid,
	})
	require.NoError(t, err)

	created, err := m.ProcessRecurringTransactions(ctx)
	require.NoError(t, err)
	require.Zero(t, created, "existing occurrence key must block re-materialization")

	tpl, err := txRepo.Get(ctx, templateID)
	require.NoError(t, err)
	require.NotNil(t, tpl.NextOccurrence)
	require.Equal(t, "2025-12-02", *tpl.NextOccurrence)
}
