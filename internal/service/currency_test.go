package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/omarfs/mizania/internal/prefs"
)

func TestCurrencyMigrationNormalizesAllTables(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db, log := newTestDB(t)
	store := prefs.NewStore(t.TempDir())

	exec := func(q string, args ...interface{}) {
		t.Helper()
		_, err := db.ExecContext(ctx, q, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO accounts(id, owner_id, name, account_type, currency) VALUES
		('a1', 'owner-1', 'Cash', 'cash', 'MAD'),
		('a2', 'owner-1', 'Bank', 'bank', 'EUR'),
		('a3', 'owner-1', 'Card', 'card', 'USD')`)
	exec(`INSERT INTO debts(id, owner_id, name, currency) VALUES ('d1', 'owner-1', 'Loan', 'EUR')`)
	exec(`INSERT INTO budgets(id, owner_id, amount, currency) VALUES ('b1', 'owner-1', '100', 'USD')`)
	exec(`INSERT INTO savings_goals(id, owner_id, name, currency) VALUES ('s1', 'owner-1', 'Trip', 'EUR')`)

	c := NewCurrencyMigrator(db, store, "MAD", log)

	counts, err := c.CheckCurrencyConsistency(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 2, counts["accounts"])
	require.Equal(t, 1, counts["debts"])
	require.Equal(t, 1, counts["budgets"])
	require.Equal(t, 1, counts["savings_goals"])
	// transactions has no currency column; tolerated, not reported
	require.NotContains(t, counts, "transactions")

	changed, err := c.MigrateAllToCanonical(ctx, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 5, changed)

	counts, err = c.CheckCurrencyConsistency(ctx, "owner-1")
	require.NoError(t, err)
	for table, n := range counts {
		require.Zero(t, n, "table %s still inconsistent", table)
	}

	// re-entrant: a second run is a no-op
	changed, err = c.MigrateAllToCanonical(ctx, "owner-1")
	require.NoError(t, err)
	require.Zero(t, changed)

	code, err := store.CanonicalCurrency()
	require.NoError(t, err)
	require.Equal(t, "MAD", code)
}

func TestCurrencyMigrationRejectsUnknownCode(t *testing.T) {
	t.Parallel()
	ctx := testCtx(t)
	db, _ := newTestDB(t)
	store := prefs.NewStore(t.TempDir())

	c := NewCurrencyMigrator(db, store, "DRACHMA", zaptest.NewLogger(t))
	_, err := c.MigrateAllToCanonical(ctx, "")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}
