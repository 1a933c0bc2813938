package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
	"github.com/omarfs/mizania/internal/prefs"
)

// featureAutoMigrateCurrency gates the destructive currency rewrite behind
// an explicit opt-in; the consistency check itself always runs.
const featureAutoMigrateCurrency = "auto_migrate_currency"

// Maintenance runs the engine's passes sequentially, once, at process
// start. Every pass after schema creation is failure-isolated: an error is
// logged, recorded as an alert, and the next pass still runs. Only an
// uncreatable schema aborts, since nothing can work without tables.
type Maintenance struct {
	db           *sql.DB
	schema       *database.Schema
	materializer *Materializer
	autopay      *AutoPay
	reconciler   *Reconciler
	currency     *CurrencyMigrator
	alerts       *repository.AlertRepo
	prefs        *prefs.Store
	log          *zap.Logger
}

func NewMaintenance(
	db *sql.DB,
	schema *database.Schema,
	materializer *Materializer,
	autopay *AutoPay,
	reconciler *Reconciler,
	currency *CurrencyMigrator,
	alerts *repository.AlertRepo,
	store *prefs.Store,
	log *zap.Logger,
) *Maintenance {
	return &Maintenance{
		db:           db,
		schema:       schema,
		materializer: materializer,
		autopay:      autopay,
		reconciler:   reconciler,
		currency:     currency,
		alerts:       alerts,
		prefs:        store,
		log:          log,
	}
}

// Run executes the startup sequence: migrations, schema, repair, category
// seed, recurrence, auto-pay, duplicate reconciliation, currency check.
func (m *Maintenance) Run(ctx context.Context) error {
	if err := database.RunMigrationsWithDB(m.db); err != nil {
		// the idempotent create below still boots a usable store
		m.degraded(ctx, "migrations", err)
	}

	if err := m.schema.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	m.schema.RepairAll(ctx)

	if err := database.InitializeDefaultCategories(ctx, m.db, false); err != nil {
		m.degraded(ctx, "categories", err)
	}

	if n, err := m.materializer.ProcessRecurringTransactions(ctx); err != nil {
		m.degraded(ctx, "recurrence", err)
	} else if n > 0 {
		m.log.Info("recurrence pass complete", zap.Int("created", n))
	}

	if n, err := m.autopay.EvaluateDebtAutoPay(ctx); err != nil {
		m.degraded(ctx, "auto-pay", err)
	} else if n > 0 {
		m.log.Info("auto-pay pass complete", zap.Int("posted", n))
	}

	if res, err := m.reconciler.ReconcileDuplicates(ctx, repository.TransactionFilters{}); err != nil {
		m.degraded(ctx, "reconciliation", err)
	} else if res.Deleted > 0 {
		m.log.Info("reconciliation pass complete",
			zap.Int("deleted", res.Deleted), zap.String("refunded", res.Refunded.String()))
	}

	m.currencyPass(ctx)
	return nil
}

func (m *Maintenance) currencyPass(ctx context.Context) {
	counts, err := m.currency.CheckCurrencyConsistency(ctx, "")
	if err != nil {
		m.degraded(ctx, "currency check", err)
		return
	}
	drift := 0
	for _, n := range counts {
		drift += n
	}
	if drift == 0 {
		return
	}
	m.log.Warn("currency drift detected", zap.Int("rows", drift))

	flags, err := m.prefs.FeatureFlags()
	if err != nil {
		m.degraded(ctx, "currency flags", err)
		return
	}
	if !flags[featureAutoMigrateCurrency] {
		return
	}
	if _, err := m.currency.MigrateAllToCanonical(ctx, ""); err != nil {
		m.degraded(ctx, "currency migration", err)
	}
}

// degraded records a failed pass and keeps going.
func (m *Maintenance) degraded(ctx context.Context, pass string, err error) {
	m.log.Error("maintenance pass failed", zap.String("pass", pass), zap.Error(err))
	alertErr := m.alerts.Add(ctx, repository.Alert{
		ID:      uuid.NewString(),
		Kind:    "maintenance",
		Message: fmt.Sprintf("%s pass failed: %v", pass, err),
	})
	if alertErr != nil {
		m.log.Warn("could not record maintenance alert", zap.Error(alertErr))
	}
}
