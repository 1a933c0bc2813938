package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
)

// Materializer turns recurring template transactions into dated occurrence
// transactions. Idempotency comes from the (template id, date) occurrence
// key, not from how often the pass runs.
type Materializer struct {
	db           *sql.DB
	ledger       *Ledger
	transactions *repository.TransactionRepo
	log          *zap.Logger

	// Clock is injectable for tests; defaults to database.Now.
	Clock func() time.Time
}

func NewMaterializer(db *sql.DB, ledger *Ledger, transactions *repository.TransactionRepo, log *zap.Logger) *Materializer {
	return &Materializer{db: db, ledger: ledger, transactions: transactions, log: log, Clock: database.Now}
}

// NextOccurrenceDate adds exactly one recurrence period to base. Calendar
// addition preserves the day of month and does not clamp at month end, so
// Jan 31 + one month normalizes forward the way time.AddDate does.
func NextOccurrenceDate(base time.Time, pattern string) (time.Time, error) {
	switch pattern {
	case "daily":
		return base.AddDate(0, 0, 1), nil
	case "weekly":
		return base.AddDate(0, 0, 7), nil
	case "monthly":
		return base.AddDate(0, 1, 0), nil
	case "yearly":
		return base.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence pattern %q", pattern)
	}
}

// ProcessRecurringTransactions materializes, for each active template whose
// next date is due, exactly one occurrence through the ledger and advances
// the cached next-occurrence date. Only the single currently-due date is
// created; missed periods are not backfilled. Returns the number of
// occurrences created.
func (m *Materializer) ProcessRecurringTransactions(ctx context.Context) (int, error) {
	today := database.Day(m.Clock())

	templates, err := m.transactions.ListTemplates(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}

	created := 0
	for _, tpl := range templates {
		due, err := m.dueDate(tpl)
		if err != nil {
			m.log.Warn("skipping template", zap.String("template", tpl.ID), zap.Error(err))
			continue
		}
		if due > today {
			continue
		}

		exists, err := m.transactions.OccurrenceExists(ctx, tpl.ID, due)
		if err != nil {
			return created, err
		}
		if exists {
			// already materialized; repair the cached date and move on
			if err := m.advance(ctx, tpl, due); err != nil {
				return created, err
			}
			continue
		}

		occurrence := Transaction{
			ID:               uuid.NewString(),
			OwnerID:          tpl.OwnerID,
			AccountID:        tpl.AccountID,
			Amount:           tpl.Amount,
			TxType:           tpl.TxType,
			CategoryID:       tpl.CategoryID,
			Date:             due,
			Description:      tpl.Description,
			ParentTemplateID: &tpl.ID,
		}

		next, err := NextOccurrenceDate(mustParseDay(due), *tpl.RecurrencePattern)
		if err != nil {
			return created, err
		}

		// occurrence post and cache advance commit together
		err = database.WithTx(m.db, func(tx *sql.Tx) error {
			if err := m.ledger.post(ctx, tx, occurrence); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`UPDATE transactions SET next_occurrence = ? WHERE id = ?`,
				database.Day(next), tpl.ID)
			return err
		})
		if err != nil {
			return created, fmt.Errorf("materialize template %s: %w", tpl.ID, err)
		}

		created++
		m.log.Info("materialized occurrence",
			zap.String("template", tpl.ID), zap.String("date", due))
	}
	return created, nil
}

// dueDate returns the template's next occurrence: the cached date when
// present, otherwise one period past the template's own date.
func (m *Materializer) dueDate(tpl repository.Transaction) (string, error) {
	if tpl.RecurrencePattern == nil {
		return "", fmt.Errorf("template %s has no recurrence pattern", tpl.ID)
	}
	if tpl.NextOccurrence != nil && *tpl.NextOccurrence != "" {
		return *tpl.NextOccurrence, nil
	}
	base, err := time.Parse("2006-01-02", tpl.Date)
	if err != nil {
		return "", fmt.Errorf("template %s has bad date %q", tpl.ID, tpl.Date)
	}
	next, err := NextOccurrenceDate(base, *tpl.RecurrencePattern)
	if err != nil {
		return "", err
	}
	return database.Day(next), nil
}

func (m *Materializer) advance(ctx context.Context, tpl repository.Transaction, due string) error {
	next, err := NextOccurrenceDate(mustParseDay(due), *tpl.RecurrencePattern)
	if err != nil {
		return err
	}
	return m.transactions.SetNextOccurrence(ctx, tpl.ID, database.Day(next))
}

func mustParseDay(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}
