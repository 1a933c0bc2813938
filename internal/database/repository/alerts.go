package repository

import (
	"context"
	"database/sql"
)

// AlertRepo records maintenance notes the host surfaces to the user.
type AlertRepo struct{ db *sql.DB }

func NewAlertRepo(db *sql.DB) *AlertRepo { return &AlertRepo{db: db} }

func (r *AlertRepo) Add(ctx context.Context, a Alert) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO alerts(id, owner_id, kind, message, created_at)
	VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		a.ID, a.OwnerID, a.Kind, a.Message)
	return err
}

func (r *AlertRepo) List(ctx context.Context) ([]Alert, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, kind, message, created_at FROM alerts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Alert
	for rows.Next() {
		var a Alert
		var owner sql.NullString
		if err := rows.Scan(&a.ID, &owner, &a.Kind, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			a.OwnerID = &owner.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
