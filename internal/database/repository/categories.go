package repository

import (
	"context"
	"database/sql"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(id, name, category_type, color, icon, parent_id, level, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
	 name=excluded.name,
	 category_type=excluded.category_type,
	 color=excluded.color,
	 icon=excluded.icon,
	 parent_id=excluded.parent_id,
	 level=excluded.level,
	 sort_order=excluded.sort_order;
	`, c.ID, c.Name, c.CategoryType, c.Color, c.Icon, c.ParentID, c.Level, c.SortOrder)
	return err
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, category_type, color, icon, parent_id, level, sort_order FROM categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CategoryType, &c.Color, &c.Icon, &c.ParentID, &c.Level, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
