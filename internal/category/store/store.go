package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectCategoryColumns = `id, name, color, active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(s scanner) (*category.Category, error) {
	var c category.Category
	if err := s.Scan(&c.ID, &c.Name, &c.Color, &c.Active, &c.CreatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

func (s *Store) ListActive(ctx context.Context) ([]*category.Category, error) {
	query := `SELECT ` + selectCategoryColumns + ` FROM categories WHERE active ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []*category.Category

	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}

		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}

	return categories, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*category.Category, error) {
	query := `SELECT ` + selectCategoryColumns + ` FROM categories WHERE id = $1`

	c, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, category.ErrNotFound
		}

		return nil, fmt.Errorf("getting category: %w", err)
	}

	return c, nil
}

func (s *Store) FindByName(ctx context.Context, name string) (*category.Category, error) {
	query := `SELECT ` + selectCategoryColumns + ` FROM categories WHERE active AND LOWER(name) = LOWER($1)`

	c, err := scanCategory(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, category.ErrNotFound
		}

		return nil, fmt.Errorf("finding category: %w", err)
	}

	return c, nil
}

func (s *Store) Create(ctx context.Context, c *category.Category) error {
	query := `
		INSERT INTO categories (id, name, color, active, created_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		RETURNING created_at
	`

	if err := s.db.QueryRowContext(ctx, query, c.ID, c.Name, c.Color).Scan(&c.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return category.ErrDuplicate
		}

		return fmt.Errorf("creating category: %w", err)
	}

	c.Active = true

	return nil
}

func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET active = FALSE WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("deactivating category: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return category.ErrNotFound
	}

	return nil
}
