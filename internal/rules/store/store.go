package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
)

const foreignKeyViolation = "23503"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, description string) (*rules.Rule, error) {
	query := `
		SELECT r.id, r.pattern, r.category_id, r.created_at, r.updated_at
		FROM category_rules r
		JOIN categories c ON c.id = r.category_id AND c.active
		WHERE POSITION(LOWER(r.pattern) IN LOWER($1)) > 0
		ORDER BY LENGTH(r.pattern) DESC, r.updated_at DESC
		LIMIT 1
	`

	var r rules.Rule

	err := s.db.QueryRowContext(ctx, query, description).Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rules.ErrNoMatch
		}

		return nil, fmt.Errorf("finding match: %w", err)
	}

	return &r, nil
}

func (s *Store) Upsert(ctx context.Context, r *rules.Rule) error {
	query := `
		INSERT INTO category_rules (id, pattern, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (pattern) DO UPDATE SET category_id = EXCLUDED.category_id, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, r.ID, r.Pattern, r.CategoryID).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return rules.ErrUnknownCategory
		}

		return fmt.Errorf("upserting rule: %w", err)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]*rules.Rule, error) {
	query := `
		SELECT id, pattern, category_id, created_at, updated_at
		FROM category_rules
		ORDER BY pattern ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule

	for rows.Next() {
		var r rules.Rule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.CategoryID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}

		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}

	return out, nil
}
