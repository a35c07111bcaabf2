package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/report"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CategorySpending(ctx context.Context, from, to *time.Time) ([]report.CategoryTotal, error) {
	query := `
		SELECT c.id, c.name, c.color, COALESCE(SUM(t.debited), 0) AS total
		FROM categories c
		JOIN transactions t ON t.category_id = c.id AND t.status = 'active'
		WHERE c.active`

	var args []any

	argIdx := 1

	if from != nil {
		query += fmt.Sprintf(" AND t.transaction_date >= $%d", argIdx)

		args = append(args, transaction.DateOf(*from))
		argIdx++
	}

	if to != nil {
		query += fmt.Sprintf(" AND t.transaction_date <= $%d", argIdx)

		args = append(args, transaction.DateOf(*to))
	}

	query += `
		GROUP BY c.id, c.name, c.color
		HAVING SUM(t.debited) > 0
		ORDER BY total DESC, c.name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summing category spending: %w", err)
	}
	defer rows.Close()

	var out []report.CategoryTotal

	for rows.Next() {
		var ct report.CategoryTotal
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Color, &ct.Debited); err != nil {
			return nil, fmt.Errorf("scanning category total: %w", err)
		}

		out = append(out, ct)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category totals: %w", err)
	}

	return out, nil
}

func (s *Store) MonthlyTotals(ctx context.Context, from, to time.Time) ([]report.MonthTotal, error) {
	query := `
		SELECT date_trunc('month', transaction_date)::date AS month,
			COALESCE(SUM(credited), 0), COALESCE(SUM(debited), 0)
		FROM transactions
		WHERE status = 'active' AND transaction_date >= $1 AND transaction_date <= $2
		GROUP BY month
		ORDER BY month ASC
	`

	rows, err := s.db.QueryContext(ctx, query, transaction.DateOf(from), transaction.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("summing monthly totals: %w", err)
	}
	defer rows.Close()

	var out []report.MonthTotal

	for rows.Next() {
		var mt report.MonthTotal
		if err := rows.Scan(&mt.Month, &mt.Credited, &mt.Debited); err != nil {
			return nil, fmt.Errorf("scanning month total: %w", err)
		}

		out = append(out, mt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating month totals: %w", err)
	}

	return out, nil
}
