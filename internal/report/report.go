// Package report aggregates active transactions for charts.
package report

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// TrendMonths is the default length of the monthly trend window.
const TrendMonths = 12

type CategoryTotal struct {
	CategoryID uuid.UUID
	Name       string
	Color      string
	Debited    int64
}

type MonthTotal struct {
	Month    time.Time // First day of the month, UTC
	Credited int64
	Debited  int64
}

// Net is the month's credited minus debited.
func (m MonthTotal) Net() int64 {
	return m.Credited - m.Debited
}

//go:generate mockgen -source=report.go -destination=repository_mock.go -package=report
type Repository interface {
	CategorySpending(ctx context.Context, from, to *time.Time) ([]CategoryTotal, error)
	MonthlyTotals(ctx context.Context, from, to time.Time) ([]MonthTotal, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CategorySpending returns debit totals per active category, largest first.
// Categories with nothing spent in the range are omitted.
func (s *Service) CategorySpending(ctx context.Context, from, to *time.Time) ([]CategoryTotal, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, &transaction.ValidationError{Field: "from_date", Reason: "must not be after to_date"}
	}

	return s.repo.CategorySpending(ctx, from, to)
}

// MonthlyTrend returns one entry per month for the months ending with the
// month of end, oldest first. Months without transactions are zero.
func (s *Service) MonthlyTrend(ctx context.Context, end time.Time, months int) ([]MonthTotal, error) {
	if months <= 0 {
		months = TrendMonths
	}

	last := monthOf(end)
	first := last.AddDate(0, -(months - 1), 0)

	totals, err := s.repo.MonthlyTotals(ctx, first, last.AddDate(0, 1, -1))
	if err != nil {
		return nil, err
	}

	byMonth := make(map[time.Time]MonthTotal, len(totals))
	for _, t := range totals {
		byMonth[monthOf(t.Month)] = t
	}

	out := make([]MonthTotal, months)
	for i := range out {
		m := first.AddDate(0, i, 0)

		total := byMonth[m]
		total.Month = m
		out[i] = total
	}

	return out, nil
}

func monthOf(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
