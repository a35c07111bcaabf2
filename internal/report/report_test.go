package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/spendtrack/internal/report"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestService_MonthlyTrend(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := report.NewMockRepository(ctrl)

	end := time.Date(2024, time.March, 17, 15, 4, 0, 0, time.UTC)

	repo.EXPECT().
		MonthlyTotals(gomock.Any(), month(2023, time.April), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)).
		Return([]report.MonthTotal{
			{Month: month(2023, time.June), Credited: 5000, Debited: 1200},
			{Month: month(2024, time.March), Debited: 300},
		}, nil)

	got, err := report.NewService(repo).MonthlyTrend(context.Background(), end, 0)
	require.NoError(t, err)
	require.Len(t, got, report.TrendMonths)

	assert.Equal(t, month(2023, time.April), got[0].Month)
	assert.Equal(t, month(2024, time.March), got[11].Month)

	assert.Equal(t, int64(3800), got[2].Net())
	assert.Equal(t, int64(-300), got[11].Net())

	for i, m := range got {
		if i == 2 || i == 11 {
			continue
		}

		assert.Zero(t, m.Credited, m.Month)
		assert.Zero(t, m.Debited, m.Month)
	}
}

func TestService_MonthlyTrend_YearBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := report.NewMockRepository(ctrl)

	repo.EXPECT().
		MonthlyTotals(gomock.Any(), month(2023, time.November), time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)).
		Return(nil, nil)

	got, err := report.NewService(repo).MonthlyTrend(context.Background(), time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC), 3)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{month(2023, time.November), month(2023, time.December), month(2024, time.January)},
		[]time.Time{got[0].Month, got[1].Month, got[2].Month})
}

func TestService_CategorySpending(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := report.NewMockRepository(ctrl)
	svc := report.NewService(repo)

	from := month(2024, time.February)
	to := month(2024, time.January)

	_, err := svc.CategorySpending(context.Background(), &from, &to)
	assert.True(t, transaction.IsValidation(err))

	want := []report.CategoryTotal{{Name: "Rent", Debited: 90000}, {Name: "Food", Debited: 120}}
	repo.EXPECT().CategorySpending(gomock.Any(), &to, &from).Return(want, nil)

	got, err := svc.CategorySpending(context.Background(), &to, &from)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
