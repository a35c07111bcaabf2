//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	categoryStore "github.com/MrJamesThe3rd/spendtrack/internal/category/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/database/dbtest"
	"github.com/MrJamesThe3rd/spendtrack/internal/report"
	"github.com/MrJamesThe3rd/spendtrack/internal/report/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	txStore "github.com/MrJamesThe3rd/spendtrack/internal/transaction/store"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIntegration_Reports(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	categories := category.NewService(categoryStore.New(db))
	ledger := transaction.NewService(txStore.New(db))
	svc := report.NewService(store.New(db))

	food, err := categories.Create(ctx, category.CreateParams{Name: "Food", Color: "#ff0000"})
	require.NoError(t, err)
	bills, err := categories.Create(ctx, category.CreateParams{Name: "Bills", Color: "#0000ff"})
	require.NoError(t, err)

	_, err = ledger.CreateBatch(ctx, []transaction.CreateParams{
		{Date: date(2026, 1, 5), CategoryID: &food.ID, Description: "Market", Debited: 3000},
		{Date: date(2026, 1, 20), CategoryID: &bills.ID, Description: "Power", Debited: 9000},
		{Date: date(2026, 2, 2), CategoryID: &food.ID, Description: "Bakery", Debited: 500},
		{Date: date(2026, 2, 28), CategoryID: &bills.ID, Description: "Salary", Credited: 200000},
	})
	require.NoError(t, err)

	deleted, err := ledger.Create(ctx, transaction.CreateParams{
		Date: date(2026, 2, 10), CategoryID: &bills.ID, Description: "Wrong", Debited: 100000,
	})
	require.NoError(t, err)
	require.NoError(t, ledger.SoftDelete(ctx, deleted.ID))

	spending, err := svc.CategorySpending(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, spending, 2)
	assert.Equal(t, "Bills", spending[0].Name)
	assert.Equal(t, int64(9000), spending[0].Debited)
	assert.Equal(t, "Food", spending[1].Name)
	assert.Equal(t, int64(3500), spending[1].Debited)

	from, to := date(2026, 2, 1), date(2026, 2, 28)
	spending, err = svc.CategorySpending(ctx, &from, &to)
	require.NoError(t, err)
	require.Len(t, spending, 1)
	assert.Equal(t, food.ID, spending[0].CategoryID)
	assert.Equal(t, int64(500), spending[0].Debited)

	trend, err := svc.MonthlyTrend(ctx, date(2026, 3, 15), 3)
	require.NoError(t, err)
	require.Len(t, trend, 3)

	assert.True(t, trend[0].Month.Equal(date(2026, 1, 1)))
	assert.Equal(t, int64(12000), trend[0].Debited)
	assert.Equal(t, int64(200000), trend[1].Credited)
	assert.Equal(t, int64(500), trend[1].Debited)
	assert.Equal(t, int64(199500), trend[1].Net())
	assert.Zero(t, trend[2].Credited)
	assert.Zero(t, trend[2].Debited)
}
