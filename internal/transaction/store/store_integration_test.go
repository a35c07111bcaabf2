//go:build integration

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	categoryStore "github.com/MrJamesThe3rd/spendtrack/internal/category/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/database/dbtest"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction/store"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
}

func balances(t *testing.T, svc *transaction.Service) []int64 {
	t.Helper()

	page, err := svc.List(context.Background(), transaction.ListFilter{Limit: transaction.MaxLimit})
	require.NoError(t, err)

	// List is newest first; the ledger reads oldest first.
	out := make([]int64, len(page.Transactions))
	for i, tx := range page.Transactions {
		out[len(out)-1-i] = tx.Balance
	}

	return out
}

func TestIntegration_LedgerLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	ctx := audit.WithActor(context.Background(), "integration")

	cat, err := category.NewService(categoryStore.New(db)).Create(ctx, category.CreateParams{Name: "Groceries", Color: "#00ff00"})
	require.NoError(t, err)

	svc := transaction.NewService(store.New(db))

	salary, err := svc.Create(ctx, transaction.CreateParams{
		Date: day(1), CategoryID: &cat.ID, Description: "Salary", Credited: 150000,
		Tags: []string{"income", "monthly"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), salary.Balance)
	assert.Equal(t, []string{"income", "monthly"}, salary.Tags)
	require.NotNil(t, salary.Category)
	assert.Equal(t, "Groceries", salary.Category.Name)

	bills, err := category.NewService(categoryStore.New(db)).Create(ctx, category.CreateParams{Name: "Bills"})
	require.NoError(t, err)

	market, err := svc.Create(ctx, transaction.CreateParams{
		Date: day(5), CategoryID: &bills.ID, Description: "Market", Debited: 4210, Notes: "weekly shop",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(145790), market.Balance)

	// Backdated entry shifts every later balance.
	rent, err := svc.Create(ctx, transaction.CreateParams{Date: day(3), CategoryID: &bills.ID, Description: "Rent", Debited: 80000})
	require.NoError(t, err)
	assert.Equal(t, int64(70000), rent.Balance)
	assert.Equal(t, []int64{150000, 70000, 65790}, balances(t, svc))

	newAmount := int64(90000)
	rent, err = svc.Update(ctx, rent.ID, transaction.Patch{Debited: &newAmount})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), rent.Balance)
	assert.Equal(t, []int64{150000, 60000, 55790}, balances(t, svc))

	require.NoError(t, svc.SoftDelete(ctx, rent.ID))
	assert.Equal(t, []int64{150000, 145790}, balances(t, svc))

	_, err = svc.Get(ctx, rent.ID)
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	err = svc.SoftDelete(ctx, rent.ID)
	assert.ErrorIs(t, err, transaction.ErrNotFound)

	history, err := svc.History(ctx, rent.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, audit.ActionInsert, history[0].Action)
	assert.Equal(t, audit.ActionUpdate, history[1].Action)
	assert.Equal(t, audit.ActionDelete, history[2].Action)
	assert.Equal(t, "integration", history[1].Actor)
	assert.Contains(t, audit.Diff(history[1].Before, history[1].After), "debited")
	assert.Equal(t, "800.00", history[1].Before.Fields["debited"])
	assert.Equal(t, "900.00", history[1].After.Fields["debited"])

	summary, err := svc.Summary(ctx, transaction.SummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, transaction.Summary{TotalCredited: 150000, TotalDebited: 4210, NetBalance: 145790, Count: 2}, summary)

	filtered, err := svc.List(ctx, transaction.ListFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.Len(t, filtered.Transactions, 1)
	assert.Equal(t, salary.ID, filtered.Transactions[0].ID)

	from, to := day(4), day(31)
	ranged, err := svc.List(ctx, transaction.ListFilter{FromDate: &from, ToDate: &to})
	require.NoError(t, err)
	require.Len(t, ranged.Transactions, 1)
	assert.Equal(t, "weekly shop", ranged.Transactions[0].Notes)
}

func seedCategory(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()

	c, err := category.NewService(categoryStore.New(db)).Create(context.Background(), category.CreateParams{Name: "General"})
	require.NoError(t, err)

	return c.ID
}

func TestIntegration_UnknownCategoryRollsBackBatch(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	svc := transaction.NewService(store.New(db))

	known := seedCategory(t, db)
	unknown := uuid.New()

	_, err := svc.CreateBatch(ctx, []transaction.CreateParams{
		{Date: day(1), CategoryID: &known, Description: "First", Credited: 100},
		{Date: day(2), Description: "Second", Debited: 50, CategoryID: &unknown},
	})
	require.Error(t, err)
	assert.True(t, transaction.IsValidation(err))

	page, err := svc.List(ctx, transaction.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestIntegration_ConcurrentCreatesKeepBalancesConsistent(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	svc := transaction.NewService(store.New(db))
	catID := seedCategory(t, db)

	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := svc.Create(ctx, transaction.CreateParams{
				Date:        day(1 + i%3),
				CategoryID:  &catID,
				Description: "Deposit",
				Credited:    1000,
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	require.NoError(t, errors.Join(errs...))

	got := balances(t, svc)
	require.Len(t, got, workers)

	for i, b := range got {
		assert.Equal(t, int64(1000*(i+1)), b, "row %d", i)
	}
}
