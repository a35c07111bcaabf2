package transaction_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction/memory"
)

var groceries = transaction.Category{ID: uuid.MustParse("0192a3b4-0000-7000-8000-000000000001"), Name: "Groceries", Color: "#6366f1", Active: true}

func day(n int) time.Time {
	return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// tickingClock returns a clock that advances one second per call so that
// created_at values follow insertion order.
func tickingClock() func() time.Time {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newLedger(t *testing.T, opts ...memory.Option) (*transaction.Service, *memory.Store) {
	t.Helper()

	store := memory.New(append([]memory.Option{memory.WithClock(tickingClock())}, opts...)...)
	store.AddCategory(groceries)

	return transaction.NewService(store), store
}

func params(date time.Time, credited, debited int64) transaction.CreateParams {
	return transaction.CreateParams{
		Date:        date,
		CategoryID:  &groceries.ID,
		Description: "entry",
		Credited:    credited,
		Debited:     debited,
	}
}

func mustCreate(t *testing.T, svc *transaction.Service, p transaction.CreateParams) *transaction.Transaction {
	t.Helper()

	got, err := svc.Create(context.Background(), p)
	require.NoError(t, err)

	return got
}

// balances returns the running balances of active rows in ledger order.
func balances(store *memory.Store) []int64 {
	var out []int64

	for _, row := range store.Rows() {
		if row.Status == transaction.StatusActive {
			out = append(out, row.Balance)
		}
	}

	return out
}

func seedScenarioA(t *testing.T, svc *transaction.Service) (d1, d2, d3 *transaction.Transaction) {
	t.Helper()

	d1 = mustCreate(t, svc, params(day(1), 1000, 0))
	d2 = mustCreate(t, svc, params(day(2), 0, 200))
	d3 = mustCreate(t, svc, params(day(3), 0, 50))

	return d1, d2, d3
}

func TestService_Scenarios(t *testing.T) {
	t.Run("A append in date order", func(t *testing.T) {
		svc, store := newLedger(t)
		d1, d2, d3 := seedScenarioA(t, svc)

		assert.Equal(t, []int64{1000, 800, 750}, balances(store))
		assert.Equal(t, int64(1000), d1.Balance)
		assert.Equal(t, int64(800), d2.Balance)
		assert.Equal(t, int64(750), d3.Balance)
	})

	t.Run("B backdated insert shifts later balances", func(t *testing.T) {
		svc, store := newLedger(t)
		seedScenarioA(t, svc)

		d0 := mustCreate(t, svc, params(day(0), 0, 100))

		assert.Equal(t, int64(-100), d0.Balance)
		assert.Equal(t, []int64{-100, 900, 700, 650}, balances(store))
	})

	t.Run("C soft delete drops the entry from every balance", func(t *testing.T) {
		svc, store := newLedger(t)
		_, d2, _ := seedScenarioA(t, svc)

		require.NoError(t, svc.SoftDelete(context.Background(), d2.ID))

		assert.Equal(t, []int64{1000, 950}, balances(store))

		row, ok := store.Row(d2.ID)
		require.True(t, ok)
		assert.Equal(t, transaction.StatusInactive, row.Status)
	})

	t.Run("D update amount recomputes", func(t *testing.T) {
		svc, store := newLedger(t)
		_, _, d3 := seedScenarioA(t, svc)

		got, err := svc.Update(context.Background(), d3.ID, transaction.Patch{Debited: new(int64(500))})
		require.NoError(t, err)

		assert.Equal(t, int64(300), got.Balance)
		assert.Equal(t, []int64{1000, 800, 300}, balances(store))
	})

	t.Run("E zero amounts are rejected", func(t *testing.T) {
		svc, store := newLedger(t)

		_, err := svc.Create(context.Background(), params(day(1), 0, 0))

		var ve *transaction.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "amount", ve.Field)
		assert.Empty(t, store.Rows())
		assert.Empty(t, store.AuditEntries())
	})
}

func TestService_Ordering(t *testing.T) {
	t.Run("same date orders by creation", func(t *testing.T) {
		svc, store := newLedger(t)

		first := mustCreate(t, svc, params(day(5), 300, 0))
		second := mustCreate(t, svc, params(day(5), 0, 100))
		earlier := mustCreate(t, svc, params(day(4), 50, 0))

		rows := store.Rows()
		require.Len(t, rows, 3)
		assert.Equal(t, []uuid.UUID{earlier.ID, first.ID, second.ID}, []uuid.UUID{rows[0].ID, rows[1].ID, rows[2].ID})
		assert.Equal(t, []int64{50, 350, 250}, balances(store))
	})

	t.Run("identical date and creation time fall back to id", func(t *testing.T) {
		frozen := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
		store := memory.New(memory.WithClock(func() time.Time { return frozen }))
		store.AddCategory(groceries)
		svc := transaction.NewService(store)

		a := mustCreate(t, svc, params(day(1), 0, 10))
		b := mustCreate(t, svc, params(day(1), 100, 0))

		// v7 ids are monotonic within a process.
		require.Equal(t, -1, transaction.Compare(a, b))
		assert.Equal(t, []int64{-10, 90}, balances(store))
	})

	t.Run("balance equals prefix sum", func(t *testing.T) {
		svc, store := newLedger(t)

		amounts := []struct {
			date              int
			credited, debited int64
		}{
			{7, 0, 120}, {2, 5000, 0}, {7, 15, 0}, {3, 0, 999}, {1, 0, 1}, {9, 250, 0},
		}

		for _, a := range amounts {
			mustCreate(t, svc, params(day(a.date), a.credited, a.debited))
		}

		var sum int64
		for _, row := range store.Rows() {
			sum += row.Net()
			assert.Equal(t, sum, row.Balance, row.Date)
		}
	})
}

func TestService_InactiveNeverCounts(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()

	d1, _, d3 := seedScenarioA(t, svc)
	early := mustCreate(t, svc, params(day(0), 10_000, 0))
	require.NoError(t, svc.SoftDelete(ctx, early.ID))

	// Moving an inactive row is impossible, but later edits must still skip it.
	_, err := svc.Update(ctx, d1.ID, transaction.Patch{Credited: new(int64(2000))})
	require.NoError(t, err)

	assert.Equal(t, []int64{2000, 1800, 1750}, balances(store))

	row, _ := store.Row(d3.ID)
	assert.Equal(t, int64(1750), row.Balance)
}

func TestRecompute_Idempotent(t *testing.T) {
	svc, store := newLedger(t)
	seedScenarioA(t, svc)

	run := func() transaction.Balances {
		tx, err := store.Begin(context.Background())
		require.NoError(t, err)

		defer tx.Rollback()

		got, err := transaction.Recompute(context.Background(), tx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		return got
	}

	first := run()
	second := run()

	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestService_UpdateRollsBackOnRecomputeFailure(t *testing.T) {
	boom := errors.New("disk full")

	var failing bool

	svc, store := newLedger(t, memory.WithFault(func(op string) error {
		if failing && op == "write_balance" {
			return boom
		}

		return nil
	}))
	ctx := context.Background()

	_, _, d3 := seedScenarioA(t, svc)
	before := store.AuditEntries()

	failing = true

	_, err := svc.Update(ctx, d3.ID, transaction.Patch{Debited: new(int64(500)), Description: new("changed")})

	var pe *transaction.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)

	got, err := svc.Get(ctx, d3.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Debited)
	assert.Equal(t, "entry", got.Description)
	assert.Equal(t, []int64{1000, 800, 750}, balances(store))
	assert.Equal(t, before, store.AuditEntries())
}

func TestService_Atomicity(t *testing.T) {
	id := uuid.MustParse("0192a3b4-0000-7000-8000-00000000000a")
	existing := &transaction.Transaction{
		ID:          id,
		Date:        day(3),
		CategoryID:  &groceries.ID,
		Description: "entry",
		Debited:     50,
		Balance:     750,
		Status:      transaction.StatusActive,
	}

	tests := []struct {
		name  string
		setup func(tx *transaction.MockTx)
		call  func(svc *transaction.Service) error
	}{
		{
			name: "update fails writing balance",
			setup: func(tx *transaction.MockTx) {
				tx.EXPECT().Get(gomock.Any(), id).Return(existing, nil)
				tx.EXPECT().Update(gomock.Any(), id, gomock.Any()).Return(nil)
				tx.EXPECT().ScanActiveOrdered(gomock.Any()).Return([]transaction.LedgerEntry{{ID: id, Debited: 500}}, nil)
				tx.EXPECT().WriteBalance(gomock.Any(), id, int64(-500)).Return(errors.New("connection reset"))
			},
			call: func(svc *transaction.Service) error {
				_, err := svc.Update(context.Background(), id, transaction.Patch{Debited: new(int64(500))})
				return err
			},
		},
		{
			name: "delete fails scanning",
			setup: func(tx *transaction.MockTx) {
				tx.EXPECT().Get(gomock.Any(), id).Return(existing, nil)
				tx.EXPECT().SetStatus(gomock.Any(), id, transaction.StatusInactive).Return(nil)
				tx.EXPECT().ScanActiveOrdered(gomock.Any()).Return(nil, errors.New("connection reset"))
			},
			call: func(svc *transaction.Service) error {
				return svc.SoftDelete(context.Background(), id)
			},
		},
		{
			name: "create fails appending audit",
			setup: func(tx *transaction.MockTx) {
				tx.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *transaction.Transaction) error {
					t.ID = id
					return nil
				})
				tx.EXPECT().ScanActiveOrdered(gomock.Any()).Return([]transaction.LedgerEntry{{ID: id, Credited: 100}}, nil)
				tx.EXPECT().WriteBalance(gomock.Any(), id, int64(100)).Return(nil)
				tx.EXPECT().Get(gomock.Any(), id).Return(&transaction.Transaction{
					ID: id, Date: day(1), CategoryID: &groceries.ID, Description: "entry",
					Credited: 100, Balance: 100, Status: transaction.StatusActive,
				}, nil)
				tx.EXPECT().AppendAudit(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
			},
			call: func(svc *transaction.Service) error {
				_, err := svc.Create(context.Background(), params(day(1), 100, 0))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)

			repo := transaction.NewMockRepository(ctrl)
			tx := transaction.NewMockTx(ctrl)

			repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
			tt.setup(tx)
			tx.EXPECT().Rollback().Return(nil)
			tx.EXPECT().Commit().Times(0)

			err := tt.call(transaction.NewService(repo))

			var pe *transaction.PersistenceError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestService_AmountLimit(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()

	atLimit := mustCreate(t, svc, params(day(1), money.MaxCents, 0))
	assert.Equal(t, money.MaxCents, atLimit.Balance)

	_, err := svc.Create(ctx, params(day(2), money.MaxCents+1, 0))
	assert.True(t, transaction.IsValidation(err), "credited over limit: %v", err)

	_, err = svc.Create(ctx, params(day(2), 0, money.MaxCents+1))
	assert.True(t, transaction.IsValidation(err), "debited over limit: %v", err)

	_, err = svc.Update(ctx, atLimit.ID, transaction.Patch{Credited: new(money.MaxCents + 1)})
	assert.True(t, transaction.IsValidation(err), "update over limit: %v", err)

	assert.Equal(t, []int64{money.MaxCents}, balances(store))
}

func TestRecompute_RejectsOverflow(t *testing.T) {
	first := uuid.MustParse("0192a3b4-0000-7000-8000-0000000000b1")
	second := uuid.MustParse("0192a3b4-0000-7000-8000-0000000000b2")

	tests := []struct {
		name    string
		entries []transaction.LedgerEntry
	}{
		{name: "credit past max", entries: []transaction.LedgerEntry{{ID: first, Credited: math.MaxInt64}, {ID: second, Credited: 1}}},
		{name: "debit past min", entries: []transaction.LedgerEntry{{ID: first, Debited: math.MaxInt64}, {ID: second, Debited: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tx := transaction.NewMockTx(ctrl)

			tx.EXPECT().ScanActiveOrdered(gomock.Any()).Return(tt.entries, nil)
			tx.EXPECT().WriteBalance(gomock.Any(), first, gomock.Any()).Return(nil)

			got, err := transaction.Recompute(context.Background(), tx)
			assert.Nil(t, got)
			assert.True(t, transaction.IsValidation(err), "got %v", err)
		})
	}
}

func TestService_CreateRollsBackOnBalanceOverflow(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := transaction.NewMockRepository(ctrl)
	tx := transaction.NewMockTx(ctrl)

	existing := uuid.MustParse("0192a3b4-0000-7000-8000-0000000000c1")
	created := uuid.MustParse("0192a3b4-0000-7000-8000-0000000000c2")

	repo.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	tx.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, t *transaction.Transaction) error {
		t.ID = created
		return nil
	})
	tx.EXPECT().ScanActiveOrdered(gomock.Any()).Return([]transaction.LedgerEntry{
		{ID: existing, Credited: math.MaxInt64 - 10},
		{ID: created, Credited: 100},
	}, nil)
	tx.EXPECT().WriteBalance(gomock.Any(), existing, int64(math.MaxInt64-10)).Return(nil)
	tx.EXPECT().Rollback().Return(nil)
	tx.EXPECT().Commit().Times(0)

	_, err := transaction.NewService(repo).Create(context.Background(), params(day(1), 100, 0))
	require.Error(t, err)
	assert.True(t, transaction.IsValidation(err))
}

func TestMemoryTx_UpdateOwnsCategoryID(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()

	bills := transaction.Category{ID: uuid.MustParse("0192a3b4-0000-7000-8000-000000000002"), Name: "Bills", Active: true}
	store.AddCategory(bills)

	created := mustCreate(t, svc, params(day(1), 1000, 0))

	target := bills.ID

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Update(ctx, created.ID, transaction.Patch{CategoryID: &target}))
	require.NoError(t, tx.Commit())

	target = groceries.ID

	row, ok := store.Row(created.ID)
	require.True(t, ok)
	require.NotNil(t, row.CategoryID)
	assert.Equal(t, bills.ID, *row.CategoryID)
}

func TestService_AuditTrail(t *testing.T) {
	svc, store := newLedger(t)
	ctx := audit.WithActor(context.Background(), "alice")

	created, err := svc.Create(ctx, params(day(1), 1000, 0))
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, transaction.Patch{Description: new("salary")})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, created.ID))

	entries := store.AuditEntries()
	require.Len(t, entries, 3)

	for _, e := range entries {
		assert.Equal(t, transaction.TableName, e.TableName)
		assert.Equal(t, created.ID.String(), e.RecordID)
		assert.Equal(t, "alice", e.Actor)
	}

	insert, update, del := entries[0], entries[1], entries[2]

	assert.Equal(t, audit.ActionInsert, insert.Action)
	assert.True(t, insert.Before.IsEmpty())
	assert.Equal(t, "10.00", insert.After.Fields["running_balance"])
	assert.Equal(t, "active", insert.After.Fields["status"])

	assert.Equal(t, audit.ActionUpdate, update.Action)
	assert.Equal(t, "entry", update.Before.Fields["description"])
	assert.Equal(t, "salary", update.After.Fields["description"])
	assert.Contains(t, audit.Diff(update.Before, update.After), "description")

	assert.Equal(t, audit.ActionDelete, del.Action)
	assert.Equal(t, "salary", del.Before.Fields["description"])
	assert.Equal(t, "active", del.Before.Fields["status"])
	assert.True(t, del.After.IsEmpty())

	history, err := svc.History(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entries, history)

	_, err = svc.History(ctx, uuid.New())
	assert.ErrorIs(t, err, transaction.ErrNotFound)
}

func TestService_NotFound(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()

	gone := mustCreate(t, svc, params(day(1), 100, 0))
	require.NoError(t, svc.SoftDelete(ctx, gone.ID))

	auditCount := len(store.AuditEntries())

	tests := []struct {
		name string
		id   uuid.UUID
	}{
		{name: "unknown id", id: uuid.New()},
		{name: "soft deleted", id: gone.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, tt.id, transaction.Patch{Notes: new("x")})
			assert.ErrorIs(t, err, transaction.ErrNotFound)

			err = svc.SoftDelete(ctx, tt.id)
			assert.ErrorIs(t, err, transaction.ErrNotFound)

			_, err = svc.Get(ctx, tt.id)
			assert.ErrorIs(t, err, transaction.ErrNotFound)
		})
	}

	assert.Len(t, store.AuditEntries(), auditCount)
}

func TestService_Validation(t *testing.T) {
	svc, store := newLedger(t)
	ctx := context.Background()

	existing := mustCreate(t, svc, params(day(1), 100, 0))

	createCases := []struct {
		name   string
		params transaction.CreateParams
		field  string
	}{
		{name: "missing date", params: params(time.Time{}, 100, 0), field: "transaction_date"},
		{name: "negative credited", params: params(day(1), -1, 0), field: "credited"},
		{name: "negative debited", params: params(day(1), 0, -1), field: "debited"},
		{
			name:   "blank description",
			params: transaction.CreateParams{Date: day(1), CategoryID: &groceries.ID, Description: "  ", Credited: 1},
			field:  "description",
		},
		{
			name:   "missing category",
			params: transaction.CreateParams{Date: day(1), Description: "x", Credited: 1},
			field:  "category_id",
		},
		{
			name:   "unknown category",
			params: transaction.CreateParams{Date: day(1), CategoryID: new(uuid.New()), Description: "x", Credited: 1},
			field:  "category_id",
		},
	}

	for _, tc := range createCases {
		t.Run("create "+tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.params)

			var ve *transaction.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	updateCases := []struct {
		name  string
		patch transaction.Patch
	}{
		{name: "empty patch", patch: transaction.Patch{}},
		{name: "negative debited", patch: transaction.Patch{Debited: new(int64(-5))}},
		{name: "zeroing the only side", patch: transaction.Patch{Credited: new(int64(0))}},
		{name: "blank description", patch: transaction.Patch{Description: new("")}},
	}

	for _, tc := range updateCases {
		t.Run("update "+tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, existing.ID, tc.patch)
			assert.True(t, transaction.IsValidation(err), err)
		})
	}

	assert.Len(t, store.Rows(), 1)
	assert.Len(t, store.AuditEntries(), 1)
}

func TestService_CreateBatch(t *testing.T) {
	t.Run("all or nothing", func(t *testing.T) {
		svc, store := newLedger(t)

		_, err := svc.CreateBatch(context.Background(), []transaction.CreateParams{
			params(day(1), 100, 0),
			params(day(2), 0, 0),
		})

		var ve *transaction.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "[1].amount", ve.Field)
		assert.Empty(t, store.Rows())
	})

	t.Run("one audit entry per record", func(t *testing.T) {
		svc, store := newLedger(t)

		got, err := svc.CreateBatch(context.Background(), []transaction.CreateParams{
			params(day(3), 0, 50),
			params(day(1), 1000, 0),
			params(day(2), 0, 200),
		})
		require.NoError(t, err)
		require.Len(t, got, 3)

		assert.Equal(t, int64(750), got[0].Balance)
		assert.Equal(t, int64(1000), got[1].Balance)
		assert.Equal(t, int64(800), got[2].Balance)
		assert.Len(t, store.AuditEntries(), 3)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		svc, store := newLedger(t)

		got, err := svc.CreateBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Empty(t, store.AuditEntries())
	})
}

func TestService_List(t *testing.T) {
	svc, _ := newLedger(t)
	ctx := context.Background()

	for i := range 5 {
		mustCreate(t, svc, params(day(i), 100, 0))
	}

	t.Run("defaults", func(t *testing.T) {
		page, err := svc.List(ctx, transaction.ListFilter{})
		require.NoError(t, err)

		assert.Equal(t, 1, page.Page)
		assert.Equal(t, transaction.DefaultLimit, page.Limit)
		assert.Equal(t, 5, page.TotalCount)
		require.Len(t, page.Transactions, 5)
		assert.Equal(t, day(4), page.Transactions[0].Date)
		require.NotNil(t, page.Transactions[0].Category)
		assert.Equal(t, "Groceries", page.Transactions[0].Category.Name)
	})

	t.Run("paging and range", func(t *testing.T) {
		page, err := svc.List(ctx, transaction.ListFilter{
			FromDate: new(day(1)),
			ToDate:   new(day(3)),
			Page:     2,
			Limit:    2,
		})
		require.NoError(t, err)

		assert.Equal(t, 3, page.TotalCount)
		require.Len(t, page.Transactions, 1)
		assert.Equal(t, day(1), page.Transactions[0].Date)
	})

	t.Run("limit is capped", func(t *testing.T) {
		page, err := svc.List(ctx, transaction.ListFilter{Limit: 10_000})
		require.NoError(t, err)
		assert.Equal(t, transaction.MaxLimit, page.Limit)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := svc.List(ctx, transaction.ListFilter{FromDate: new(day(3)), ToDate: new(day(1))})
		assert.True(t, transaction.IsValidation(err))
	})

	t.Run("summary", func(t *testing.T) {
		sum, err := svc.Summary(ctx, transaction.SummaryFilter{ToDate: new(day(1))})
		require.NoError(t, err)

		assert.Equal(t, transaction.Summary{TotalCredited: 200, NetBalance: 200, Count: 2}, sum)
	})
}
