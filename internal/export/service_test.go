package export_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction/memory"
)

var rent = transaction.Category{ID: uuid.New(), Name: "Rent", Color: "#ff0000", Active: true}

func seed(t *testing.T, n int) *transaction.Service {
	t.Helper()

	store := memory.New()
	store.AddCategory(rent)

	svc := transaction.NewService(store)

	for i := range n {
		_, err := svc.Create(context.Background(), transaction.CreateParams{
			Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			CategoryID:  &rent.ID,
			Description: "rent, january",
			Debited:     1050,
			Tags:        []string{"home", "fixed"},
		})
		require.NoError(t, err)
	}

	return svc
}

func TestService_WriteCSV(t *testing.T) {
	svc := export.NewService(seed(t, 2))

	var buf bytes.Buffer

	n, err := svc.WriteCSV(context.Background(), &buf, export.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, export.Header, records[0])
	assert.Equal(t, []string{"2024-01-02", "Rent", "rent, january", "0.00", "10.50", "-21.00", "home;fixed", ""}, records[1])
	assert.Equal(t, "-10.50", records[2][5])
}

func TestService_CollectPages(t *testing.T) {
	svc := export.NewService(seed(t, transaction.MaxLimit+3))

	txs, err := svc.Collect(context.Background(), export.Filter{})
	require.NoError(t, err)
	assert.Len(t, txs, transaction.MaxLimit+3)

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	txs, err = svc.Collect(context.Background(), export.Filter{SummaryFilter: transaction.SummaryFilter{FromDate: &from, ToDate: &to}})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestDigest(t *testing.T) {
	txs := []*transaction.Transaction{
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Description: "Salary", Credited: 250000},
		{Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), Description: "Rent", Debited: 90000, Category: &rent},
	}

	want := "* 2024-02-01 | Salary | +2500.00 € | Uncategorized\n" +
		"* 2024-02-03 | Rent | -900.00 € | Rent\n"

	assert.Equal(t, want, export.Digest(txs))
}
