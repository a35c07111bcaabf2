package export

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction/memory"
)

func TestHandler_CSV(t *testing.T) {
	food := transaction.Category{ID: uuid.New(), Name: "Food", Active: true}

	store := memory.New()
	store.AddCategory(food)

	ledger := transaction.NewService(store)

	for i, p := range []struct {
		credited, debited int64
	}{{credited: 5000}, {debited: 1250}} {
		_, err := ledger.Create(context.Background(), transaction.CreateParams{
			Date:        time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC),
			CategoryID:  &food.ID,
			Description: "entry",
			Credited:    p.credited,
			Debited:     p.debited,
		})
		require.NoError(t, err)
	}

	h := NewHandler(export.NewService(ledger))
	h.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }

	router := chi.NewRouter()
	router.Route("/export", h.Routes)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/csv", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="spendtrack_20240201.csv"`, rec.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, export.Header, records[0])
	assert.Equal(t, []string{"2024-01-11", "Food", "entry", "0.00", "12.50", "37.50", "", ""}, records[1])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/csv?from_date=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/digest?to_date=2024-01-10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "* 2024-01-10 | entry | +50.00 € | Food\n", rec.Body.String())
}
