package view

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

func TestTxFields_CreateParams(t *testing.T) {
	catID := uuid.New()

	tests := []struct {
		name    string
		fields  txFields
		want    transaction.CreateParams
		wantErr string
	}{
		{
			name: "all fields",
			fields: txFields{
				Date:        "2026-03-14",
				CategoryID:  catID,
				Description: "  Groceries ",
				Credited:    "",
				Debited:     "42.10",
				Tags:        "food, , weekly",
				Notes:       "market",
			},
			want: transaction.CreateParams{
				Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
				CategoryID:  &catID,
				Description: "Groceries",
				Debited:     4210,
				Tags:        []string{"food", "weekly"},
				Notes:       "market",
			},
		},
		{
			name:   "no category selected",
			fields: txFields{Date: "2026-03-14", Description: "Salary", Credited: "1500", Debited: "0.00"},
			want: transaction.CreateParams{
				Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
				Description: "Salary",
				Credited:    150000,
			},
		},
		{
			name:    "bad date",
			fields:  txFields{Date: "14/03/2026", Description: "x"},
			wantErr: "date",
		},
		{
			name:    "too precise",
			fields:  txFields{Date: "2026-03-14", Description: "x", Debited: "1.005"},
			wantErr: "debited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fields.createParams()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTxFields_Patch(t *testing.T) {
	catID := uuid.New()
	orig := &transaction.Transaction{
		ID:          uuid.New(),
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		CategoryID:  &catID,
		Description: "Groceries",
		Debited:     4210,
		Tags:        []string{"food"},
	}

	t.Run("unchanged form is empty", func(t *testing.T) {
		p, err := newTxFields(orig, time.Now()).patch(orig)
		require.NoError(t, err)
		assert.True(t, p.IsEmpty())
	})

	t.Run("only edited fields are set", func(t *testing.T) {
		f := newTxFields(orig, time.Now())
		f.Debited = "50.00"
		f.Tags = "food, weekly"

		p, err := f.patch(orig)
		require.NoError(t, err)

		require.NotNil(t, p.Debited)
		assert.Equal(t, int64(5000), *p.Debited)
		require.NotNil(t, p.Tags)
		assert.Equal(t, []string{"food", "weekly"}, *p.Tags)
		assert.Nil(t, p.Date)
		assert.Nil(t, p.Description)
		assert.Nil(t, p.CategoryID)
		assert.Nil(t, p.Credited)
	})
}
