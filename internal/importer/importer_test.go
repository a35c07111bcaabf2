package importer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/cgd"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/native"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

const cgdConta = `Consultar saldos e movimentos à ordem - 31-01-2026
Data mov.;Data-valor;Descrição;Montante;Saldo contabilístico após movimento
30-01-2026;30-01-2026;COMPRA CONTINENTE;-58,74;941,26
09-01-2026;09-01-2026;TFI Wise;1.000,00;1.000,00
`

const nativeFile = `transaction_date,category,description,credited,debited,running_balance,tags,notes
2024-02-03,Rent,Rent February,0.00,900.00,-900.00,home,
`

type deps struct {
	ledger     *importer.MockLedger
	categories *importer.MockCategories
	rules      *importer.MockSuggester
}

func newService(t *testing.T) (*importer.Service, deps) {
	t.Helper()

	ctrl := gomock.NewController(t)

	d := deps{
		ledger:     importer.NewMockLedger(ctrl),
		categories: importer.NewMockCategories(ctrl),
		rules:      importer.NewMockSuggester(ctrl),
	}

	svc := importer.NewService(d.ledger, d.categories, d.rules, native.NewParser(), cgd.NewParser())

	return svc, d
}

func TestService_Import(t *testing.T) {
	groceries := uuid.New()
	fallback := uuid.New()
	rent := uuid.New()

	tests := []struct {
		name       string
		file       string
		opts       importer.Options
		setupMocks func(d deps)
		wantFormat string
		check      func(t *testing.T, params []transaction.CreateParams)
		wantErr    func(t *testing.T, err error)
	}{
		{
			name: "CGD rows resolved by rule then default",
			file: cgdConta,
			opts: importer.Options{DefaultCategoryID: &fallback},
			setupMocks: func(d deps) {
				d.rules.EXPECT().Suggest(gomock.Any(), "COMPRA CONTINENTE").Return(groceries, true, nil)
				d.rules.EXPECT().Suggest(gomock.Any(), "TFI Wise").Return(uuid.Nil, false, nil)
				d.ledger.EXPECT().CreateBatch(gomock.Any(), gomock.Len(2)).
					DoAndReturn(func(_ context.Context, params []transaction.CreateParams) ([]*transaction.Transaction, error) {
						return make([]*transaction.Transaction, len(params)), nil
					})
			},
			wantFormat: "cgd",
			check: func(t *testing.T, params []transaction.CreateParams) {
				require.Len(t, params, 2)

				assert.Equal(t, groceries, *params[0].CategoryID)
				assert.Equal(t, int64(5874), params[0].Debited)
				assert.Equal(t, time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC), params[0].Date)

				assert.Equal(t, fallback, *params[1].CategoryID)
				assert.Equal(t, int64(100000), params[1].Credited)
			},
		},
		{
			name: "Native file resolves category by name",
			file: nativeFile,
			setupMocks: func(d deps) {
				d.categories.EXPECT().FindByName(gomock.Any(), "Rent").Return(&category.Category{ID: rent, Name: "Rent"}, nil)
				d.ledger.EXPECT().CreateBatch(gomock.Any(), gomock.Len(1)).Return([]*transaction.Transaction{{}}, nil)
			},
			wantFormat: "spendtrack",
			check: func(t *testing.T, params []transaction.CreateParams) {
				assert.Equal(t, rent, *params[0].CategoryID)
				assert.Equal(t, []string{"home"}, params[0].Tags)
			},
		},
		{
			name: "Unknown category name falls back to rules",
			file: nativeFile,
			opts: importer.Options{DryRun: true},
			setupMocks: func(d deps) {
				d.categories.EXPECT().FindByName(gomock.Any(), "Rent").Return(nil, category.ErrNotFound)
				d.rules.EXPECT().Suggest(gomock.Any(), "Rent February").Return(rent, true, nil)
			},
			wantFormat: "spendtrack",
			check: func(t *testing.T, params []transaction.CreateParams) {
				assert.Equal(t, rent, *params[0].CategoryID)
			},
		},
		{
			name: "Unresolved row without default",
			file: cgdConta,
			setupMocks: func(d deps) {
				d.rules.EXPECT().Suggest(gomock.Any(), gomock.Any()).Return(uuid.Nil, false, nil)
			},
			wantErr: func(t *testing.T, err error) {
				assert.True(t, transaction.IsValidation(err))
				assert.Contains(t, err.Error(), "line 3")
			},
		},
		{
			name: "Ledger rejects batch",
			file: cgdConta,
			opts: importer.Options{DefaultCategoryID: &fallback},
			setupMocks: func(d deps) {
				d.rules.EXPECT().Suggest(gomock.Any(), gomock.Any()).Return(uuid.Nil, false, nil).Times(2)
				d.ledger.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).
					Return(nil, &transaction.PersistenceError{Op: "committing create", Err: errors.New("conn reset")})
			},
			wantErr: func(t *testing.T, err error) {
				var pe *transaction.PersistenceError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name: "Unrecognized file",
			file: "hello,world\n1,2\n",
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, importer.ErrUnrecognized)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newService(t)
			if tt.setupMocks != nil {
				tt.setupMocks(d)
			}

			got, err := svc.Import(context.Background(), strings.NewReader(tt.file), tt.opts)
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, got.Format)
			tt.check(t, got.Params)

			if tt.opts.DryRun {
				assert.Nil(t, got.Created)
			} else {
				assert.Len(t, got.Created, len(got.Params))
			}
		})
	}
}

func TestService_ParseErrorIsReported(t *testing.T) {
	svc, _ := newService(t)

	_, _, err := svc.Parse(strings.NewReader("Data mov.;Descrição;Montante\n30-01-2026;;-10,00\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cgd: line 2: missing description")
}
