package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// Header is the column layout of exported files. The importer recognises it.
var Header = []string{
	"transaction_date", "category", "description", "credited", "debited", "running_balance", "tags", "notes",
}

// TagSeparator joins tags inside the single tags column.
const TagSeparator = ";"

// Lister is the read side of the ledger the export needs.
type Lister interface {
	List(ctx context.Context, filter transaction.ListFilter) (*transaction.Page, error)
}

// Filter selects the transactions to export.
type Filter struct {
	transaction.SummaryFilter
}

// Service exports active transactions.
type Service struct {
	transactions Lister
}

// NewService creates a new export Service.
func NewService(transactions Lister) *Service {
	return &Service{transactions: transactions}
}

// Collect returns every active transaction matching filter, newest first.
func (s *Service) Collect(ctx context.Context, filter Filter) ([]*transaction.Transaction, error) {
	lf := transaction.ListFilter{
		CategoryID: filter.CategoryID,
		FromDate:   filter.FromDate,
		ToDate:     filter.ToDate,
		Page:       1,
		Limit:      transaction.MaxLimit,
	}

	var out []*transaction.Transaction

	for {
		page, err := s.transactions.List(ctx, lf)
		if err != nil {
			return nil, fmt.Errorf("listing transactions: %w", err)
		}

		out = append(out, page.Transactions...)

		if len(page.Transactions) < page.Limit || len(out) >= page.TotalCount {
			return out, nil
		}

		lf.Page++
	}
}

// WriteCSV writes the matching transactions to w and returns how many rows it wrote.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, filter Filter) (int, error) {
	txs, err := s.Collect(ctx, filter)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	for _, t := range txs {
		if err := cw.Write(Record(t)); err != nil {
			return 0, fmt.Errorf("writing transaction %s: %w", t.ID, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}

	return len(txs), nil
}

// Record renders t in Header column order.
func Record(t *transaction.Transaction) []string {
	category := ""
	if t.Category != nil {
		category = t.Category.Name
	}

	return []string{
		t.Date.Format(time.DateOnly),
		category,
		t.Description,
		money.Format(t.Credited),
		money.Format(t.Debited),
		money.Format(t.Balance),
		strings.Join(t.Tags, TagSeparator),
		t.Notes,
	}
}

// Digest renders a plain-text list of transactions, one per line.
func Digest(txs []*transaction.Transaction) string {
	var sb strings.Builder

	for _, t := range txs {
		sign, amount := "+", t.Net()
		if amount < 0 {
			sign, amount = "-", -amount
		}

		category := "Uncategorized"
		if t.Category != nil {
			category = t.Category.Name
		}

		fmt.Fprintf(&sb, "* %s | %s | %s%s € | %s\n",
			t.Date.Format(time.DateOnly), t.Description, sign, money.Format(amount), category)
	}

	return sb.String()
}
