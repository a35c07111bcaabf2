package transaction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
)

// TableName is the logical entity name written into audit entries.
const TableName = "transactions"

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	Begin(ctx context.Context) (Tx, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, int, error)
	Summarize(ctx context.Context, filter SummaryFilter) (Summary, error)
	ListAudit(ctx context.Context, table, recordID string) ([]audit.Entry, error)
}

// Tx is one serialized unit of work against the ledger. Nothing written
// through it is visible to other callers until Commit.
type Tx interface {
	Insert(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	ScanActiveOrdered(ctx context.Context) ([]LedgerEntry, error)
	WriteBalance(ctx context.Context, id uuid.UUID, balance int64) error
	AppendAudit(ctx context.Context, e audit.Entry) error
	Commit() error
	Rollback() error
}

// Service is the only entry point that mutates the ledger. Every mutation
// runs validate, write, recompute and audit inside a single Tx.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Date        time.Time
	CategoryID  *uuid.UUID
	Description string
	Credited    int64
	Debited     int64
	Tags        []string
	Notes       string
}

// Patch holds the fields of an update; nil fields are left untouched.
type Patch struct {
	Date        *time.Time
	CategoryID  *uuid.UUID
	Description *string
	Credited    *int64
	Debited     *int64
	Tags        *[]string
	Notes       *string
}

type ListFilter struct {
	CategoryID *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Page       int
	Limit      int
}

// Offset returns the number of rows to skip for the filter's page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type Page struct {
	Transactions []*Transaction
	TotalCount   int
	Page         int
	Limit        int
}

type SummaryFilter struct {
	CategoryID *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
}

type Summary struct {
	TotalCredited int64
	TotalDebited  int64
	NetBalance    int64
	Count         int
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	txs, err := s.insert(ctx, []CreateParams{params})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "transaction created", "id", txs[0].ID, "balance", txs[0].Balance)

	return txs[0], nil
}

// CreateBatch inserts all params as one unit: either every record is written
// with a single recompute pass and one audit entry each, or none is.
func (s *Service) CreateBatch(ctx context.Context, params []CreateParams) ([]*Transaction, error) {
	if len(params) == 0 {
		return nil, nil
	}

	for i, p := range params {
		if err := p.validate(); err != nil {
			err.Field = fmt.Sprintf("[%d].%s", i, err.Field)
			return nil, err
		}
	}

	txs, err := s.insert(ctx, params)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "transactions created", "count", len(txs))

	return txs, nil
}

func (s *Service) insert(ctx context.Context, params []CreateParams) ([]*Transaction, error) {
	txs := make([]*Transaction, len(params))
	for i, p := range params {
		txs[i] = p.toTransaction()
	}

	err := s.withTx(ctx, "create", func(tx Tx) error {
		for _, t := range txs {
			if err := tx.Insert(ctx, t); err != nil {
				return persistence("inserting transaction", err)
			}
		}

		if _, err := Recompute(ctx, tx); err != nil {
			return persistence("recomputing balances", err)
		}

		writer := audit.NewWriter(tx)

		for i, t := range txs {
			stored, err := tx.Get(ctx, t.ID)
			if err != nil {
				return persistence("reloading transaction", err)
			}

			if err := writer.Record(ctx, TableName, stored.ID.String(), audit.ActionInsert, audit.Snapshot{}, Snapshot(stored)); err != nil {
				return persistence("writing audit entry", err)
			}

			txs[i] = stored
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return txs, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Transaction, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	patch = patch.normalized()

	var before, after *Transaction

	err := s.withTx(ctx, "update", func(tx Tx) error {
		var err error

		before, err = s.loadActive(ctx, tx, id)
		if err != nil {
			return err
		}

		merged := *before
		patch.Apply(&merged)

		if err := validateAmounts(merged.Credited, merged.Debited); err != nil {
			return err
		}

		if err := tx.Update(ctx, id, patch); err != nil {
			return persistence("updating transaction", err)
		}

		if _, err := Recompute(ctx, tx); err != nil {
			return persistence("recomputing balances", err)
		}

		after, err = tx.Get(ctx, id)
		if err != nil {
			return persistence("reloading transaction", err)
		}

		writer := audit.NewWriter(tx)
		if err := writer.Record(ctx, TableName, id.String(), audit.ActionUpdate, Snapshot(before), Snapshot(after)); err != nil {
			return persistence("writing audit entry", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "transaction updated",
		"id", id,
		"changed", audit.Diff(Snapshot(before), Snapshot(after)),
		"balance", after.Balance)

	return after, nil
}

// SoftDelete marks the transaction inactive and drops it from every balance.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID) error {
	err := s.withTx(ctx, "delete", func(tx Tx) error {
		current, err := s.loadActive(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := tx.SetStatus(ctx, id, StatusInactive); err != nil {
			return persistence("deactivating transaction", err)
		}

		if _, err := Recompute(ctx, tx); err != nil {
			return persistence("recomputing balances", err)
		}

		writer := audit.NewWriter(tx)
		if err := writer.Record(ctx, TableName, id.String(), audit.ActionDelete, Snapshot(current), audit.Snapshot{}); err != nil {
			return persistence("writing audit entry", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "transaction deleted", "id", id)

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	filter, err := filter.normalized()
	if err != nil {
		return nil, err
	}

	txs, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &Page{
		Transactions: txs,
		TotalCount:   total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	}, nil
}

func (s *Service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	if err := validateRange(filter.FromDate, filter.ToDate); err != nil {
		return Summary{}, err
	}

	return s.repo.Summarize(ctx, filter)
}

// History returns every audit entry recorded for id, oldest first.
// Soft-deleted transactions keep their history.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]audit.Entry, error) {
	entries, err := s.repo.ListAudit(ctx, TableName, id.String())
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	return entries, nil
}

// loadActive fetches id under the unit's lock. Inactive records are reported
// as missing: a soft-deleted transaction can be neither edited nor deleted again.
func (s *Service) loadActive(ctx context.Context, tx Tx, id uuid.UUID) (*Transaction, error) {
	current, err := tx.Get(ctx, id)
	if err != nil {
		return nil, persistence("loading transaction", err)
	}

	if current.Status != StatusActive {
		return nil, ErrNotFound
	}

	return current, nil
}

func (s *Service) withTx(ctx context.Context, op string, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return persistence("beginning "+op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistence("committing "+op, err)
	}

	return nil
}

func (p CreateParams) toTransaction() *Transaction {
	return &Transaction{
		Date:        DateOf(p.Date),
		CategoryID:  p.CategoryID,
		Description: p.Description,
		Credited:    p.Credited,
		Debited:     p.Debited,
		Tags:        normalizeTags(p.Tags),
		Notes:       p.Notes,
		Status:      StatusActive,
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.CategoryID == nil && p.Description == nil &&
		p.Credited == nil && p.Debited == nil && p.Tags == nil && p.Notes == nil
}

func (p Patch) normalized() Patch {
	if p.Date != nil {
		p.Date = new(DateOf(*p.Date))
	}

	if p.Tags != nil {
		p.Tags = new(normalizeTags(*p.Tags))
	}

	return p
}

// Apply copies the set fields of p onto t.
func (p Patch) Apply(t *Transaction) {
	if p.Date != nil {
		t.Date = *p.Date
	}

	if p.CategoryID != nil {
		t.CategoryID = p.CategoryID
	}

	if p.Description != nil {
		t.Description = *p.Description
	}

	if p.Credited != nil {
		t.Credited = *p.Credited
	}

	if p.Debited != nil {
		t.Debited = *p.Debited
	}

	if p.Tags != nil {
		t.Tags = *p.Tags
	}

	if p.Notes != nil {
		t.Notes = *p.Notes
	}
}
