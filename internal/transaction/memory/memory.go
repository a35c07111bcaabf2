// Package memory provides an in-process ledger store with the same
// unit-of-work contract as the Postgres store. The coordinator and HTTP
// handler tests run against it.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

var ErrTxDone = errors.New("transaction already committed or rolled back")

// Fault lets tests fail a named Tx step. A nil return lets the step run.
type Fault func(op string) error

type Option func(*Store)

// WithClock replaces time.Now for created_at and updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithFault installs f to be consulted before every Tx step.
func WithFault(f Fault) Option {
	return func(s *Store) { s.fault = f }
}

// Store keeps committed rows in memory. Only one Tx may be open at a time;
// Begin blocks until the previous one commits or rolls back.
type Store struct {
	writer chan struct{}

	mu         sync.RWMutex
	rows       map[uuid.UUID]*transaction.Transaction
	categories map[uuid.UUID]transaction.Category
	audit      []audit.Entry

	now   func() time.Time
	fault Fault
}

func New(opts ...Option) *Store {
	s := &Store{
		writer:     make(chan struct{}, 1),
		rows:       make(map[uuid.UUID]*transaction.Transaction),
		categories: make(map[uuid.UUID]transaction.Category),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AddCategory registers a category so reads can join it onto transactions.
func (s *Store) AddCategory(c transaction.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.categories[c.ID] = c
}

// AuditEntries returns a copy of every committed audit entry in append order.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.audit)
}

// Row returns the committed row for id regardless of status.
func (s *Store) Row(id uuid.UUID) (*transaction.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok {
		return nil, false
	}

	return s.joined(t), true
}

// Rows returns every committed row in ledger order regardless of status.
func (s *Store) Rows() []*transaction.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*transaction.Transaction, 0, len(s.rows))
	for _, t := range s.rows {
		out = append(out, s.joined(t))
	}

	slices.SortFunc(out, transaction.Compare)

	return out
}

func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	rows := make(map[uuid.UUID]*transaction.Transaction, len(s.rows))
	for id, t := range s.rows {
		rows[id] = clone(t)
	}
	s.mu.RUnlock()

	return &tx{store: s, rows: rows}, nil
}

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok || t.Status != transaction.StatusActive {
		return nil, transaction.ErrNotFound
	}

	return s.joined(t), nil
}

func (s *Store) ListTransactions(_ context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*transaction.Transaction

	for _, t := range s.rows {
		if matches(t, filter.CategoryID, filter.FromDate, filter.ToDate) {
			matched = append(matched, t)
		}
	}

	slices.SortFunc(matched, func(a, b *transaction.Transaction) int {
		return transaction.Compare(b, a)
	})

	total := len(matched)
	start := min(max(filter.Offset(), 0), total)
	end := total

	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	out := make([]*transaction.Transaction, 0, end-start)
	for _, t := range matched[start:end] {
		out = append(out, s.joined(t))
	}

	return out, total, nil
}

func (s *Store) Summarize(_ context.Context, filter transaction.SummaryFilter) (transaction.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		sum transaction.Summary
		err error
	)

	for _, t := range s.rows {
		if !matches(t, filter.CategoryID, filter.FromDate, filter.ToDate) {
			continue
		}

		if sum.TotalCredited, err = money.Add(sum.TotalCredited, t.Credited); err != nil {
			return transaction.Summary{}, err
		}

		if sum.TotalDebited, err = money.Add(sum.TotalDebited, t.Debited); err != nil {
			return transaction.Summary{}, err
		}

		sum.Count++
	}

	if sum.NetBalance, err = money.Sub(sum.TotalCredited, sum.TotalDebited); err != nil {
		return transaction.Summary{}, err
	}

	return sum, nil
}

func (s *Store) ListAudit(_ context.Context, table, recordID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry

	for _, e := range s.audit {
		if e.TableName == table && e.RecordID == recordID {
			out = append(out, e)
		}
	}

	return out, nil
}

func matches(t *transaction.Transaction, categoryID *uuid.UUID, from, to *time.Time) bool {
	if t.Status != transaction.StatusActive {
		return false
	}

	if categoryID != nil && (t.CategoryID == nil || *t.CategoryID != *categoryID) {
		return false
	}

	if from != nil && t.Date.Before(transaction.DateOf(*from)) {
		return false
	}

	if to != nil && t.Date.After(transaction.DateOf(*to)) {
		return false
	}

	return true
}

// joined returns a copy of t with its category attached. Callers hold mu.
func (s *Store) joined(t *transaction.Transaction) *transaction.Transaction {
	out := clone(t)

	if t.CategoryID != nil {
		if c, ok := s.categories[*t.CategoryID]; ok {
			out.Category = &c
		}
	}

	return out
}

func clone(t *transaction.Transaction) *transaction.Transaction {
	out := *t
	out.Tags = slices.Clone(t.Tags)
	out.Category = nil

	if t.CategoryID != nil {
		id := *t.CategoryID
		out.CategoryID = &id
	}

	return &out
}

type tx struct {
	store   *Store
	rows    map[uuid.UUID]*transaction.Transaction
	pending []audit.Entry
	done    bool
}

func (t *tx) step(op string) error {
	if t.done {
		return ErrTxDone
	}

	if t.store.fault != nil {
		return t.store.fault(op)
	}

	return nil
}

func (t *tx) Insert(_ context.Context, row *transaction.Transaction) error {
	if err := t.step("insert"); err != nil {
		return err
	}

	if row.CategoryID != nil {
		t.store.mu.RLock()
		_, ok := t.store.categories[*row.CategoryID]
		t.store.mu.RUnlock()

		if !ok {
			return &transaction.ValidationError{Field: "category_id", Reason: "references an unknown category"}
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	now := t.store.now().UTC()

	row.ID = id
	row.Status = transaction.StatusActive
	row.CreatedAt = now
	row.UpdatedAt = now

	t.rows[id] = clone(row)

	return nil
}

func (t *tx) Get(_ context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	if err := t.step("get"); err != nil {
		return nil, err
	}

	row, ok := t.rows[id]
	if !ok {
		return nil, transaction.ErrNotFound
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return t.store.joined(row), nil
}

func (t *tx) Update(_ context.Context, id uuid.UUID, patch transaction.Patch) error {
	if err := t.step("update"); err != nil {
		return err
	}

	row, ok := t.rows[id]
	if !ok {
		return transaction.ErrNotFound
	}

	if patch.CategoryID != nil {
		t.store.mu.RLock()
		_, known := t.store.categories[*patch.CategoryID]
		t.store.mu.RUnlock()

		if !known {
			return &transaction.ValidationError{Field: "category_id", Reason: "references an unknown category"}
		}
	}

	patch.Apply(row)
	row.Tags = slices.Clone(row.Tags)

	if patch.CategoryID != nil {
		id := *patch.CategoryID
		row.CategoryID = &id
	}
	row.UpdatedAt = t.store.now().UTC()

	return nil
}

func (t *tx) SetStatus(_ context.Context, id uuid.UUID, status transaction.Status) error {
	if err := t.step("set_status"); err != nil {
		return err
	}

	row, ok := t.rows[id]
	if !ok {
		return transaction.ErrNotFound
	}

	if row.Status == status {
		return nil
	}

	row.Status = status
	row.UpdatedAt = t.store.now().UTC()

	return nil
}

func (t *tx) ScanActiveOrdered(_ context.Context) ([]transaction.LedgerEntry, error) {
	if err := t.step("scan"); err != nil {
		return nil, err
	}

	active := make([]*transaction.Transaction, 0, len(t.rows))
	for _, row := range t.rows {
		if row.Status == transaction.StatusActive {
			active = append(active, row)
		}
	}

	slices.SortFunc(active, transaction.Compare)

	entries := make([]transaction.LedgerEntry, len(active))
	for i, row := range active {
		entries[i] = transaction.LedgerEntry{ID: row.ID, Credited: row.Credited, Debited: row.Debited}
	}

	return entries, nil
}

func (t *tx) WriteBalance(_ context.Context, id uuid.UUID, balance int64) error {
	if err := t.step("write_balance"); err != nil {
		return err
	}

	row, ok := t.rows[id]
	if !ok {
		return transaction.ErrNotFound
	}

	row.Balance = balance

	return nil
}

func (t *tx) AppendAudit(_ context.Context, e audit.Entry) error {
	if err := t.step("append_audit"); err != nil {
		return err
	}

	t.pending = append(t.pending, e)

	return nil
}

func (t *tx) Commit() error {
	if err := t.step("commit"); err != nil {
		if !t.done {
			t.release()
		}

		return err
	}

	t.store.mu.Lock()
	t.store.rows = t.rows
	t.store.audit = append(t.store.audit, t.pending...)
	t.store.mu.Unlock()

	t.release()

	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}

	t.release()

	return nil
}

func (t *tx) release() {
	t.done = true
	t.rows = nil
	t.pending = nil
	<-t.store.writer
}
