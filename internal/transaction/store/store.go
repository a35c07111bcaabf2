package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// ledgerLockKey serializes every mutation unit. Any value works as long as
// no other feature takes the same advisory lock.
const ledgerLockKey int64 = 0x5e7d_1ed9

const (
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanTransaction reads a transaction row from the scanner and returns a populated Transaction.
// Expected column order: id, transaction_date, category_id, description, credited, debited,
// running_balance, tags, notes, status, created_at, updated_at, category name, color, active
func scanTransaction(s scanner) (*transaction.Transaction, error) {
	var tx transaction.Transaction

	var (
		statusStr string
		tags      []byte
		notes     sql.NullString
		catName   sql.NullString
		catColor  sql.NullString
		catActive sql.NullBool
	)

	if err := s.Scan(
		&tx.ID, &tx.Date, &tx.CategoryID, &tx.Description,
		&tx.Credited, &tx.Debited, &tx.Balance,
		&tags, &notes, &statusStr,
		&tx.CreatedAt, &tx.UpdatedAt,
		&catName, &catColor, &catActive,
	); err != nil {
		return nil, err
	}

	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &tx.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
	}

	if len(tx.Tags) == 0 {
		tx.Tags = nil
	}

	tx.Date = transaction.DateOf(tx.Date)
	tx.Notes = notes.String
	tx.Status = transaction.Status(statusStr)

	if tx.CategoryID != nil && catName.Valid {
		tx.Category = &transaction.Category{
			ID:     *tx.CategoryID,
			Name:   catName.String,
			Color:  catColor.String,
			Active: catActive.Bool,
		}
	}

	return &tx, nil
}

const selectTransactionColumns = `
	t.id, t.transaction_date, t.category_id, t.description, t.credited, t.debited,
	t.running_balance, to_jsonb(t.tags), t.notes, t.status, t.created_at, t.updated_at,
	c.name, c.color, c.active
`

const fromTransactions = `
	FROM transactions t
	LEFT JOIN categories c ON t.category_id = c.id`

func getTransaction(ctx context.Context, q queryer, id uuid.UUID, suffix string) (*transaction.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + fromTransactions + `
		WHERE t.id = $1` + suffix

	tx, err := scanTransaction(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, transaction.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return tx, nil
}

// GetTransaction returns an active transaction.
func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return getTransaction(ctx, s.db, id, ` AND t.status = 'active'`)
}

// activeFilter builds the WHERE clause shared by list, count and summary reads.
func activeFilter(categoryID *uuid.UUID, from, to *time.Time) (string, []any) {
	where := ` WHERE t.status = 'active'`

	var args []any

	argIdx := 1

	if categoryID != nil {
		where += fmt.Sprintf(" AND t.category_id = $%d", argIdx)

		args = append(args, *categoryID)
		argIdx++
	}

	if from != nil {
		where += fmt.Sprintf(" AND t.transaction_date >= $%d", argIdx)

		args = append(args, transaction.DateOf(*from))
		argIdx++
	}

	if to != nil {
		where += fmt.Sprintf(" AND t.transaction_date <= $%d", argIdx)

		args = append(args, transaction.DateOf(*to))
	}

	return where, args
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, int, error) {
	where, args := activeFilter(filter.CategoryID, filter.FromDate, filter.ToDate)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting transactions: %w", err)
	}

	query := `SELECT ` + selectTransactionColumns + fromTransactions + where +
		` ORDER BY t.transaction_date DESC, t.created_at DESC, t.id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, max(filter.Offset(), 0))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*transaction.Transaction

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating transactions: %w", err)
	}

	return txs, total, nil
}

func (s *Store) Summarize(ctx context.Context, filter transaction.SummaryFilter) (transaction.Summary, error) {
	where, args := activeFilter(filter.CategoryID, filter.FromDate, filter.ToDate)

	query := `SELECT COALESCE(SUM(t.credited), 0), COALESCE(SUM(t.debited), 0), COUNT(*)
		FROM transactions t` + where

	var sum transaction.Summary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum.TotalCredited, &sum.TotalDebited, &sum.Count); err != nil {
		return transaction.Summary{}, fmt.Errorf("summarizing transactions: %w", err)
	}

	sum.NetBalance = sum.TotalCredited - sum.TotalDebited

	return sum, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

// Begin opens a unit of work holding the ledger lock until commit or rollback.
func (s *Store) Begin(ctx context.Context) (transaction.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning ledger tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", ledgerLockKey); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring ledger lock: %w", err)
	}

	return &ledgerTx{tx: dbTx}, nil
}

func (ltx *ledgerTx) Commit() error   { return ltx.tx.Commit() }
func (ltx *ledgerTx) Rollback() error { return ltx.tx.Rollback() }

func (ltx *ledgerTx) Insert(ctx context.Context, tx *transaction.Transaction) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating transaction id: %w", err)
	}

	query := `
		INSERT INTO transactions (id, transaction_date, category_id, description, credited, debited,
			running_balance, tags, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, 'active', clock_timestamp(), clock_timestamp())
		RETURNING created_at, updated_at
	`

	err = ltx.tx.QueryRowContext(ctx, query,
		id,
		tx.Date,
		tx.CategoryID,
		tx.Description,
		tx.Credited,
		tx.Debited,
		tagsParam(tx.Tags),
		nullString(tx.Notes),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return classify("inserting transaction", err)
	}

	tx.ID = id
	tx.Status = transaction.StatusActive

	return nil
}

// Get reads a transaction in any status and locks its row.
func (ltx *ledgerTx) Get(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return getTransaction(ctx, ltx.tx, id, ` FOR UPDATE OF t`)
}

func (ltx *ledgerTx) Update(ctx context.Context, id uuid.UUID, patch transaction.Patch) error {
	var sets []string

	var args []any

	argIdx := 1

	set := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Date != nil {
		set("transaction_date", *patch.Date)
	}

	if patch.CategoryID != nil {
		set("category_id", *patch.CategoryID)
	}

	if patch.Description != nil {
		set("description", *patch.Description)
	}

	if patch.Credited != nil {
		set("credited", *patch.Credited)
	}

	if patch.Debited != nil {
		set("debited", *patch.Debited)
	}

	if patch.Tags != nil {
		set("tags", tagsParam(*patch.Tags))
	}

	if patch.Notes != nil {
		set("notes", nullString(*patch.Notes))
	}

	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE transactions
		SET %s, updated_at = clock_timestamp()
		WHERE id = $%d
	`, strings.Join(sets, ", "), argIdx)

	args = append(args, id)

	res, err := ltx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return classify("updating transaction", err)
	}

	return expectRow(res)
}

// SetStatus is a no-op success when the row already has status.
func (ltx *ledgerTx) SetStatus(ctx context.Context, id uuid.UUID, status transaction.Status) error {
	query := `
		UPDATE transactions
		SET status = $1,
			updated_at = CASE WHEN status = $1 THEN updated_at ELSE clock_timestamp() END
		WHERE id = $2
	`

	res, err := ltx.tx.ExecContext(ctx, query, string(status), id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	return expectRow(res)
}

func (ltx *ledgerTx) ScanActiveOrdered(ctx context.Context) ([]transaction.LedgerEntry, error) {
	query := `
		SELECT id, credited, debited
		FROM transactions
		WHERE status = 'active'
		ORDER BY transaction_date ASC, created_at ASC, id ASC
	`

	rows, err := ltx.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scanning ledger: %w", err)
	}
	defer rows.Close()

	var entries []transaction.LedgerEntry

	for rows.Next() {
		var e transaction.LedgerEntry
		if err := rows.Scan(&e.ID, &e.Credited, &e.Debited); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ledger: %w", err)
	}

	return entries, nil
}

func (ltx *ledgerTx) WriteBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	res, err := ltx.tx.ExecContext(ctx, `UPDATE transactions SET running_balance = $1 WHERE id = $2`, balance, id)
	if err != nil {
		return fmt.Errorf("writing balance: %w", err)
	}

	return expectRow(res)
}

func (ltx *ledgerTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	before, err := e.Before.Encode()
	if err != nil {
		return fmt.Errorf("encoding before snapshot: %w", err)
	}

	after, err := e.After.Encode()
	if err != nil {
		return fmt.Errorf("encoding after snapshot: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, table_name, record_id, action, old_values, new_values, actor, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8)
	`

	_, err = ltx.tx.ExecContext(ctx, query,
		e.ID,
		e.TableName,
		e.RecordID,
		string(e.Action),
		jsonParam(before),
		jsonParam(after),
		e.Actor,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// ListAudit returns the audit history of one record, oldest first.
func (s *Store) ListAudit(ctx context.Context, table, recordID string) ([]audit.Entry, error) {
	query := `
		SELECT id, table_name, record_id, action, old_values, new_values, actor, created_at
		FROM audit_log
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, table, recordID)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry

	for rows.Next() {
		var (
			e             audit.Entry
			action        string
			before, after []byte
		)

		if err := rows.Scan(&e.ID, &e.TableName, &e.RecordID, &action, &before, &after, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Action = audit.Action(action)

		if e.Before, err = audit.Decode(before); err != nil {
			return nil, err
		}

		if e.After, err = audit.Decode(after); err != nil {
			return nil, err
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return transaction.ErrNotFound
	}

	return nil
}

// classify turns a dangling category reference or a rejected amount into a
// validation failure.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolation:
			return &transaction.ValidationError{Field: "category_id", Reason: "references an unknown category"}
		case checkViolation:
			return &transaction.ValidationError{Field: "amount", Reason: "rejected by " + pgErr.ConstraintName}
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func tagsParam(tags []string) []string {
	if tags == nil {
		return []string{}
	}

	return tags
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonParam(b []byte) any {
	if b == nil {
		return nil
	}

	return string(b)
}
