// Package importer turns bank and ledger CSV files into transactions.
//
// Files are decoded to UTF-8, handed to each registered Parser in turn until
// one recognises the layout, and the resulting rows are written through the
// ledger as one atomic batch.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
)

// ErrUnrecognized is returned by a Parser that does not understand the file.
var ErrUnrecognized = errors.New("unrecognized file format")

// Row is one parsed line. Amounts are cents; exactly the side that moved is set.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Category    string // Optional category name carried by the file
	Credited    int64
	Debited     int64
	Tags        []string
	Notes       string
}

type Parser interface {
	Name() string
	Parse(r io.Reader) ([]Row, error)
}

//go:generate mockgen -source=importer.go -destination=deps_mock.go -package=importer
type Ledger interface {
	CreateBatch(ctx context.Context, params []transaction.CreateParams) ([]*transaction.Transaction, error)
}

type Categories interface {
	FindByName(ctx context.Context, name string) (*category.Category, error)
}

type Suggester interface {
	Suggest(ctx context.Context, description string) (uuid.UUID, bool, error)
}

type Options struct {
	// DefaultCategoryID is used for rows no name or rule resolves.
	DefaultCategoryID *uuid.UUID
	// DryRun parses and resolves without writing.
	DryRun bool
}

type Result struct {
	Format  string
	Params  []transaction.CreateParams
	Created []*transaction.Transaction
}

type Service struct {
	ledger     Ledger
	categories Categories
	rules      Suggester
	parsers    []Parser
}

func NewService(ledger Ledger, categories Categories, rules Suggester, parsers ...Parser) *Service {
	return &Service{
		ledger:     ledger,
		categories: categories,
		rules:      rules,
		parsers:    parsers,
	}
}

// Parse decodes r and returns the rows of the first parser that accepts it.
func (s *Service) Parse(r io.Reader) (string, []Row, error) {
	utf8r, err := NewUTF8Reader(r)
	if err != nil {
		return "", nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return "", nil, fmt.Errorf("read file: %w", err)
	}

	for _, p := range s.parsers {
		rows, err := p.Parse(bytes.NewReader(data))
		if errors.Is(err, ErrUnrecognized) {
			continue
		}

		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", p.Name(), err)
		}

		return p.Name(), rows, nil
	}

	return "", nil, ErrUnrecognized
}

// Import parses r, resolves a category for every row and creates all rows
// in a single ledger batch.
func (s *Service) Import(ctx context.Context, r io.Reader, opts Options) (*Result, error) {
	format, rows, err := s.Parse(r)
	if err != nil {
		return nil, err
	}

	params := make([]transaction.CreateParams, 0, len(rows))

	for _, row := range rows {
		categoryID, err := s.resolveCategory(ctx, row, opts.DefaultCategoryID)
		if err != nil {
			return nil, err
		}

		params = append(params, transaction.CreateParams{
			Date:        row.Date,
			CategoryID:  categoryID,
			Description: row.Description,
			Credited:    row.Credited,
			Debited:     row.Debited,
			Tags:        row.Tags,
			Notes:       row.Notes,
		})
	}

	result := &Result{Format: format, Params: params}

	if opts.DryRun || len(params) == 0 {
		return result, nil
	}

	created, err := s.ledger.CreateBatch(ctx, params)
	if err != nil {
		return nil, err
	}

	result.Created = created

	slog.InfoContext(ctx, "csv imported", "format", format, "count", len(created))

	return result, nil
}

// resolveCategory picks the file's category by name, then a learned rule,
// then the default.
func (s *Service) resolveCategory(ctx context.Context, row Row, fallback *uuid.UUID) (*uuid.UUID, error) {
	if row.Category != "" {
		c, err := s.categories.FindByName(ctx, row.Category)
		if err == nil {
			return &c.ID, nil
		}

		if !errors.Is(err, category.ErrNotFound) {
			return nil, fmt.Errorf("line %d: finding category: %w", row.Line, err)
		}
	}

	if s.rules != nil {
		id, ok, err := s.rules.Suggest(ctx, row.Description)
		if err != nil {
			return nil, fmt.Errorf("line %d: suggesting category: %w", row.Line, err)
		}

		if ok {
			return &id, nil
		}
	}

	if fallback != nil {
		return fallback, nil
	}

	return nil, &transaction.ValidationError{
		Field:  fmt.Sprintf("line %d category", row.Line),
		Reason: "no category matched and no default was given",
	}
}
