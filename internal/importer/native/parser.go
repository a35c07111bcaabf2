// Package native reads files written by the CSV export, so a ledger can be
// moved between instances or restored from a backup.
package native

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

var required = []string{"transaction_date", "description", "credited", "debited"}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Name() string {
	return "spendtrack"
}

// Parse expects UTF-8 input whose first record is an export header.
func (p *Parser) Parse(r io.Reader) ([]importer.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", importer.ErrUnrecognized, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", importer.ErrUnrecognized, name)
		}
	}

	var out []importer.Row

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		line, _ := reader.FieldPos(0)

		row, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row.Line = line
		out = append(out, row)
	}
}

func parseRecord(record []string, cols map[string]int) (importer.Row, error) {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	date, err := time.Parse(time.DateOnly, cell("transaction_date"))
	if err != nil {
		return importer.Row{}, fmt.Errorf("invalid transaction_date %q", cell("transaction_date"))
	}

	credited, err := amount(cell("credited"))
	if err != nil {
		return importer.Row{}, fmt.Errorf("credited: %w", err)
	}

	debited, err := amount(cell("debited"))
	if err != nil {
		return importer.Row{}, fmt.Errorf("debited: %w", err)
	}

	var tags []string
	if raw := cell("tags"); raw != "" {
		tags = strings.Split(raw, export.TagSeparator)
	}

	return importer.Row{
		Date:        date,
		Description: cell("description"),
		Category:    cell("category"),
		Credited:    credited,
		Debited:     debited,
		Tags:        tags,
		Notes:       cell("notes"),
	}, nil
}

func amount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	return money.Parse(s)
}
