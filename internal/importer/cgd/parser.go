package cgd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
)

const dateLayout = "02-01-2006"

// Parser reads Caixa Geral de Depósitos CSV exports (account movements,
// statements and card movements). Everything above the column header is
// account preamble and is ignored.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Name() string {
	return "cgd"
}

// Parse expects UTF-8 input; see importer.NewUTF8Reader.
func (p *Parser) Parse(r io.Reader) ([]importer.Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		b    *binding
		rows []importer.Row
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", importer.ErrUnrecognized, err)
		}

		if b == nil {
			b, _ = bind(record)
			continue
		}

		line, _ := reader.FieldPos(0)

		row, ok, err := b.row(record, line)
		if err != nil {
			return nil, err
		}

		if ok {
			rows = append(rows, row)
		}
	}

	if b == nil {
		return nil, fmt.Errorf("%w: no CGD column header found", importer.ErrUnrecognized)
	}

	return rows, nil
}

// row converts a data record. Records without a date or without a non-zero
// amount are totals, page markers or blank lines and are dropped. An amount
// that does not parse fails the whole file.
func (b *binding) row(record []string, line int) (importer.Row, bool, error) {
	date, err := time.Parse(dateLayout, b.cell(record, b.date))
	if err != nil {
		return importer.Row{}, false, nil
	}

	desc := b.cell(record, b.desc)
	if desc == "" {
		return importer.Row{}, false, fmt.Errorf("line %d: missing description", line)
	}

	credited, debited, ok, err := b.amounts(record)
	if err != nil {
		return importer.Row{}, false, fmt.Errorf("line %d: %w", line, err)
	}

	if !ok {
		return importer.Row{}, false, nil
	}

	return importer.Row{
		Line:        line,
		Date:        date,
		Description: desc,
		Credited:    credited,
		Debited:     debited,
	}, true, nil
}
