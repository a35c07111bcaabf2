package cgd

import (
	"fmt"
	"strings"

	"github.com/MrJamesThe3rd/spendtrack/internal/money"
)

// layout names the header cells of one CGD export. A layout either carries
// a single signed amount column or a debit/credit pair.
type layout struct {
	name   string
	date   string
	desc   string
	signed string
	debit  string
	credit string
}

// Tried in order against every record until one matches.
var layouts = []layout{
	{name: "cartão", date: "Data", desc: "Descrição", debit: "Débito", credit: "Crédito"},
	{name: "extrato", date: "Data mov.", desc: "Descrição", signed: "Movimento"},
	{name: "conta", date: "Data mov.", desc: "Descrição", signed: "Montante"},
}

func (l layout) headers() []string {
	if l.signed != "" {
		return []string{l.date, l.desc, l.signed}
	}

	return []string{l.date, l.desc, l.debit, l.credit}
}

// binding is a layout resolved against the positions of a header record.
type binding struct {
	layout
	pos map[string]int
}

// bind returns the first layout whose headers all appear in record.
func bind(record []string) (*binding, bool) {
	pos := make(map[string]int, len(record))

	for i, cell := range record {
		if name := strings.TrimSpace(cell); name != "" {
			pos[name] = i
		}
	}

next:
	for _, l := range layouts {
		for _, h := range l.headers() {
			if _, ok := pos[h]; !ok {
				continue next
			}
		}

		return &binding{layout: l, pos: pos}, true
	}

	return nil, false
}

func (b *binding) cell(record []string, header string) string {
	i, ok := b.pos[header]
	if !ok || i >= len(record) {
		return ""
	}

	return strings.TrimSpace(record[i])
}

// amounts reports the credited and debited cents of a record. ok is false
// when the record moves no money. A split record with both sides filled is
// read as a debit.
func (b *binding) amounts(record []string) (credited, debited int64, ok bool, err error) {
	if b.signed != "" {
		n, err := b.cents(record, b.signed)
		if err != nil {
			return 0, 0, false, err
		}

		switch {
		case n > 0:
			return n, 0, true, nil
		case n < 0:
			return 0, -n, true, nil
		}

		return 0, 0, false, nil
	}

	d, err := b.cents(record, b.debit)
	if err != nil {
		return 0, 0, false, err
	}

	if d != 0 {
		return 0, magnitude(d), true, nil
	}

	c, err := b.cents(record, b.credit)
	if err != nil {
		return 0, 0, false, err
	}

	if c != 0 {
		return magnitude(c), 0, true, nil
	}

	return 0, 0, false, nil
}

// cents reads the European amount under header. A blank cell is zero.
func (b *binding) cents(record []string, header string) (int64, error) {
	s := b.cell(record, header)
	if s == "" {
		return 0, nil
	}

	n, err := money.ParseEuropean(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", header, s, err)
	}

	return n, nil
}

func magnitude(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}
