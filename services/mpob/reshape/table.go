package reshape

import (
	"errors"
	"fmt"
	"strings"

	"palmstat-backend/lib/htmlutil"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedTable is returned when a table's header, marker row or
	// shape does not match what the report is expected to publish.
	ErrMalformedTable = errors.New("malformed table")
	// ErrMissingSourceTable is returned when a table the report depends on
	// is not present on the page.
	ErrMissingSourceTable = errors.New("missing source table")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedTable, fmt.Sprintf(format, args...))
}

// Cell is a single table cell. Value is resolved once when the cell is read:
// it is valid only when Text holds a number (thousands separators allowed).
type Cell struct {
	Text  string
	Value decimal.NullDecimal
}

func ParseCell(text string) Cell {
	text = strings.TrimSpace(text)
	cleaned := strings.ReplaceAll(text, ",", "")
	if cleaned == "" {
		return Cell{Text: text}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Cell{Text: text}
	}
	return Cell{Text: text, Value: decimal.NullDecimal{Decimal: d, Valid: true}}
}

func NumberCell(d decimal.Decimal) Cell {
	return Cell{Text: d.String(), Value: decimal.NullDecimal{Decimal: d, Valid: true}}
}

func (c Cell) Blank() bool {
	return c.Text == ""
}

func (c Cell) Missing() bool {
	return !c.Value.Valid
}

// RawTable is a header row plus data rows. Every row has len(Header) cells.
type RawTable struct {
	Header []string
	Rows   [][]Cell
}

// NewRawTable takes the first grid row as the header, every following row
// becomes a data row.
func NewRawTable(grid [][]string) (RawTable, error) {
	if len(grid) == 0 {
		return RawTable{}, malformed("table has no rows")
	}

	header := make([]string, len(grid[0]))
	copy(header, grid[0])

	rows := make([][]Cell, 0, len(grid)-1)
	for i, line := range grid[1:] {
		if len(line) != len(header) {
			return RawTable{}, malformed("row %d has %d cells, header has %d", i, len(line), len(header))
		}
		row := make([]Cell, len(line))
		for j, text := range line {
			row[j] = ParseCell(text)
		}
		rows = append(rows, row)
	}

	return RawTable{Header: header, Rows: rows}, nil
}

// ReadTables parses every table of a page in document order. Tables that
// cannot be read are kept as empty tables so positions stay stable.
func ReadTables(rawHtml string) ([]RawTable, error) {
	grids, err := htmlutil.ReadTables(rawHtml)
	if err != nil {
		return nil, err
	}
	tables := make([]RawTable, len(grids))
	for i, grid := range grids {
		table, err := NewRawTable(grid)
		if err != nil {
			continue
		}
		tables[i] = table
	}
	return tables, nil
}

func (t RawTable) Width() int {
	return len(t.Header)
}

func (t RawTable) Empty() bool {
	return len(t.Header) == 0
}

// ColumnIndex returns the index of the column labelled name (case
// insensitive), or -1.
func (t RawTable) ColumnIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func (t RawTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

func (t RawTable) Validate() error {
	if t.Empty() {
		return malformed("table has no header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return malformed("row %d has %d cells, header has %d", i, len(row), len(t.Header))
		}
	}
	return nil
}

// TrimTrailing drops the last n columns (running totals, shares of total).
func (t RawTable) TrimTrailing(n int) (RawTable, error) {
	if n == 0 {
		return t, nil
	}
	if n < 0 || n >= t.Width() {
		return RawTable{}, malformed("cannot trim %d trailing columns from a %d column table", n, t.Width())
	}
	width := t.Width() - n

	out := RawTable{
		Header: append([]string(nil), t.Header[:width]...),
		Rows:   make([][]Cell, len(t.Rows)),
	}
	for i, row := range t.Rows {
		if len(row) < width {
			return RawTable{}, malformed("row %d has %d cells, need at least %d", i, len(row), width)
		}
		out.Rows[i] = append([]Cell(nil), row[:width]...)
	}
	return out, nil
}

// DropColumn removes column idx from the header and every row.
func (t RawTable) DropColumn(idx int) RawTable {
	out := RawTable{
		Header: make([]string, 0, t.Width()-1),
		Rows:   make([][]Cell, len(t.Rows)),
	}
	out.Header = append(out.Header, t.Header[:idx]...)
	out.Header = append(out.Header, t.Header[idx+1:]...)
	for i, row := range t.Rows {
		next := make([]Cell, 0, len(row)-1)
		next = append(next, row[:idx]...)
		next = append(next, row[idx+1:]...)
		out.Rows[i] = next
	}
	return out
}

// Filter keeps the rows for which keep returns true.
func (t RawTable) Filter(keep func(row []Cell) bool) RawTable {
	out := RawTable{Header: t.Header}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
