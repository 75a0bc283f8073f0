package assemble

import (
	"fmt"
	"strings"

	"palmstat-backend/services/mpob/reshape"
)

const mixture = "MIXTURE"

type summaryContext struct {
	category string
	unit     string
}

type summaryRow int

const (
	dataRow summaryRow = iota
	sectionRow
	labelOnlyRow
)

// classifySummaryRow tells section rows, such as "PRODUCTION (TONNES)", from
// data rows and returns the section's category and unit. A section row has
// equal first cells (or a blank second one) and no values. One that repeats
// its title without a "(unit)" cannot be attributed and fails the table. A
// label with a blank second cell and no unit carries no facts.
func classifySummaryRow(row []reshape.Cell) (summaryContext, summaryRow, error) {
	if len(row) < 2 {
		return summaryContext{}, dataRow, nil
	}
	first := strings.TrimSpace(row[0].Text)
	second := strings.TrimSpace(row[1].Text)
	if second != "" && second != first {
		return summaryContext{}, dataRow, nil
	}
	for _, c := range row[1:] {
		if !c.Missing() {
			return summaryContext{}, dataRow, nil
		}
	}

	open := strings.Index(first, "(")
	end := strings.LastIndex(first, ")")
	if open < 0 || end < open {
		if second == "" {
			return summaryContext{}, labelOnlyRow, nil
		}
		return summaryContext{}, dataRow, fmt.Errorf("%w: section row '%s' has no unit", reshape.ErrMalformedTable, first)
	}
	return summaryContext{
		category: strings.TrimSpace(first[:open]),
		unit:     strings.TrimSpace(first[open+1 : end]),
	}, sectionRow, nil
}

// summary walks the industry summary table top to bottom. Category and unit
// are not columns: section rows set them and every data row below inherits
// them until the next section row.
func summary(in Input) ([]FactRow, error) {
	t, err := tableAt(in, 0)
	if err != nil {
		return nil, err
	}
	t, err = reshape.NormalizeHeader(t, reshape.HeaderOptions{Rename: mixture, Year: in.Year})
	if err != nil {
		return nil, err
	}

	var (
		current  *summaryContext
		contexts []summaryContext
	)
	data := reshape.RawTable{Header: t.Header}
	for _, row := range t.Rows {
		if allBlank(row) {
			continue
		}
		ctx, kind, err := classifySummaryRow(row)
		if err != nil {
			return nil, err
		}
		switch kind {
		case sectionRow:
			current = &ctx
			continue
		case labelOnlyRow:
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("%w: row '%s' appears before any category row", reshape.ErrMalformedTable, row[0].Text)
		}
		data.Rows = append(data.Rows, row)
		contexts = append(contexts, *current)
	}

	long, err := reshape.WideToLong(data, mixture)
	if err != nil {
		return nil, err
	}

	// WideToLong emits Width()-1 rows per source row, in row order
	perRow := data.Width() - 1
	out := make([]FactRow, 0, len(long))
	for i, lr := range long {
		ctx := contexts[i/perRow]
		date, err := periodDate(lr.Period)
		if err != nil {
			return nil, err
		}
		out = append(out, FactRow{
			DataDate: date,
			Dims: map[string]string{
				ColCategory: ctx.category,
				ColProduct:  strings.TrimSpace(lr.Dimension),
			},
			Value: lr.Value.Value,
			Unit:  ctx.unit,
		})
	}
	return out, nil
}
