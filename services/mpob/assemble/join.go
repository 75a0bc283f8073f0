package assemble

import (
	"fmt"

	"palmstat-backend/services/mpob/reshape"
)

// outerJoin places the period columns of right next to those of left,
// matching rows on the dimension column. The i-th occurrence of a dimension
// value in left pairs with the i-th occurrence in right; rows without a
// partner keep blank cells for the other side.
func outerJoin(left, right reshape.RawTable, dimension string) (reshape.RawTable, error) {
	li := left.ColumnIndex(dimension)
	ri := right.ColumnIndex(dimension)
	if li < 0 || ri < 0 {
		return reshape.RawTable{}, fmt.Errorf("%w: join column '%s' missing", reshape.ErrMalformedTable, dimension)
	}

	header := append([]string(nil), left.Header...)
	seen := map[string]bool{}
	for _, h := range left.Header {
		seen[h] = true
	}
	for i, h := range right.Header {
		if i == ri {
			continue
		}
		if seen[h] {
			return reshape.RawTable{}, fmt.Errorf("%w: column '%s' appears in both joined tables", reshape.ErrMalformedTable, h)
		}
		seen[h] = true
		header = append(header, h)
	}

	rightRest := func(row []reshape.Cell) []reshape.Cell {
		out := make([]reshape.Cell, 0, len(row)-1)
		out = append(out, row[:ri]...)
		return append(out, row[ri+1:]...)
	}
	blank := func(n int) []reshape.Cell {
		return make([]reshape.Cell, n)
	}

	occurrences := map[string][]int{}
	for i, row := range right.Rows {
		key := row[ri].Text
		occurrences[key] = append(occurrences[key], i)
	}
	used := make([]bool, len(right.Rows))
	taken := map[string]int{}

	out := reshape.RawTable{Header: header}
	for _, row := range left.Rows {
		key := row[li].Text
		joined := append([]reshape.Cell(nil), row...)

		n := taken[key]
		taken[key] = n + 1
		if n < len(occurrences[key]) {
			match := occurrences[key][n]
			used[match] = true
			joined = append(joined, rightRest(right.Rows[match])...)
		} else {
			joined = append(joined, blank(right.Width()-1)...)
		}
		out.Rows = append(out.Rows, joined)
	}

	for i, row := range right.Rows {
		if used[i] {
			continue
		}
		joined := blank(left.Width())
		joined[li] = row[ri]
		joined = append(joined, rightRest(row)...)
		out.Rows = append(out.Rows, joined)
	}

	if len(out.Rows) == 0 {
		return reshape.RawTable{}, fmt.Errorf("%w: join on '%s' produced no rows", reshape.ErrMissingSourceTable, dimension)
	}
	return out, nil
}
