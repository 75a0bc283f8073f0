package reshape

// LongRow is one (dimension value, period) cell of a wide table.
type LongRow struct {
	Dimension string
	Period    string
	Value     Cell
}

// WideToLong emits one LongRow per (row, period column) pair in row-major
// order. Missing values are kept, filtering is left to the caller.
func WideToLong(t RawTable, dimension string) ([]LongRow, error) {
	err := t.Validate()
	if err != nil {
		return nil, err
	}
	dimIdx := t.ColumnIndex(dimension)
	if dimIdx < 0 {
		return nil, malformed("dimension column '%s' not found in %v", dimension, t.Header)
	}

	out := make([]LongRow, 0, len(t.Rows)*(t.Width()-1))
	for _, row := range t.Rows {
		dimValue := row[dimIdx].Text
		for i, cell := range row {
			if i == dimIdx {
				continue
			}
			out = append(out, LongRow{
				Dimension: dimValue,
				Period:    t.Header[i],
				Value:     cell,
			})
		}
	}
	return out, nil
}
