package assemble

import (
	"fmt"
	"strings"

	"palmstat-backend/services/mpob/reshape"
)

// Variant selects how the tables of a report page are combined.
type Variant int

const (
	Destinations Variant = iota
	Products
	Ports
	State
	Refinery
	Region
	Summary
)

var variantNames = map[Variant]string{
	Destinations: "destinations",
	Products:     "products",
	Ports:        "ports",
	State:        "state",
	Refinery:     "refinery",
	Region:       "region",
	Summary:      "summary",
}

func (v Variant) String() string {
	name, ok := variantNames[v]
	if !ok {
		return fmt.Sprintf("variant(%d)", int(v))
	}
	return name
}

func ParseVariant(name string) (Variant, error) {
	for v, n := range variantNames {
		if strings.EqualFold(n, name) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown assembler variant '%s'", name)
}

// Key returns the natural key columns of the variant's fact table.
func (v Variant) Key() []string {
	switch v {
	case Destinations:
		return []string{ColDataDate, ColRegion, ColCountry}
	case Products:
		return []string{ColDataDate, ColProduct, ColUnit}
	case Ports:
		return []string{ColDataDate, ColPort}
	case State:
		return []string{ColDataDate, ColProduct, ColState}
	case Refinery:
		return []string{ColDataDate, ColProduct}
	case Region:
		return []string{ColDataDate, ColProduct, ColRegion}
	case Summary:
		return []string{ColDataDate, ColCategory, ColProduct}
	}
	return nil
}

// Input is everything one page contributes to an assembly.
type Input struct {
	// Tables are the page's tables in document order.
	Tables   []reshape.RawTable
	Category string
	Year     string
	Source   string
	Supplier string
}

const unitTonnes = "TONNES"

var regions = map[string]bool{
	"PENINSULAR": true,
	"SABAH":      true,
	"SARAWAK":    true,
}

// Assemble turns the tables of one report page into a keyed fact table.
// Rows without a value are dropped and duplicate keys collapse to the last
// row seen.
func Assemble(v Variant, in Input) (FactTable, error) {
	var (
		rows []FactRow
		err  error
	)
	switch v {
	case Destinations:
		rows, err = destinations(in)
	case Products:
		rows, err = products(in)
	case Ports:
		rows, err = ports(in)
	case State:
		rows, err = state(in)
	case Refinery:
		rows, err = refinery(in)
	case Region:
		rows, err = region(in)
	case Summary:
		rows, err = summary(in)
	default:
		return FactTable{}, fmt.Errorf("unknown assembler variant %d", int(v))
	}
	if err != nil {
		return FactTable{}, err
	}

	rows = DropMissing(rows)
	for i := range rows {
		rows[i].Source = in.Source
		rows[i].Supplier = in.Supplier
	}
	return FactTable{Key: v.Key(), Rows: rows}.dedupe(), nil
}

func tableAt(in Input, idx int) (reshape.RawTable, error) {
	if idx >= len(in.Tables) || in.Tables[idx].Empty() {
		return reshape.RawTable{}, fmt.Errorf("%w: table %d of %d", reshape.ErrMissingSourceTable, idx, len(in.Tables))
	}
	return in.Tables[idx], nil
}

// tablesWith returns the tables that have a column labelled dimension.
func tablesWith(in Input, dimension string, want int) ([]reshape.RawTable, error) {
	var out []reshape.RawTable
	for _, t := range in.Tables {
		if t.HasColumn(dimension) {
			out = append(out, t)
		}
	}
	if len(out) < want {
		return nil, fmt.Errorf("%w: want %d tables with a '%s' column, found %d", reshape.ErrMissingSourceTable, want, dimension, len(out))
	}
	return out[:want], nil
}

// longForm trims, normalizes and transposes one wide table.
func longForm(t reshape.RawTable, trim int, opts reshape.HeaderOptions) ([]reshape.LongRow, error) {
	t, err := t.TrimTrailing(trim)
	if err != nil {
		return nil, err
	}
	t, err = reshape.NormalizeHeader(t, opts)
	if err != nil {
		return nil, err
	}
	return reshape.WideToLong(t, dimensionLabel(opts))
}

func dimensionLabel(opts reshape.HeaderOptions) string {
	if opts.Rename != "" {
		return opts.Rename
	}
	return opts.Dimension
}

// facts builds a FactRow for every long row, dims derives the dimension
// fields from the row's dimension value.
func facts(long []reshape.LongRow, unit string, dims func(value string) map[string]string) ([]FactRow, error) {
	out := make([]FactRow, 0, len(long))
	for _, lr := range long {
		date, err := periodDate(lr.Period)
		if err != nil {
			return nil, err
		}
		out = append(out, FactRow{
			DataDate: date,
			Dims:     dims(lr.Dimension),
			Value:    lr.Value.Value,
			Unit:     unit,
		})
	}
	return out, nil
}

func destinations(in Input) ([]FactRow, error) {
	var out []FactRow
	for i, regionName := range []string{"GLOBAL", "EU Country"} {
		t, err := tableAt(in, i)
		if err != nil {
			return nil, err
		}
		long, err := longForm(t, 2, reshape.HeaderOptions{Dimension: ColCountry, Year: in.Year})
		if err != nil {
			return nil, err
		}
		rows, err := facts(long, unitTonnes, func(value string) map[string]string {
			return map[string]string{ColCountry: value, ColRegion: regionName}
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func allBlank(row []reshape.Cell) bool {
	for _, c := range row {
		if !c.Blank() {
			return false
		}
	}
	return true
}

// groupHeading matches rows like "PALM OIL" that only name a group of the
// products below them: no unit and no values.
func groupHeading(row []reshape.Cell, unitIdx int) bool {
	if strings.TrimSpace(row[unitIdx].Text) != "" {
		return false
	}
	for i, c := range row {
		if i > 0 && !c.Missing() {
			return false
		}
	}
	return true
}

// products splits the table on its UNIT column and transposes each half
// on its own.
func products(in Input) ([]FactRow, error) {
	t, err := tableAt(in, 0)
	if err != nil {
		return nil, err
	}
	t, err = t.TrimTrailing(1)
	if err != nil {
		return nil, err
	}
	unitIdx := t.ColumnIndex(ColUnit)
	if unitIdx < 0 {
		return nil, fmt.Errorf("%w: no UNIT column in %v", reshape.ErrMalformedTable, t.Header)
	}

	units := []string{"TONNES", "RM MIL"}
	split := map[string]reshape.RawTable{}
	for _, row := range t.Rows {
		if allBlank(row) || groupHeading(row, unitIdx) {
			continue
		}
		var unit string
		switch label := strings.TrimSpace(row[unitIdx].Text); {
		case strings.EqualFold(label, "Tonnes"):
			unit = units[0]
		case strings.EqualFold(label, "RM Mil"):
			unit = units[1]
		default:
			return nil, fmt.Errorf("%w: unexpected unit '%s'", reshape.ErrMalformedTable, label)
		}
		part := split[unit]
		part.Header = t.Header
		part.Rows = append(part.Rows, row)
		split[unit] = part
	}

	var out []FactRow
	for _, unit := range units {
		part, ok := split[unit]
		if !ok {
			continue
		}
		long, err := longForm(part.DropColumn(unitIdx), 0, reshape.HeaderOptions{Dimension: ColProduct, Year: in.Year})
		if err != nil {
			return nil, err
		}
		rows, err := facts(long, unit, func(value string) map[string]string {
			return map[string]string{ColProduct: value}
		})
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func ports(in Input) ([]FactRow, error) {
	t, err := tableAt(in, 0)
	if err != nil {
		return nil, err
	}
	long, err := longForm(t, 1, reshape.HeaderOptions{Dimension: ColPort, Year: in.Year})
	if err != nil {
		return nil, err
	}
	return facts(long, unitTonnes, func(value string) map[string]string {
		return map[string]string{ColPort: value}
	})
}

// halfYears joins the two half-year tables of a production or stock page
// on their dimension column. The join happens before transposing, each
// table contributes its own block of months.
func halfYears(in Input, dimension string) (reshape.RawTable, error) {
	tables, err := tablesWith(in, dimension, 2)
	if err != nil {
		return reshape.RawTable{}, err
	}

	normalized := make([]reshape.RawTable, len(tables))
	for i, t := range tables {
		t, err = t.TrimTrailing(2)
		if err != nil {
			return reshape.RawTable{}, err
		}
		normalized[i], err = reshape.NormalizeHeader(t, reshape.HeaderOptions{
			Dimension:     dimension,
			Year:          in.Year,
			RequireMarker: true,
		})
		if err != nil {
			return reshape.RawTable{}, err
		}
	}
	return outerJoin(normalized[0], normalized[1], dimension)
}

func state(in Input) ([]FactRow, error) {
	t, err := halfYears(in, "States")
	if err != nil {
		return nil, err
	}
	long, err := reshape.WideToLong(t, "States")
	if err != nil {
		return nil, err
	}
	return facts(long, unitTonnes, func(value string) map[string]string {
		return map[string]string{ColState: value, ColProduct: in.Category}
	})
}

func refinery(in Input) ([]FactRow, error) {
	t, err := halfYears(in, "Products")
	if err != nil {
		return nil, err
	}
	long, err := reshape.WideToLong(t, "Products")
	if err != nil {
		return nil, err
	}
	return facts(long, unitTonnes, func(value string) map[string]string {
		return map[string]string{ColProduct: value}
	})
}

// region derives REGION and PRODUCT from the mixed "Products" column: the
// regional rows hold crude palm oil stock, every other row is a Malaysia
// wide product.
func region(in Input) ([]FactRow, error) {
	t, err := halfYears(in, "Products")
	if err != nil {
		return nil, err
	}
	// spacer rows repeat their label across the row
	t = t.Filter(func(row []reshape.Cell) bool {
		return len(row) < 2 || row[0].Text != row[1].Text
	})
	long, err := reshape.WideToLong(t, "Products")
	if err != nil {
		return nil, err
	}
	return facts(long, unitTonnes, func(value string) map[string]string {
		name := strings.TrimSpace(value)
		if regions[strings.ToUpper(name)] {
			return map[string]string{ColRegion: strings.ToUpper(name), ColProduct: "CRUDE PALM OIL"}
		}
		return map[string]string{ColRegion: "MALAYSIA", ColProduct: name}
	})
}
