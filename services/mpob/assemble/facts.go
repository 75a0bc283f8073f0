package assemble

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"palmstat-backend/lib/timezone"
	"palmstat-backend/services/mpob/reshape"

	"github.com/shopspring/decimal"
)

const (
	ColDataDate = "DATADATE"
	ColValue    = "VALUE"
	ColUnit     = "UNIT"
	ColSource   = "SOURCE"
	ColSupplier = "SUPPLIER"

	ColRegion   = "REGION"
	ColCountry  = "COUNTRY"
	ColProduct  = "PRODUCT"
	ColPort     = "PORT"
	ColState    = "STATE"
	ColCategory = "CATEGORY"
)

// FactRow is one monthly measurement. Dims holds the report specific
// dimension fields (REGION, COUNTRY, PRODUCT, PORT, STATE, CATEGORY).
type FactRow struct {
	DataDate time.Time
	Dims     map[string]string
	Value    decimal.NullDecimal
	Unit     string
	Source   string
	Supplier string
}

// Field returns the value stored under a column name.
func (r FactRow) Field(name string) any {
	switch name {
	case ColDataDate:
		return r.DataDate
	case ColValue:
		return r.Value
	case ColUnit:
		return r.Unit
	case ColSource:
		return r.Source
	case ColSupplier:
		return r.Supplier
	}
	return r.Dims[name]
}

// FieldText is Field formatted for text outputs (CSV, XLSX, terminal).
func (r FactRow) FieldText(name string) string {
	switch v := r.Field(name).(type) {
	case time.Time:
		return v.Format(time.DateOnly)
	case decimal.NullDecimal:
		if !v.Valid {
			return ""
		}
		return v.Decimal.String()
	case string:
		return v
	}
	return ""
}

// FactTable is the output of one report/category/year assembly. Key lists
// the natural key columns, DATADATE first; no two rows share a key.
type FactTable struct {
	Key  []string
	Rows []FactRow
}

func (t FactTable) IsKey(column string) bool {
	for _, k := range t.Key {
		if k == column {
			return true
		}
	}
	return false
}

// Columns lists the key columns followed by the remaining dimensions, the
// measure and the metadata columns.
func (t FactTable) Columns() []string {
	columns := append([]string(nil), t.Key...)

	extra := map[string]struct{}{}
	for _, row := range t.Rows {
		for name := range row.Dims {
			if !t.IsKey(name) {
				extra[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	columns = append(columns, names...)

	columns = append(columns, ColValue)
	if !t.IsKey(ColUnit) {
		columns = append(columns, ColUnit)
	}
	return append(columns, ColSource, ColSupplier)
}

// Records returns the rows as column -> value maps, the shape taken by the
// upsert sink.
func (t FactTable) Records() []map[string]any {
	columns := t.Columns()
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		record := make(map[string]any, len(columns))
		for _, c := range columns {
			record[c] = row.Field(c)
		}
		out[i] = record
	}
	return out
}

// DropMissing removes rows without a measured value.
func DropMissing(rows []FactRow) []FactRow {
	out := make([]FactRow, 0, len(rows))
	for _, row := range rows {
		if row.Value.Valid {
			out = append(out, row)
		}
	}
	return out
}

func (t FactTable) keyOf(row FactRow) string {
	parts := make([]string, len(t.Key))
	for i, k := range t.Key {
		parts[i] = row.FieldText(k)
	}
	return strings.Join(parts, "\x1f")
}

// dedupe keeps one row per natural key. The last row for a key wins and
// takes the position of the first.
func (t FactTable) dedupe() FactTable {
	index := make(map[string]int, len(t.Rows))
	out := make([]FactRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		key := t.keyOf(row)
		if i, ok := index[key]; ok {
			out[i] = row
			continue
		}
		index[key] = len(out)
		out = append(out, row)
	}
	return FactTable{Key: t.Key, Rows: out}
}

// periodDate turns a normalized "YYYY-MM" period label into the first of
// that month.
func periodDate(label string) (time.Time, error) {
	date, err := time.Parse("2006-01", strings.TrimSpace(label))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: period '%s' is not a calendar month", reshape.ErrMalformedTable, label)
	}
	return timezone.StartOfMonth(date.Year(), date.Month()), nil
}
