package reshape

import (
	"fmt"
	"regexp"
	"strings"
)

// index 0 is the "no month" sentinel, 1-12 are January to December.
var months = [13]string{
	"NULL",
	"JAN", "FEB", "MAR", "APR", "MAY", "JUN",
	"JUL", "AUG", "SEP", "OCT", "NOV", "DEC",
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		return string(r)
	}
	return string(r[:n])
}

// MonthIndex decodes a period column label by its first three characters,
// "Jan", "JANUARY" and "jan 23" all decode to 1.
func MonthIndex(label string) (int, error) {
	prefix := strings.ToUpper(firstRunes(strings.TrimSpace(label), 3))
	if len([]rune(prefix)) < 3 {
		return 0, malformed("period label '%s' is too short to name a month", label)
	}
	for i, m := range months {
		if firstRunes(m, 3) == prefix {
			return i, nil
		}
	}
	return 0, malformed("unknown month abbreviation in '%s'", label)
}

func MonthAbbrev(index int) (string, error) {
	if index < 0 || index >= len(months) {
		return "", malformed("month index %d out of range", index)
	}
	return months[index], nil
}

var yearPattern = regexp.MustCompile(`\d{2,4}`)

func normalizeYear(year string) string {
	year = strings.TrimSpace(year)
	if len(year) == 2 && yearPattern.MatchString(year) {
		return "20" + year
	}
	return year
}

func markerYear(c Cell) string {
	if c.Value.Valid && c.Value.Decimal.IsInteger() {
		return normalizeYear(c.Value.Decimal.String())
	}
	return normalizeYear(c.Text)
}

// labelYear finds a year written into the label itself ("Jan 23", "Feb-2024").
func labelYear(label string) string {
	match := yearPattern.FindString(label)
	if match == "" {
		return ""
	}
	return normalizeYear(match)
}

func PeriodLabel(year string, month int) string {
	return fmt.Sprintf("%s-%02d", year, month)
}

type HeaderOptions struct {
	// Dimension is the header label of the dimension column. When empty the
	// first column is the dimension column.
	Dimension string
	// Rename replaces the dimension column's label in the output.
	Rename string
	// Year is the report's nominal year, used when neither a marker row nor
	// the label itself names the year.
	Year string
	// RequireMarker fails the table when no marker row is present.
	RequireMarker bool
}

// NormalizeHeader replaces every period column label with "<year>-<month>"
// and removes the marker rows: rows whose dimension cell repeats the
// dimension label and whose other cells hold the year of each column.
//
// A column's year comes from its marker cell, else from a year written in
// the label, else from opts.Year.
func NormalizeHeader(t RawTable, opts HeaderOptions) (RawTable, error) {
	err := t.Validate()
	if err != nil {
		return RawTable{}, err
	}

	dimIdx := 0
	if opts.Dimension != "" {
		dimIdx = t.ColumnIndex(opts.Dimension)
		if dimIdx < 0 {
			return RawTable{}, malformed("dimension column '%s' not found in %v", opts.Dimension, t.Header)
		}
	}
	dimLabel := strings.TrimSpace(t.Header[dimIdx])

	var marker []Cell
	out := RawTable{}
	for _, row := range t.Rows {
		if dimLabel != "" && strings.EqualFold(row[dimIdx].Text, dimLabel) {
			if marker == nil {
				marker = row
			}
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	if marker == nil && opts.RequireMarker {
		return RawTable{}, malformed("marker row '%s' not found", dimLabel)
	}

	out.Header = make([]string, t.Width())
	for i, label := range t.Header {
		if i == dimIdx {
			out.Header[i] = dimLabel
			if opts.Rename != "" {
				out.Header[i] = opts.Rename
			}
			continue
		}

		month, err := MonthIndex(label)
		if err != nil {
			return RawTable{}, err
		}

		year := ""
		if marker != nil {
			year = markerYear(marker[i])
		}
		if year == "" {
			year = labelYear(label)
		}
		if year == "" {
			year = normalizeYear(opts.Year)
		}
		if year == "" {
			return RawTable{}, malformed("no year for column '%s'", label)
		}

		out.Header[i] = PeriodLabel(year, month)
	}

	return out, nil
}
