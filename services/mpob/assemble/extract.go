package assemble

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// WriteCSV writes the fact table with a header line, natural key columns
// first.
func WriteCSV(w io.Writer, t FactTable) error {
	columns := t.Columns()
	cw := csv.NewWriter(w)
	err := cw.Write(columns)
	if err != nil {
		return err
	}
	line := make([]string, len(columns))
	for _, row := range t.Rows {
		for i, c := range columns {
			line[i] = row.FieldText(c)
		}
		err = cw.Write(line)
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the extract to path, creating parent directories.
func WriteCSVFile(path string, t FactTable) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = WriteCSV(f, t)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteXLSX writes the fact table to the first sheet of a new workbook.
// VALUE cells are written as numbers.
func WriteXLSX(path string, t FactTable) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	columns := t.Columns()
	for i, c := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		err = f.SetCellValue(sheet, cell, c)
		if err != nil {
			return err
		}
	}

	for r, row := range t.Rows {
		for i, c := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			var value any = row.FieldText(c)
			if c == ColValue && row.Value.Valid {
				value = row.Value.Decimal.InexactFloat64()
			}
			err = f.SetCellValue(sheet, cell, value)
			if err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}
