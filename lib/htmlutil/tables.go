package htmlutil

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type gridCell struct {
	text   string
	filled bool
}

// ReadTables lays every <table> of the document (in document order, nested
// tables included) out on a rectangular grid of cell text. colspan and
// rowspan are expanded by repeating the spanning cell's text into every
// slot it covers, so a merged header lines up with the columns under it.
func ReadTables(rawHtml string) ([][][]string, error) {
	doc, err := Parse(rawHtml)
	if err != nil {
		return nil, err
	}

	var tables [][][]string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		tables = append(tables, readGrid(table))
	})
	return tables, nil
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr(name, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func ownRows(table *goquery.Selection) *goquery.Selection {
	tableNode := table.Get(0)
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").Get(0) == tableNode
	})
}

func readGrid(table *goquery.Selection) [][]string {
	var grid [][]gridCell

	ensure := func(row, col int) {
		for len(grid) <= row {
			grid = append(grid, nil)
		}
		for len(grid[row]) <= col {
			grid[row] = append(grid[row], gridCell{})
		}
	}

	ownRows(table).Each(func(rowIdx int, tr *goquery.Selection) {
		ensure(rowIdx, 0)
		colIdx := 0
		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			// skip slots already taken by rowspans from above
			for colIdx < len(grid[rowIdx]) && grid[rowIdx][colIdx].filled {
				colIdx++
			}

			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			text := CleanText(GetText(cell.Get(0)))

			for r := 0; r < rowspan; r++ {
				for c := 0; c < colspan; c++ {
					ensure(rowIdx+r, colIdx+c)
					grid[rowIdx+r][colIdx+c] = gridCell{text: text, filled: true}
				}
			}
			colIdx += colspan
		})
	})

	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}

	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		if len(row) == 0 {
			continue
		}
		line := make([]string, width)
		for i, cell := range row {
			line[i] = cell.text
		}
		out = append(out, line)
	}
	return out
}
