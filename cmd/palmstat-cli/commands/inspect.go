package commands

import (
	"fmt"
	"os"

	"palmstat-backend/lib/scrapers/mpob"
	"palmstat-backend/lib/serviceutil"
	"palmstat-backend/services/mpob/assemble"
	"palmstat-backend/services/mpob/reshape"
	"palmstat-backend/services/mpob/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var inspectXlsx *string

func init() {
	inspectXlsx = inspectCmd.Flags().String("xlsx", "", "Writes the facts to this xlsx file instead of printing them.")
	rootCmd.AddCommand(inspectCmd)
}

func inspectPage(report scraper.Report, category, year, rawHtml string) (assemble.FactTable, error) {
	target, ok := scraper.Lookup(report, category)
	if !ok {
		return assemble.FactTable{}, fmt.Errorf("unknown %s category '%s', expected one of %v", report, category, scraper.Categories(report))
	}
	tables, err := reshape.ReadTables(rawHtml)
	if err != nil {
		return assemble.FactTable{}, err
	}
	return assemble.Assemble(target.Variant, assemble.Input{
		Tables:   tables,
		Category: category,
		Year:     year,
		Source:   scraper.SourceURL(mpob.DefaultBaseUrl, report),
		Supplier: "MPOB",
	})
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <report> <category> <year> <frame.html> [--xlsx <out.xlsx>]",
	Short: "Assembles a saved report frame offline and prints the resulting facts.",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		report, err := scraper.ParseReport(args[0])
		if err != nil {
			serviceutil.Fatal("invalid report", err)
		}
		contents, err := os.ReadFile(args[3])
		if err != nil {
			serviceutil.Fatal("failed to read frame", err)
		}
		facts, err := inspectPage(report, args[1], args[2], string(contents))
		if err != nil {
			serviceutil.Fatal("failed to assemble facts", err)
		}

		if *inspectXlsx != "" {
			err = assemble.WriteXLSX(*inspectXlsx, facts)
			if err != nil {
				serviceutil.Fatal("failed to write xlsx", err)
			}
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		header := table.Row{}
		columns := facts.Columns()
		for _, c := range columns {
			header = append(header, c)
		}
		t.AppendHeader(header)
		for _, row := range facts.Rows {
			r := make(table.Row, len(columns))
			for i, c := range columns {
				r[i] = row.FieldText(c)
			}
			t.AppendRow(r)
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
