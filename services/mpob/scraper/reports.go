package scraper

import (
	"fmt"
	"strings"
	"unicode"

	"palmstat-backend/lib/textutil"
	"palmstat-backend/services/mpob/assemble"
	"palmstat-backend/services/mpob/db"
)

// Report is one of the portal's statistics sections.
type Report int

const (
	Export Report = iota
	Production
	Stock
	Summary
)

var reportNames = []string{"export", "production", "stock", "summary"}

func (r Report) String() string {
	if int(r) < 0 || int(r) >= len(reportNames) {
		return fmt.Sprintf("report(%d)", int(r))
	}
	return reportNames[r]
}

func ParseReport(name string) (Report, error) {
	for i, n := range reportNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Report(i), nil
		}
	}
	return 0, fmt.Errorf("unknown report '%s', expected one of %v", name, reportNames)
}

func AllReports() []Report {
	return []Report{Export, Production, Stock, Summary}
}

// Category is a report sub-page and where its facts go.
type Category struct {
	Variant assemble.Variant
	Table   string
}

type reportSpec struct {
	path     string
	login    bool
	selector string
	// title turns a listing entry into (category, year).
	title      func(title string) (string, string, bool)
	categories map[string]Category
}

const (
	listingSelector = "ul.mod-articlescategory.category-module.mod-list > li > ul > li > a"
	summarySelector = "#ca-1529739248826 main ul li ul li a"
	summaryTitle    = "Summary Of The Malaysian Palm Oil Industry"
)

var specs = map[Report]reportSpec{
	Export: {
		path:     "/index.php/export",
		login:    true,
		selector: listingSelector,
		title:    exportTitle,
		categories: map[string]Category{
			"Destinations": {Variant: assemble.Destinations, Table: db.TableExportDest},
			"Products":     {Variant: assemble.Products, Table: db.TableExportProduct},
			"Ports":        {Variant: assemble.Ports, Table: db.TableExportPort},
		},
	},
	Production: {
		path:     "/index.php/production",
		login:    true,
		selector: listingSelector,
		title:    productionTitle,
		categories: map[string]Category{
			"Crude Palm Oil":              {Variant: assemble.State, Table: db.TableProdState},
			"Palm Kernel":                 {Variant: assemble.State, Table: db.TableProdState},
			"Crude Palm Kernel Oil":       {Variant: assemble.State, Table: db.TableProdState},
			"Palm Kernel Cake":            {Variant: assemble.State, Table: db.TableProdState},
			"Selected Processed Palm Oil": {Variant: assemble.Refinery, Table: db.TableProdRefinery},
		},
	},
	Stock: {
		path:     "/index.php/stock",
		login:    true,
		selector: listingSelector,
		title:    stockTitle,
		categories: map[string]Category{
			"Oil Palm Products":                       {Variant: assemble.Region, Table: db.TableStockRegion},
			"Selected Processed Palm Oil at Refinery": {Variant: assemble.Refinery, Table: db.TableStockRefinery},
		},
	},
	Summary: {
		path:     "/index.php/summary-2",
		selector: summarySelector,
		title:    summaryReportTitle,
		categories: map[string]Category{
			summaryTitle: {Variant: assemble.Summary, Table: db.TableIndustrySummary},
		},
	},
}

// Lookup returns where a report category's facts are assembled and stored.
func Lookup(report Report, category string) (Category, bool) {
	spec, ok := specs[report]
	if !ok {
		return Category{}, false
	}
	_, c, ok := spec.lookup(category)
	return c, ok
}

// lookup matches category against the known names ignoring case and
// whitespace and returns the known spelling.
func (s reportSpec) lookup(category string) (string, Category, bool) {
	if c, ok := s.categories[category]; ok {
		return category, c, true
	}
	for name, c := range s.categories {
		if textutil.SameName(name, category) {
			return name, c, true
		}
	}
	return "", Category{}, false
}

// SourceURL is the listing page a report's facts are attributed to.
func SourceURL(baseUrl string, report Report) string {
	return strings.TrimSuffix(baseUrl, "/") + specs[report].path
}

// Categories lists the categories a report knows about.
func Categories(report Report) []string {
	var out []string
	for name := range specs[report].categories {
		out = append(out, name)
	}
	return out
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// trailingYear returns the last four characters of title when they are a
// year.
func trailingYear(title string) (string, bool) {
	title = strings.TrimSpace(title)
	if len(title) < 4 {
		return "", false
	}
	year := title[len(title)-4:]
	return year, isYear(year)
}

// "Export of Palm Oil by Destinations 2022": the category is the word
// before the year.
func exportTitle(title string) (string, string, bool) {
	words := strings.Fields(title)
	if len(words) < 2 {
		return "", "", false
	}
	year := words[len(words)-1]
	if !isYear(year) {
		return "", "", false
	}
	return words[len(words)-2], year, true
}

// "Production of Crude Palm Oil 2022"
func productionTitle(title string) (string, string, bool) {
	const marker = "Production of"
	if !strings.Contains(title, marker) {
		return "", "", false
	}
	year, ok := trailingYear(title)
	if !ok {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.Replace(title, marker, "", 1))
	return strings.TrimSpace(strings.TrimSuffix(rest, year)), year, true
}

// "Monthly Closing Stock of Oil Palm Products 2022"
func stockTitle(title string) (string, string, bool) {
	const marker = "Stock of"
	idx := strings.Index(title, marker)
	if idx < 0 {
		return "", "", false
	}
	year, ok := trailingYear(title)
	if !ok {
		return "", "", false
	}
	rest := strings.TrimSpace(title[idx+len(marker):])
	return strings.TrimSpace(strings.TrimSuffix(rest, year)), year, true
}

// "Summary Of The Malaysian Palm Oil Industry 2022"
func summaryReportTitle(title string) (string, string, bool) {
	if !strings.Contains(title, summaryTitle) {
		return "", "", false
	}
	year, ok := trailingYear(title)
	if !ok {
		return "", "", false
	}
	return summaryTitle, year, true
}
