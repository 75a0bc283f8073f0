package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"palmstat-backend/lib/scrapers/mpob"
	"palmstat-backend/services/mpob/scraper"

	"github.com/stretchr/testify/require"
)

const portsFrame = `<html><body>
<table>
	<tr><th>PORT</th><th>JAN</th><th>FEB</th><th>Total</th></tr>
	<tr><td>Pasir Gudang</td><td>120</td><td>80</td><td>200</td></tr>
	<tr><td>Lumut</td><td></td><td>15</td><td>15</td></tr>
</table>
</body></html>`

func TestInspectPage(t *testing.T) {
	facts, err := inspectPage(scraper.Export, "Ports", "2023", portsFrame)
	require.NoError(t, err)
	require.Equal(t, []string{"DATADATE", "PORT", "VALUE", "UNIT", "SOURCE", "SUPPLIER"}, facts.Columns())
	require.Len(t, facts.Rows, 3)
	require.Equal(t, "2023-02-01", facts.Rows[1].FieldText("DATADATE"))
	require.Equal(t, "https://bepi.mpob.gov.my/index.php/export", facts.Rows[0].Source)

	_, err = inspectPage(scraper.Export, "Continents", "2023", portsFrame)
	require.ErrorContains(t, err, "unknown export category")
}

func TestParseReports(t *testing.T) {
	reports, err := parseReports(nil)
	require.NoError(t, err)
	require.Equal(t, scraper.AllReports(), reports)

	reports, err = parseReports([]string{"stock", "Summary"})
	require.NoError(t, err)
	require.Equal(t, []scraper.Report{scraper.Stock, scraper.Summary}, reports)

	_, err = parseReports([]string{"imports"})
	require.Error(t, err)
}

type rejectingPortal struct{}

func (rejectingPortal) Login(ctx context.Context) error {
	return mpob.ErrAuthenticationFailure
}

func (rejectingPortal) Fetch(ctx context.Context, link string) (mpob.Page, error) {
	return mpob.Page{}, errors.New("not reachable")
}

func TestPipelineRunReportsFailures(t *testing.T) {
	p := pipeline{
		service: scraper.NewService(rejectingPortal{}, nil, nil, nil, scraper.Options{TempDir: t.TempDir()}),
	}

	var out bytes.Buffer
	err := p.run(context.Background(), []scraper.Report{scraper.Export, scraper.Summary}, &out)
	require.ErrorIs(t, err, mpob.ErrAuthenticationFailure)
	require.ErrorContains(t, err, "summary: not reachable")
	require.Contains(t, out.String(), "export")
	require.Contains(t, out.String(), "summary")
}
