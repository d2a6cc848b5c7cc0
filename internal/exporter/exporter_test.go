package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/shared/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureReport(t *testing.T, extra ...analytics.RawRow) *analytics.Report {
	t.Helper()
	engine, err := analytics.NewEngine(analytics.DefaultConfig(), quietLogger())
	require.NoError(t, err)

	rows := append(testutil.ExpenseRows(24), extra...)
	report, err := engine.Analyze(context.Background(), rows)
	require.NoError(t, err)
	return report
}

func tableByName(t *testing.T, tables []Table, name string) Table {
	t.Helper()
	for _, tbl := range tables {
		if tbl.Name == name {
			return tbl
		}
	}
	t.Fatalf("table %s not built", name)
	return Table{}
}

func TestBuildTables(t *testing.T) {
	report := fixtureReport(t)
	tables := BuildTables(report)

	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
		for _, row := range tbl.Rows {
			assert.Len(t, row, len(tbl.Headers), "table %s row width", tbl.Name)
		}
	}
	assert.Equal(t, []string{TableSummary, TableSeries, TableForecast, TableScores, TableInsights}, names)

	summary := tableByName(t, tables, TableSummary)
	require.Len(t, summary.Rows, 4)
	assert.Equal(t, analytics.OverallCategory, summary.Rows[0][0])
	assert.Equal(t, "48000.00", summary.Rows[1][1], "Rent: 24 months at 2000")

	series := tableByName(t, tables, TableSeries)
	assert.Len(t, series.Rows, 4*24)

	forecast := tableByName(t, tables, TableForecast)
	assert.Len(t, forecast.Rows, 4*analytics.DefaultHorizon)
	assert.Equal(t, "2025-01", forecast.Rows[0][1])

	scores := tableByName(t, tables, TableScores)
	require.Len(t, scores.Rows, 3)
	assert.Equal(t, "1", scores.Rows[0][0])
}

func TestForecastTableUnavailable(t *testing.T) {
	report := fixtureReport(t, analytics.RawRow{
		analytics.FieldDate: "2024-06-01", analytics.FieldExpenseHead: "Gifts", analytics.FieldAmount: 40.0,
	})

	var gifts []string
	for _, row := range ForecastTable(report).Rows {
		if row[0] == "Gifts" {
			gifts = row
		}
	}
	require.NotNil(t, gifts)
	assert.Equal(t, string(analytics.StatusInsufficientHistory), gifts[len(gifts)-1])
	assert.Empty(t, gifts[1])
}

func TestRecordsTable(t *testing.T) {
	records := []analytics.TransactionRecord{
		{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Category: "Travel", SubCategory: "Taxi", Amount: 12.5, Vendor: "Cab, Inc"},
	}
	tbl := RecordsTable(records)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"2024-03-05", "Travel", "Taxi", "12.50", "", "", "Cab, Inc", ""}, tbl.Rows[0])
}

func TestEncodeTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, Table{
		Headers: []string{"Category", "Total"},
		Rows:    [][]string{{"Meals, drinks", "10.00"}},
	}))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Category", "Total"}, {"Meals, drinks", "10.00"}}, records)
}

func TestCSVWriterExportTables(t *testing.T) {
	dir := t.TempDir()
	writer := NewCSVWriter(filepath.Join(dir, "out")).WithLogger(quietLogger())

	paths, err := writer.ExportTables("ledger_", BuildTables(fixtureReport(t)))
	require.NoError(t, err)
	require.Len(t, paths, 5)
	assert.Equal(t, filepath.Join(dir, "out", "ledger_summary.csv"), paths[0])

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	require.NoError(t, writer.AppendToCSV("ledger_insights.csv", [][]string{{"info", "X", "manual", "appended"}}))
	data, err := os.ReadFile(paths[4])
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "info,X,manual,appended\n"))
	assert.Equal(t, 1, bytes.Count(data, utf8BOM), "append does not repeat the BOM")
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, BuildTables(fixtureReport(t))))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Series", "Forecast", "Scores", "Insights"}, f.GetSheetList())

	header, err := f.GetCellValue("Summary", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Category", header)

	total, err := f.GetCellValue("Summary", "B3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "48000", total)

	cellType, err := f.GetCellType("Summary", "B3")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
}

func TestRenderHTML(t *testing.T) {
	report := fixtureReport(t, analytics.RawRow{
		analytics.FieldDate: "2024-06-01", analytics.FieldExpenseHead: "<script>alert(1)</script>", analytics.FieldAmount: 5.0,
	})

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, report, ReportMeta{
		DatasetName: "ledger.xlsx",
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC),
		Version:     "1.0.0",
	}))

	html := buf.String()
	assert.Contains(t, html, "<title>Expense Analysis Report</title>")
	assert.Contains(t, html, "Dataset: ledger.xlsx")
	assert.Contains(t, html, "2025-01-02 03:04 UTC")
	assert.Contains(t, html, "Travel")
	assert.Contains(t, html, "80.0% confidence")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;")

	assert.Error(t, RenderHTML(&buf, nil, ReportMeta{}))
}

func findChrome() string {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func TestPDFRenderer(t *testing.T) {
	chrome := findChrome()
	if chrome == "" {
		t.Skip("no Chrome binary available")
	}
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	renderer := NewPDFRenderer(config.ReportConfig{ChromePath: chrome, Headless: true, PDFTimeout: 30 * time.Second}, quietLogger())
	pdf, err := renderer.Render(context.Background(), fixtureReport(t), ReportMeta{DatasetName: "fixture"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}
