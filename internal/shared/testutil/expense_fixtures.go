package testutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"expensecli/internal/analytics"
)

// FixtureHeaders is the column order used by the CSV and workbook fixtures
var FixtureHeaders = []string{
	analytics.FieldDate,
	analytics.FieldExpenseHead,
	analytics.FieldSubCategory,
	analytics.FieldAmount,
	analytics.FieldVendor,
}

// FixtureStart is the first month covered by ExpenseRows
var FixtureStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// ExpenseRows builds months of rows for three categories: a flat Rent, a
// quadratically growing Travel and a Utilities series with a yearly cycle
func ExpenseRows(months int) []analytics.RawRow {
	rows := make([]analytics.RawRow, 0, months*3)
	for m := 0; m < months; m++ {
		month := FixtureStart.AddDate(0, m, 0)
		rows = append(rows,
			analytics.RawRow{
				analytics.FieldDate: month.AddDate(0, 0, 2).Format("2006-01-02"), analytics.FieldExpenseHead: "Rent",
				analytics.FieldSubCategory: "Office", analytics.FieldAmount: 2000.0, analytics.FieldVendor: "Landlord Ltd",
			},
			analytics.RawRow{
				analytics.FieldDate: month.AddDate(0, 0, 9).Format("2006-01-02"), analytics.FieldExpenseHead: "Travel",
				analytics.FieldSubCategory: "Flights", analytics.FieldAmount: 100.0 + float64(20*m*m), analytics.FieldVendor: "Air Co",
			},
			analytics.RawRow{
				analytics.FieldDate: month.AddDate(0, 0, 15).Format("2006-01-02"), analytics.FieldExpenseHead: "Utilities",
				analytics.FieldSubCategory: "Power", analytics.FieldAmount: 150.0 + float64((m%12)*10), analytics.FieldVendor: "Grid",
			},
		)
	}
	return rows
}

// ExpenseCSV renders rows as CSV text with FixtureHeaders
func ExpenseCSV(t testing.TB, rows []analytics.RawRow) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(FixtureHeaders); err != nil {
		t.Fatalf("write csv header: %v", err)
	}
	for _, row := range rows {
		record := make([]string, len(FixtureHeaders))
		for i, h := range FixtureHeaders {
			if v, ok := row[h]; ok && v != nil {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write csv row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	return buf.Bytes()
}

// WriteExpenseWorkbook saves rows into a workbook under t.TempDir. With
// perCategory set each expense head gets its own sheet and the Expense Head
// column is left out, so the loader must fall back to the sheet name.
func WriteExpenseWorkbook(t testing.TB, rows []analytics.RawRow, perCategory bool) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	headers := FixtureHeaders
	if perCategory {
		headers = []string{analytics.FieldDate, analytics.FieldSubCategory, analytics.FieldAmount, analytics.FieldVendor}
	}

	next := map[string]int{}
	for _, row := range rows {
		sheet := "Expenses"
		if perCategory {
			sheet = fmt.Sprint(row[analytics.FieldExpenseHead])
		}
		if _, ok := next[sheet]; !ok {
			if _, err := f.NewSheet(sheet); err != nil {
				t.Fatalf("create sheet %s: %v", sheet, err)
			}
			// A title line above the header exercises header detection
			mustSet(t, f, sheet, "A1", "Expense register")
			for i, h := range headers {
				cell, _ := excelize.CoordinatesToCellName(i+1, 2)
				mustSet(t, f, sheet, cell, h)
			}
			next[sheet] = 3
		}
		r := next[sheet]
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, r)
			mustSet(t, f, sheet, cell, row[h])
		}
		next[sheet] = r + 1
	}
	if len(next) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("delete default sheet: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "expenses.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func mustSet(t testing.TB, f *excelize.File, sheet, cell string, value interface{}) {
	t.Helper()
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		t.Fatalf("set %s!%s: %v", sheet, cell, err)
	}
}
