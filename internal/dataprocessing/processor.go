package dataprocessing

import (
	"fmt"
	"strings"

	"expensecli/internal/analytics"
)

// headerScanRows bounds the search for the header row
const headerScanRows = 10

// Dataset is a loaded ledger ready for normalization
type Dataset struct {
	Name   string
	Source string
	Sheets []SheetInfo
	Rows   []analytics.RawRow
}

// SheetInfo describes one sheet that contributed rows
type SheetInfo struct {
	Name      string   `json:"name"`
	HeaderRow int      `json:"header_row"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
}

// SheetNames returns the names of the contributing sheets
func (d *Dataset) SheetNames() []string {
	names := make([]string, len(d.Sheets))
	for i, s := range d.Sheets {
		names[i] = s.Name
	}
	return names
}

// appendGrid converts a sheet grid to rows and adds them to the dataset.
// It reports false when the grid has no recognizable header.
func (d *Dataset) appendGrid(sheet string, grid [][]interface{}, defaultCategory string) bool {
	headerIdx, columns := findHeader(grid)
	if headerIdx < 0 {
		return false
	}

	_, hasCategory := indexOf(columns, analytics.FieldExpenseHead)
	defaultCategory = strings.TrimSpace(defaultCategory)

	count := 0
	for _, cells := range grid[headerIdx+1:] {
		if blankRow(cells) {
			continue
		}
		row := make(analytics.RawRow, len(columns)+1)
		for i, name := range columns {
			if name == "" || i >= len(cells) {
				continue
			}
			row[name] = cells[i]
		}
		if !hasCategory && defaultCategory != "" {
			row[analytics.FieldExpenseHead] = defaultCategory
		}
		d.Rows = append(d.Rows, row)
		count++
	}

	recognized := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != "" {
			recognized = append(recognized, c)
		}
	}
	d.Sheets = append(d.Sheets, SheetInfo{
		Name:      sheet,
		HeaderRow: headerIdx + 1,
		Rows:      count,
		Columns:   recognized,
	})
	return true
}

// findHeader returns the index of the first row naming both a date and an
// amount column, and the canonical field for each column ("" if unknown)
func findHeader(grid [][]interface{}) (int, []string) {
	limit := len(grid)
	if limit > headerScanRows {
		limit = headerScanRows
	}

	for i := 0; i < limit; i++ {
		columns := make([]string, len(grid[i]))
		seen := make(map[string]bool, len(grid[i]))
		for j, cell := range grid[i] {
			s, ok := cell.(string)
			if !ok {
				continue
			}
			if name, ok := analytics.CanonicalField(s); ok && !seen[name] {
				columns[j] = name
				seen[name] = true
			}
		}
		if seen[analytics.FieldDate] && seen[analytics.FieldAmount] {
			return i, columns
		}
	}
	return -1, nil
}

func blankRow(cells []interface{}) bool {
	for _, c := range cells {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

func indexOf(values []string, target string) (int, bool) {
	for i, v := range values {
		if v == target {
			return i, true
		}
	}
	return -1, false
}

func stringGrid(rows [][]string) [][]interface{} {
	grid := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		grid[i] = cells
	}
	return grid
}

// errNoHeader is wrapped into parsing errors when no sheet is usable
func errNoHeader(source string) error {
	return fmt.Errorf("%s: no sheet has both %q and %q columns in its first %d rows",
		source, analytics.FieldDate, analytics.FieldAmount, headerScanRows)
}
