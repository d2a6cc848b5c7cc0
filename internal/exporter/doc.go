// Package exporter renders analysis reports for people and spreadsheets.
//
// Tables are built once from an *analytics.Report (see tables.go) and then
// written by the format writers:
//
//   - CSVWriter: one file per table, or a single table streamed to a writer,
//     with a UTF-8 BOM so Excel detects the encoding.
//   - WriteWorkbook: an XLSX workbook with one sheet per table.
//   - RenderHTML: a self-contained HTML report.
//   - PDFRenderer: prints the HTML report to PDF with headless Chrome.
//
// Example usage:
//
//	tables := exporter.BuildTables(report)
//	writer := exporter.NewCSVWriter("reports")
//	files, err := writer.ExportTables("ledger_", tables)
//
//	f, _ := os.Create("report.xlsx")
//	err = exporter.WriteWorkbook(f, tables)
package exporter
