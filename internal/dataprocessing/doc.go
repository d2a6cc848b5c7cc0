// Package dataprocessing loads expense ledgers into raw rows for the
// analytics engine.
//
// Three sources are supported:
//
//  1. Excel workbooks (.xlsx, .xlsm), read with excelize. Every sheet that
//     carries a Date and an Amount column contributes rows; a sheet without
//     an Expense Head column names the category of its rows.
//  2. CSV files with a header row.
//  3. Google Sheets spreadsheets, read through the Sheets v4 API.
//
// The header row is located within the first rows of each sheet so title
// lines above the table are tolerated. Header names are matched through
// analytics.CanonicalField, so "expense_head", "Category" and "Expense Head"
// all map to the same field.
//
// Rows are returned untyped. Validation and coercion happen in
// analytics.Normalizer, which reports bad rows instead of failing the load.
package dataprocessing
