package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/shared/testutil"
	"expensecli/internal/validation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeLedger(t *testing.T, months int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, testutil.ExpenseCSV(t, testutil.ExpenseRows(months)), 0644))
	return path
}

func fileValidator() *validation.FileValidator {
	return validation.NewFileValidator(config.SupportedUploadExtensions, config.DefaultMaxUploadBytes, testLogger())
}

func TestRunWritesRequestedFormats(t *testing.T) {
	out := t.TempDir()
	var summary bytes.Buffer
	opts := options{
		In:      writeLedger(t, 14),
		Out:     out,
		Formats: []string{"csv", "xlsx", "json", "html"},
		Engine:  analytics.DefaultConfig(),
		Summary: &summary,
	}

	written, err := run(context.Background(), opts, fileValidator(), nil, testLogger())
	require.NoError(t, err)

	assert.Len(t, written, 5+3)
	assert.Contains(t, summary.String(), "42 accepted, 0 skipped")
	for _, category := range []string{"Rent", "Travel", "Utilities"} {
		assert.Contains(t, summary.String(), category)
	}

	for _, name := range []string{
		"ledger-summary.csv", "ledger-series.csv", "ledger-forecast.csv", "ledger-scores.csv", "ledger-insights.csv",
		"ledger-report.xlsx", "ledger-report.json", "ledger-report.html",
	} {
		assert.FileExists(t, filepath.Join(out, name))
	}

	data, err := os.ReadFile(filepath.Join(out, "ledger-report.json"))
	require.NoError(t, err)
	var report analytics.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Len(t, report.Categories, 3)
	assert.Equal(t, 42, report.Validation.AcceptedRows)
}

func TestRunHonorsEngineOverrides(t *testing.T) {
	out := t.TempDir()
	cfg := analytics.DefaultConfig()
	cfg.Horizon = 2
	opts := options{In: writeLedger(t, 14), Out: out, Formats: []string{"json"}, Engine: cfg}

	_, err := run(context.Background(), opts, fileValidator(), nil, testLogger())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "ledger-report.json"))
	require.NoError(t, err)
	var report analytics.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Config.Horizon)
}

func TestRunRejections(t *testing.T) {
	ledger := writeLedger(t, 6)
	bad := analytics.DefaultConfig()
	bad.Horizon = 30

	tests := []struct {
		name string
		opts options
	}{
		{"missing input flag", options{Out: t.TempDir(), Formats: []string{"csv"}, Engine: analytics.DefaultConfig()}},
		{"no formats", options{In: ledger, Out: t.TempDir(), Engine: analytics.DefaultConfig()}},
		{"unknown format", options{In: ledger, Out: t.TempDir(), Formats: []string{"docx"}, Engine: analytics.DefaultConfig()}},
		{"pdf without renderer", options{In: ledger, Out: t.TempDir(), Formats: []string{"pdf"}, Engine: analytics.DefaultConfig()}},
		{"missing file", options{In: filepath.Join(t.TempDir(), "none.csv"), Out: t.TempDir(), Formats: []string{"csv"}, Engine: analytics.DefaultConfig()}},
		{"invalid horizon", options{In: ledger, Out: t.TempDir(), Formats: []string{"csv"}, Engine: bad}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(context.Background(), tt.opts, fileValidator(), nil, testLogger())
			assert.Error(t, err)
		})
	}
}

func TestSplitFormats(t *testing.T) {
	assert.Equal(t, []string{"csv", "pdf"}, splitFormats(" CSV, pdf,,csv "))
	assert.Empty(t, splitFormats(""))
}
