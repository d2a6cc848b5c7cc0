package validation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "expensecli/internal/errors"
)

func newValidator() *FileValidator {
	return NewFileValidator([]string{".xlsx", "XLSM", ".csv"}, 1024, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFileValidator_ValidateUpload(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		size       int64
		wantStatus int
	}{
		{name: "workbook", filename: "ledger.xlsx", size: 512},
		{name: "uppercase extension", filename: "LEDGER.CSV", size: 10},
		{name: "extension without dot in config", filename: "macros.xlsm", size: 10},
		{name: "at limit", filename: "ledger.csv", size: 1024},
		{name: "too large", filename: "ledger.csv", size: 1025, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "legacy excel", filename: "ledger.xls", size: 10, wantStatus: http.StatusUnsupportedMediaType},
		{name: "no extension", filename: "ledger", size: 10, wantStatus: http.StatusUnsupportedMediaType},
		{name: "office lock file", filename: "~$ledger.xlsx", size: 10, wantStatus: http.StatusBadRequest},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpload(tt.filename, tt.size)
			if tt.wantStatus == 0 {
				assert.NoError(t, err)
				return
			}
			var apiErr *apperrors.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
		})
	}
}

func TestFileValidator_NoSizeLimit(t *testing.T) {
	v := NewFileValidator([]string{".csv"}, 0, nil)
	assert.NoError(t, v.ValidateUpload("big.csv", 1<<40))
	assert.Equal(t, []string{".csv"}, v.AllowedExtensions())
}

func TestFileValidator_ValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(good, []byte("Date,Amount\n"), 0644))
	big := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(big, make([]byte, 2048), 0644))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"readable csv", good, ""},
		{"missing", filepath.Join(dir, "missing.csv"), "does not exist"},
		{"directory", dir, "is a directory"},
		{"too large", big, "maximum allowed size"},
	}

	v := newValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInputFile(tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := newValidator()

	nested := filepath.Join(t.TempDir(), "reports", "2024")
	require.NoError(t, v.ValidateOutputDirectory(nested))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	entries, err := os.ReadDir(nested)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe is removed")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, v.ValidateOutputDirectory(filepath.Join(file, "sub")))
}
