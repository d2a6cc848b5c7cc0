package dataprocessing

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "expensecli/internal/errors"
	"expensecli/internal/infrastructure"
)

// Source labels recorded on loaded datasets
const (
	SourceWorkbook = "workbook"
	SourceCSV      = "csv"
	SourceSheets   = "google_sheets"
	SourceInline   = "inline"
)

// Loader reads workbooks and CSV files into datasets
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a loader. A nil logger uses the global one.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Loader{logger: logger.With(slog.String("component", "dataprocessing.loader"))}
}

// LoadFile opens path and dispatches on its extension
func (l *Loader) LoadFile(path string) (*Dataset, error) {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("file", name)
		}
		defer f.Close()
		return l.readWorkbook(f, name)
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open csv file", err).WithContext("file", name)
		}
		defer file.Close()
		return l.ReadCSV(file, name)
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unsupported file type %q", filepath.Ext(path))).
			WithContext("file", name)
	}
}

// Read parses an uploaded file from r, choosing the reader by the extension of name
func (l *Loader) Read(r io.Reader, name string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return l.ReadWorkbook(r, name)
	case ".csv":
		return l.ReadCSV(r, name)
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unsupported file type %q", filepath.Ext(name))).
			WithContext("file", name)
	}
}

// ReadWorkbook parses an Excel workbook from r. name labels the dataset.
func (l *Loader) ReadWorkbook(r io.Reader, name string) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read workbook", err).WithContext("file", name)
	}
	defer f.Close()
	return l.readWorkbook(f, name)
}

func (l *Loader) readWorkbook(f *excelize.File, name string) (*Dataset, error) {
	ds := &Dataset{Name: name, Source: SourceWorkbook}

	for _, sheet := range f.GetSheetList() {
		// Raw values keep dates as serial numbers instead of locale formatted text
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			l.logger.Warn("skipping unreadable sheet",
				slog.String("file", name),
				slog.String("sheet", sheet),
				slog.String("error", err.Error()))
			continue
		}
		if !ds.appendGrid(sheet, stringGrid(rows), sheet) {
			l.logger.Debug("sheet has no expense header",
				slog.String("file", name),
				slog.String("sheet", sheet))
			continue
		}
	}

	if len(ds.Sheets) == 0 {
		return nil, apperrors.NewParsingError("no expense table found", errNoHeader(name)).WithContext("file", name)
	}

	l.logger.Info("workbook loaded",
		slog.String("file", name),
		slog.Any("sheets", ds.SheetNames()),
		slog.Int("rows", len(ds.Rows)))
	return ds, nil
}

// ReadCSV parses a CSV ledger. Rows without an expense head take the file
// name, minus its extension, as their category.
func (l *Loader) ReadCSV(r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read csv", err).WithContext("file", name)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}

	ds := &Dataset{Name: name, Source: SourceCSV}
	category := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if !ds.appendGrid(category, stringGrid(records), category) {
		return nil, apperrors.NewParsingError("no expense table found", errNoHeader(name)).WithContext("file", name)
	}

	l.logger.Info("csv loaded",
		slog.String("file", name),
		slog.Int("rows", len(ds.Rows)))
	return ds, nil
}
