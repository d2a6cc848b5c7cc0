package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"expensecli/internal/config"
	apperrors "expensecli/internal/errors"
	"expensecli/internal/infrastructure"
)

// ValuesFetcher reads cell values from a spreadsheet
type ValuesFetcher interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	Values(ctx context.Context, spreadsheetID, sheet string) ([][]interface{}, error)
}

// SheetsSource loads expense tables from a Google Sheets spreadsheet
type SheetsSource struct {
	fetcher       ValuesFetcher
	spreadsheetID string
	sheets        []string
	logger        *slog.Logger
}

// NewSheetsSource connects to the Sheets API with the configured service
// account credentials
func NewSheetsSource(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*SheetsSource, error) {
	if !cfg.Enabled {
		return nil, apperrors.NewConfigError("google sheets source is disabled", nil)
	}
	if cfg.SpreadsheetID == "" {
		return nil, apperrors.NewConfigError("spreadsheet id is required", nil)
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewSourceError("failed to create google sheets service", err)
	}

	return NewSheetsSourceWithFetcher(&googleFetcher{svc: svc}, cfg.SpreadsheetID, cfg.Sheets, logger), nil
}

// NewSheetsSourceWithFetcher builds a source over any fetcher
func NewSheetsSourceWithFetcher(fetcher ValuesFetcher, spreadsheetID string, sheetNames []string, logger *slog.Logger) *SheetsSource {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &SheetsSource{
		fetcher:       fetcher,
		spreadsheetID: spreadsheetID,
		sheets:        sheetNames,
		logger:        logger.With(slog.String("component", "dataprocessing.sheets")),
	}
}

// Load reads the named sheets, or the configured ones, or every sheet in
// the spreadsheet when neither is given
func (s *SheetsSource) Load(ctx context.Context, sheetNames ...string) (*Dataset, error) {
	if len(sheetNames) == 0 {
		sheetNames = s.sheets
	}
	if len(sheetNames) == 0 {
		titles, err := s.fetcher.SheetTitles(ctx, s.spreadsheetID)
		if err != nil {
			return nil, s.sourceError("failed to list sheets", "spreadsheet "+s.spreadsheetID, err)
		}
		sheetNames = titles
	}

	ds := &Dataset{Name: s.spreadsheetID, Source: SourceSheets}
	for _, name := range sheetNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values, err := s.fetcher.Values(ctx, s.spreadsheetID, name)
		if err != nil {
			return nil, s.sourceError(fmt.Sprintf("failed to read sheet %q", name), fmt.Sprintf("sheet %q", name), err).
				WithContext("sheet", name)
		}
		if !ds.appendGrid(name, values, name) {
			s.logger.DebugContext(ctx, "sheet has no expense header", slog.String("sheet", name))
		}
	}

	if len(ds.Sheets) == 0 {
		return nil, apperrors.NewParsingError("no expense table found", errNoHeader(s.spreadsheetID)).
			WithContext("spreadsheet_id", s.spreadsheetID)
	}

	s.logger.InfoContext(ctx, "spreadsheet loaded",
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.Any("sheets", ds.SheetNames()),
		slog.Int("rows", len(ds.Rows)))
	return ds, nil
}

// sourceError maps a 404 from the API to a not found error and anything else
// to a source failure
func (s *SheetsSource) sourceError(message, resource string, err error) *apperrors.AppError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return apperrors.NewNotFoundError(resource).WithContext("spreadsheet_id", s.spreadsheetID)
	}
	return apperrors.NewSourceError(message, err).WithContext("spreadsheet_id", s.spreadsheetID)
}

type googleFetcher struct {
	svc *sheets.Service
}

func (g *googleFetcher) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	resp, err := g.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (g *googleFetcher) Values(ctx context.Context, spreadsheetID, sheet string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, sheet).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}
