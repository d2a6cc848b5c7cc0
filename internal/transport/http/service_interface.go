package http

import (
	"context"

	"expensecli/internal/analytics"
	"expensecli/internal/dataprocessing"
	"expensecli/internal/services"
)

// AnalysisServiceInterface is the service surface used by the dataset, analysis and report handlers
type AnalysisServiceInterface interface {
	DefaultConfig() analytics.Config
	StoreDataset(ctx context.Context, ds *dataprocessing.Dataset) (*services.Snapshot, bool, error)
	ImportSheets(ctx context.Context, sheets []string) (*services.Snapshot, bool, error)
	GetDataset(ctx context.Context, id string) (*services.Snapshot, error)
	DeleteDataset(ctx context.Context, id string) error
	Records(ctx context.Context, id string, filter analytics.RecordFilter) ([]analytics.TransactionRecord, error)
	AnalyzeRows(ctx context.Context, rows []analytics.RawRow, cfg analytics.Config, filter analytics.RecordFilter) (*services.AnalysisResult, error)
	AnalyzeDataset(ctx context.Context, id string, cfg analytics.Config, filter analytics.RecordFilter) (*services.AnalysisResult, error)
}

var _ AnalysisServiceInterface = (*services.AnalysisService)(nil)
