// Package api contains the HTTP contract of the expense analytics service.
// Version v1 represents the current stable API version.
package api

import (
	"time"

	"expensecli/internal/analytics"
)

// AnalysisOptions overrides the server defaults for one run. Nil fields keep
// the configured default.
type AnalysisOptions struct {
	Horizon         *int     `json:"horizon,omitempty" validate:"omitempty,min=1,max=24"`
	FillGaps        *bool    `json:"fill_gaps,omitempty"`
	ConfidenceLevel *float64 `json:"confidence_level,omitempty" validate:"omitempty,gt=0,lt=1"`
}

// Apply merges the overrides onto base
func (o AnalysisOptions) Apply(base analytics.Config) analytics.Config {
	cfg := base
	if o.Horizon != nil {
		cfg.Horizon = *o.Horizon
	}
	if o.FillGaps != nil {
		cfg.FillGaps = *o.FillGaps
	}
	if o.ConfidenceLevel != nil {
		cfg.ConfidenceLevel = *o.ConfidenceLevel
	}
	return cfg
}

// AnalysisRequest runs the engine over rows sent inline
type AnalysisRequest struct {
	AnalysisOptions
	Rows   []map[string]interface{} `json:"rows" validate:"required,min=1"`
	Filter *RecordFilterRequest     `json:"filter,omitempty"`
}

// DatasetAnalysisRequest runs the engine over a stored dataset
type DatasetAnalysisRequest struct {
	AnalysisOptions
	Filter *RecordFilterRequest `json:"filter,omitempty"`
}

// RecordFilterRequest narrows a dataset before analysis or export
type RecordFilterRequest struct {
	Categories []string `json:"categories,omitempty" validate:"omitempty,dive,required"`
	MinAmount  *float64 `json:"min_amount,omitempty" validate:"omitempty,gte=0"`
	MaxAmount  *float64 `json:"max_amount,omitempty" validate:"omitempty,gte=0"`
	From       string   `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To         string   `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// RecordFilter converts the request into the engine filter
func (f *RecordFilterRequest) RecordFilter() (analytics.RecordFilter, error) {
	var out analytics.RecordFilter
	if f == nil {
		return out, nil
	}
	out.Categories = f.Categories
	out.MinAmount = f.MinAmount
	out.MaxAmount = f.MaxAmount
	if f.From != "" {
		from, err := time.Parse("2006-01-02", f.From)
		if err != nil {
			return out, err
		}
		out.From = from
	}
	if f.To != "" {
		to, err := time.Parse("2006-01-02", f.To)
		if err != nil {
			return out, err
		}
		out.To = to
	}
	return out, nil
}

// SheetsImportRequest loads a dataset from the configured spreadsheet
type SheetsImportRequest struct {
	Sheets []string `json:"sheets,omitempty" validate:"omitempty,dive,required"`
}

// ReportRequest selects the format of a downloadable report
type ReportRequest struct {
	Format string `json:"format" validate:"required,oneof=xlsx csv pdf html json"`
}
