package api

import (
	"time"

	"expensecli/internal/analytics"
)

// DatasetResponse describes a stored dataset snapshot
type DatasetResponse struct {
	ID          string                      `json:"id"`
	Name        string                      `json:"name"`
	Source      string                      `json:"source"`
	Fingerprint string                      `json:"fingerprint"`
	Sheets      []string                    `json:"sheets"`
	Categories  []string                    `json:"categories"`
	Validation  analytics.ValidationSummary `json:"validation"`
	FirstPeriod *analytics.Period           `json:"first_period,omitempty"`
	LastPeriod  *analytics.Period           `json:"last_period,omitempty"`
	UploadedAt  time.Time                   `json:"uploaded_at"`
	ExpiresAt   time.Time                   `json:"expires_at"`
	Duplicate   bool                        `json:"duplicate,omitempty"`
}

// AnalysisResponse wraps one engine report
type AnalysisResponse struct {
	AnalysisID  string            `json:"analysis_id"`
	DatasetID   string            `json:"dataset_id,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	DurationMS  int64             `json:"duration_ms"`
	Report      *analytics.Report `json:"report"`
}

// RecordsResponse lists filtered records of a dataset
type RecordsResponse struct {
	DatasetID string                        `json:"dataset_id"`
	Count     int                           `json:"count"`
	Total     float64                       `json:"total"`
	Records   []analytics.TransactionRecord `json:"records"`
}

// HealthResponse is returned by the health endpoints
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]HealthCheck `json:"checks,omitempty"`
}

// HealthCheck is the state of one dependency
type HealthCheck struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
