// Package events contains the event contracts pushed to dashboard clients
// over the WebSocket connection.
package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Analysis lifecycle
	MessageTypeAnalysisStarted   MessageType = "analysis.started"
	MessageTypeAnalysisCompleted MessageType = "analysis.completed"
	MessageTypeAnalysisFailed    MessageType = "analysis.failed"

	// Dataset lifecycle
	MessageTypeDatasetStored  MessageType = "dataset.stored"
	MessageTypeDatasetExpired MessageType = "dataset.expired"

	// System messages
	MessageTypeSystemStatus MessageType = "system.status"

	// Connection messages
	MessageTypeConnect   MessageType = "connect"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeError     MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage stamps a message with an id and the current time
func NewMessage(msgType MessageType, traceID string, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	}
}

// AnalysisStarted announces a run
type AnalysisStarted struct {
	AnalysisID string `json:"analysis_id"`
	DatasetID  string `json:"dataset_id,omitempty"`
	Rows       int    `json:"rows"`
	Horizon    int    `json:"horizon"`
}

// AnalysisCompleted summarizes a finished run. Clients fetch the full report
// over HTTP; the event carries only headline figures.
type AnalysisCompleted struct {
	AnalysisID   string          `json:"analysis_id"`
	DatasetID    string          `json:"dataset_id,omitempty"`
	Categories   int             `json:"categories"`
	SkippedRows  int             `json:"skipped_rows"`
	TotalSpent   float64         `json:"total_spent"`
	Insights     int             `json:"insights"`
	TopRisk      string          `json:"top_risk,omitempty"`
	Scores       []CategoryScore `json:"scores"`
	DurationMS   int64           `json:"duration_ms"`
	Unforecasted []string        `json:"unforecasted,omitempty"`
}

// CategoryScore is the compact per-category score in events
type CategoryScore struct {
	Category        string  `json:"category"`
	Rank            int     `json:"rank"`
	EfficiencyScore float64 `json:"efficiency_score"`
	RiskLevel       string  `json:"risk_level"`
}

// AnalysisFailed reports a run that could not complete
type AnalysisFailed struct {
	AnalysisID string `json:"analysis_id"`
	DatasetID  string `json:"dataset_id,omitempty"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// DatasetStored announces a new or refreshed dataset snapshot
type DatasetStored struct {
	DatasetID    string    `json:"dataset_id"`
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	AcceptedRows int       `json:"accepted_rows"`
	SkippedRows  int       `json:"skipped_rows"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DatasetExpired announces an evicted snapshot
type DatasetExpired struct {
	DatasetID string `json:"dataset_id"`
}

// ConnectionEvent greets a newly connected client
type ConnectionEvent struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
	Protocol string `json:"protocol"`
}

// ErrorEvent reports a failure to clients
type ErrorEvent struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Details     interface{} `json:"details,omitempty"`
	Recoverable bool        `json:"recoverable"`
}

// SystemStatusEvent represents a system status event
type SystemStatusEvent struct {
	Status   string `json:"status"`
	Clients  int    `json:"clients"`
	Datasets int    `json:"datasets"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
}
