package config

import "time"

// Application constants
const (
	AppName    = "Expense Analytics"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. EXPENSE_SERVER_PORT
	EnvPrefix = "EXPENSE"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout  = 30 * time.Second
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// Uploads
	DefaultMaxUploadBytes = 10 << 20 // 10MB

	// Cache Settings
	DatasetCacheDuration = 30 * time.Minute
	DatasetCacheCleanup  = 10 * time.Minute

	// Reports
	DefaultReportsDir = "reports"
	PDFRenderTimeout  = 60 * time.Second
)

// SupportedUploadExtensions lists the dataset formats accepted for upload
var SupportedUploadExtensions = []string{".xlsx", ".xlsm", ".csv"}
