package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"expensecli/internal/infrastructure"
	"expensecli/pkg/contracts"
	apiv1 "expensecli/pkg/contracts/api/v1"
	"expensecli/pkg/contracts/events"
)

// Health states
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
	StatusDegraded = "degraded"
)

// ClientCounter reports connected dashboard clients
type ClientCounter interface {
	ClientCount() int
}

// DatasetCounter reports cached datasets
type DatasetCounter interface {
	DatasetCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	clients    ClientCounter
	datasets   DatasetCounter
	runtime    *infrastructure.RuntimeCollector
	reportsDir string
	startTime  time.Time
	logger     *slog.Logger
}

// NewHealthService creates a health service. Any dependency may be nil and
// is then reported as not configured.
func NewHealthService(clients ClientCounter, datasets DatasetCounter, runtime *infrastructure.RuntimeCollector, reportsDir string, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		clients:    clients,
		datasets:   datasets,
		runtime:    runtime,
		reportsDir: reportsDir,
		startTime:  time.Now(),
		logger:     logger.With(slog.String("component", "health_service")),
	}
}

func (hs *HealthService) uptime() string {
	return time.Since(hs.startTime).Round(time.Second).String()
}

// HealthCheck returns overall health with runtime statistics
func (hs *HealthService) HealthCheck(ctx context.Context) apiv1.HealthResponse {
	resp := apiv1.HealthResponse{
		Status:    StatusOK,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
		Uptime:    hs.uptime(),
		Checks:    hs.checks(),
	}
	if hs.runtime != nil {
		stats := hs.runtime.Collect(ctx)
		resp.Checks["runtime"] = apiv1.HealthCheck{
			Status: StatusOK,
			Details: map[string]interface{}{
				"goroutines":       stats.Goroutines,
				"heap_alloc_bytes": stats.HeapAlloc,
				"gc_count":         stats.GCCount,
				"cpu_count":        stats.CPUCount,
			},
		}
	}
	for _, c := range resp.Checks {
		if c.Status == StatusNotReady {
			resp.Status = StatusDegraded
			break
		}
	}

	hs.logger.DebugContext(ctx, "health check completed", slog.String("status", resp.Status))
	return resp
}

// ReadinessCheck reports whether every dependency can serve requests
func (hs *HealthService) ReadinessCheck(ctx context.Context) apiv1.HealthResponse {
	resp := apiv1.HealthResponse{
		Status:    StatusReady,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
		Checks:    hs.checks(),
	}
	for name, c := range resp.Checks {
		if c.Status == StatusNotReady {
			resp.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "dependency not ready",
				slog.String("check", name),
				slog.String("message", c.Message))
		}
	}
	return resp
}

// LivenessCheck reports that the process is running
func (hs *HealthService) LivenessCheck(ctx context.Context) apiv1.HealthResponse {
	return apiv1.HealthResponse{
		Status:    StatusAlive,
		Version:   contracts.Version,
		Timestamp: time.Now().UTC(),
		Uptime:    hs.uptime(),
	}
}

// Version returns build information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

// SystemStatus is the periodic status broadcast to dashboard clients
func (hs *HealthService) SystemStatus(ctx context.Context) events.SystemStatusEvent {
	status := hs.ReadinessCheck(ctx)
	ev := events.SystemStatusEvent{
		Status:  status.Status,
		Uptime:  hs.uptime(),
		Version: contracts.Version,
	}
	if hs.clients != nil {
		ev.Clients = hs.clients.ClientCount()
	}
	if hs.datasets != nil {
		ev.Datasets = hs.datasets.DatasetCount()
	}
	return ev
}

func (hs *HealthService) checks() map[string]apiv1.HealthCheck {
	return map[string]apiv1.HealthCheck{
		"websocket": hs.checkWebSocket(),
		"datasets":  hs.checkDatasets(),
		"reports":   hs.checkReportsDir(),
	}
}

func (hs *HealthService) checkWebSocket() apiv1.HealthCheck {
	if hs.clients == nil {
		return apiv1.HealthCheck{Status: StatusNotReady, Message: "websocket hub not initialized"}
	}
	return apiv1.HealthCheck{
		Status:  StatusOK,
		Details: map[string]interface{}{"clients": hs.clients.ClientCount()},
	}
}

func (hs *HealthService) checkDatasets() apiv1.HealthCheck {
	if hs.datasets == nil {
		return apiv1.HealthCheck{Status: StatusNotReady, Message: "analysis service not initialized"}
	}
	return apiv1.HealthCheck{
		Status:  StatusOK,
		Details: map[string]interface{}{"cached": hs.datasets.DatasetCount()},
	}
}

func (hs *HealthService) checkReportsDir() apiv1.HealthCheck {
	if hs.reportsDir == "" {
		return apiv1.HealthCheck{Status: StatusOK, Message: "reports are streamed, no output directory"}
	}
	if err := os.MkdirAll(hs.reportsDir, 0755); err != nil {
		return apiv1.HealthCheck{
			Status:  StatusNotReady,
			Message: fmt.Sprintf("cannot create reports directory: %v", err),
		}
	}
	return apiv1.HealthCheck{
		Status:  StatusOK,
		Details: map[string]interface{}{"path": hs.reportsDir},
	}
}
