package infrastructure

import (
	"context"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a snapshot of process resource usage reported by health checks
type RuntimeStats struct {
	Goroutines   int64         `json:"goroutines"`
	HeapAlloc    int64         `json:"heap_alloc_bytes"`
	SystemMemory int64         `json:"system_memory_bytes"`
	GCCount      uint32        `json:"gc_count"`
	LastGCPause  time.Duration `json:"last_gc_pause_ns"`
	CPUCount     int           `json:"cpu_count"`
	Uptime       time.Duration `json:"uptime_ns"`
	Timestamp    time.Time     `json:"timestamp"`
}

// RuntimeCollector samples the Go runtime and records gauges on each sample
type RuntimeCollector struct {
	goroutines metric.Int64Gauge
	heapAlloc  metric.Int64Gauge
	sysMemory  metric.Int64Gauge
	gcPause    metric.Float64Histogram
	uptime     metric.Float64Gauge

	startTime time.Time
	stopOnce  sync.Once
	stopCh    chan struct{}
}

// NewRuntimeCollector registers the runtime gauges on meter
func NewRuntimeCollector(meter metric.Meter) (*RuntimeCollector, error) {
	c := &RuntimeCollector{startTime: time.Now(), stopCh: make(chan struct{})}
	var err error

	if c.goroutines, err = meter.Int64Gauge("system_goroutines",
		metric.WithDescription("Number of active goroutines")); err != nil {
		return nil, err
	}
	if c.heapAlloc, err = meter.Int64Gauge("system_memory_usage_bytes",
		metric.WithDescription("Heap bytes allocated and in use"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if c.sysMemory, err = meter.Int64Gauge("system_memory_system_bytes",
		metric.WithDescription("Memory obtained from the OS in bytes"), metric.WithUnit("By")); err != nil {
		return nil, err
	}
	if c.gcPause, err = meter.Float64Histogram("system_gc_pause_seconds",
		metric.WithDescription("Garbage collection pause duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if c.uptime, err = meter.Float64Gauge("system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}

	return c, nil
}

// Collect takes a snapshot and records it
func (c *RuntimeCollector) Collect(ctx context.Context) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RuntimeStats{
		Goroutines:   int64(runtime.NumGoroutine()),
		HeapAlloc:    int64(mem.Alloc),
		SystemMemory: int64(mem.Sys),
		GCCount:      mem.NumGC,
		LastGCPause:  time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:     runtime.NumCPU(),
		Uptime:       time.Since(c.startTime),
		Timestamp:    time.Now().UTC(),
	}

	c.goroutines.Record(ctx, stats.Goroutines)
	c.heapAlloc.Record(ctx, stats.HeapAlloc)
	c.sysMemory.Record(ctx, stats.SystemMemory)
	c.uptime.Record(ctx, stats.Uptime.Seconds())
	if stats.LastGCPause > 0 {
		c.gcPause.Record(ctx, stats.LastGCPause.Seconds())
	}

	return stats
}

// Start samples every interval until ctx is done or Stop is called
func (c *RuntimeCollector) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends a running Start loop
func (c *RuntimeCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}
