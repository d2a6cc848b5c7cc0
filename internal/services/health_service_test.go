package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/pkg/contracts"
)

type fixedCount int

func (f fixedCount) ClientCount() int  { return int(f) }
func (f fixedCount) DatasetCount() int { return int(f) }

func TestHealthService(t *testing.T) {
	ctx := context.Background()
	reports := filepath.Join(t.TempDir(), "reports")
	hs := NewHealthService(fixedCount(2), fixedCount(5), nil, reports, quietLogger())

	health := hs.HealthCheck(ctx)
	assert.Equal(t, StatusOK, health.Status)
	assert.Equal(t, contracts.Version, health.Version)
	assert.Equal(t, 2, health.Checks["websocket"].Details["clients"])
	assert.Equal(t, 5, health.Checks["datasets"].Details["cached"])

	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, StatusReady, ready.Status)
	_, err := os.Stat(reports)
	assert.NoError(t, err, "readiness creates the reports directory")

	live := hs.LivenessCheck(ctx)
	assert.Equal(t, StatusAlive, live.Status)
	assert.NotEmpty(t, live.Uptime)

	status := hs.SystemStatus(ctx)
	assert.Equal(t, 2, status.Clients)
	assert.Equal(t, 5, status.Datasets)
	assert.Equal(t, StatusReady, status.Status)

	assert.Equal(t, contracts.Version, hs.Version().Version)
}

func TestHealthServiceNotReady(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	hs := NewHealthService(nil, nil, nil, filepath.Join(file, "reports"), nil)

	ready := hs.ReadinessCheck(ctx)
	assert.Equal(t, StatusNotReady, ready.Status)
	assert.Equal(t, StatusNotReady, ready.Checks["websocket"].Status)
	assert.Equal(t, StatusNotReady, ready.Checks["reports"].Status)

	assert.Equal(t, StatusDegraded, hs.HealthCheck(ctx).Status)
}
