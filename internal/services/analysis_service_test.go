package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/dataprocessing"
	apperrors "expensecli/internal/errors"
	"expensecli/internal/shared/testutil"
	"expensecli/pkg/contracts/events"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []events.WebSocketMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg events.WebSocketMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
}

func (p *recordingPublisher) ofType(t events.MessageType) []events.WebSocketMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.WebSocketMessage
	for _, m := range p.messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type stubSheets struct {
	ds  *dataprocessing.Dataset
	err error
}

func (s *stubSheets) Load(context.Context, ...string) (*dataprocessing.Dataset, error) {
	return s.ds, s.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T) *analytics.Engine {
	t.Helper()
	engine, err := analytics.NewEngine(analytics.DefaultConfig(), quietLogger())
	require.NoError(t, err)
	return engine
}

func newService(t *testing.T, pub *recordingPublisher, sheets SheetsLoader) *AnalysisService {
	t.Helper()
	return NewAnalysisService(AnalysisDeps{
		Engine:    newEngine(t),
		Sheets:    sheets,
		Publisher: pub,
		Logger:    quietLogger(),
	}, config.CacheConfig{DatasetTTL: time.Minute, CleanupInterval: time.Minute}, 4)
}

func fixtureDataset(months int) *dataprocessing.Dataset {
	return &dataprocessing.Dataset{
		Name:   "ledger.xlsx",
		Source: dataprocessing.SourceWorkbook,
		Sheets: []dataprocessing.SheetInfo{{Name: "Expenses", HeaderRow: 1, Rows: months * 3}},
		Rows:   testutil.ExpenseRows(months),
	}
}

func TestStoreDatasetDeduplicates(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub, nil)
	ctx := context.Background()

	first, dup, err := svc.StoreDataset(ctx, fixtureDataset(12))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Len(t, first.Records, 36)
	assert.Equal(t, []string{"Expenses"}, first.Sheets)
	assert.Equal(t, []string{"Rent", "Travel", "Utilities"}, first.Categories())
	assert.Len(t, first.Fingerprint, 64)

	firstPeriod, lastPeriod, ok := first.Span()
	require.True(t, ok)
	assert.Equal(t, "2023-01", firstPeriod.String())
	assert.Equal(t, "2023-12", lastPeriod.String())

	again := fixtureDataset(12)
	again.Name = "copy.csv"
	second, dup, err := svc.StoreDataset(ctx, again)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, svc.DatasetCount())
	assert.Len(t, pub.ofType(events.MessageTypeDatasetStored), 1)

	other, dup, err := svc.StoreDataset(ctx, fixtureDataset(6))
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 2, svc.DatasetCount())
}

func TestAnalyzeDatasetMatchesSequentialEngine(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub, nil)
	ctx := context.Background()

	snap, _, err := svc.StoreDataset(ctx, fixtureDataset(24))
	require.NoError(t, err)

	result, err := svc.AnalyzeDataset(ctx, snap.ID, analytics.DefaultConfig(), analytics.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, snap.ID, result.DatasetID)
	assert.NotEmpty(t, result.AnalysisID)

	expected, err := newEngine(t).Analyze(ctx, testutil.ExpenseRows(24))
	require.NoError(t, err)
	assert.Equal(t, expected, result.Report)

	cached, err := svc.AnalyzeDataset(ctx, snap.ID, analytics.DefaultConfig(), analytics.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, result.AnalysisID, cached.AnalysisID, "unfiltered runs are cached")

	completed := pub.ofType(events.MessageTypeAnalysisCompleted)
	require.Len(t, completed, 1)
	payload, ok := completed[0].Data.(events.AnalysisCompleted)
	require.True(t, ok)
	assert.Equal(t, 3, payload.Categories)
	assert.Len(t, payload.Scores, 3)
	assert.InDelta(t, expected.Overall.Summary.TotalSpent, payload.TotalSpent, 1e-9)
	assert.NotEmpty(t, payload.TopRisk)
}

func TestAnalyzeDatasetWithOverrides(t *testing.T) {
	svc := newService(t, &recordingPublisher{}, nil)
	ctx := context.Background()

	snap, _, err := svc.StoreDataset(ctx, fixtureDataset(12))
	require.NoError(t, err)

	t.Run("horizon", func(t *testing.T) {
		cfg := analytics.DefaultConfig()
		cfg.Horizon = 3
		result, err := svc.AnalyzeDataset(ctx, snap.ID, cfg, analytics.RecordFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Report.Config.Horizon)
		assert.Len(t, result.Report.Overall.Forecast.Points, 3)
	})

	t.Run("filter", func(t *testing.T) {
		result, err := svc.AnalyzeDataset(ctx, snap.ID, analytics.DefaultConfig(), analytics.RecordFilter{Categories: []string{" rent "}})
		require.NoError(t, err)
		require.Len(t, result.Report.Categories, 1)
		assert.Equal(t, "Rent", result.Report.Categories[0].Category)
		assert.InDelta(t, 24000.0, result.Report.Overall.Summary.TotalSpent, 1e-9)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := analytics.DefaultConfig()
		cfg.Horizon = 25
		_, err := svc.AnalyzeDataset(ctx, snap.ID, cfg, analytics.RecordFilter{})
		require.Error(t, err)
		assert.True(t, analytics.IsConfigurationError(err))
	})

	t.Run("invalid filter", func(t *testing.T) {
		minAmount, maxAmount := 10.0, 5.0
		_, err := svc.AnalyzeDataset(ctx, snap.ID, analytics.DefaultConfig(), analytics.RecordFilter{MinAmount: &minAmount, MaxAmount: &maxAmount})
		require.Error(t, err)
		assert.True(t, analytics.IsConfigurationError(err))
	})

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := svc.AnalyzeDataset(ctx, "missing", analytics.DefaultConfig(), analytics.RecordFilter{})
		var apiErr *apperrors.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})
}

func TestAnalyzeRows(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub, nil)

	rows := append(testutil.ExpenseRows(12), analytics.RawRow{analytics.FieldDate: "not a date", analytics.FieldAmount: 10.0})
	result, err := svc.AnalyzeRows(context.Background(), rows, analytics.DefaultConfig(), analytics.RecordFilter{})
	require.NoError(t, err)

	assert.Empty(t, result.DatasetID)
	assert.Equal(t, 37, result.Report.Validation.TotalRows)
	assert.Equal(t, 1, result.Report.Validation.SkippedRows)
	assert.Len(t, result.Report.Categories, 3)
	assert.Equal(t, 0, svc.DatasetCount(), "inline rows are not cached")

	started := pub.ofType(events.MessageTypeAnalysisStarted)
	require.Len(t, started, 1)
	assert.Equal(t, 37, started[0].Data.(events.AnalysisStarted).Rows)
}

func TestAnalyzeRowsCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AnalyzeRows(ctx, testutil.ExpenseRows(12), analytics.DefaultConfig(), analytics.RecordFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	failed := pub.ofType(events.MessageTypeAnalysisFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, apperrors.CodeServiceUnavailable, failed[0].Data.(events.AnalysisFailed).Code)
}

func TestRecordsAndDelete(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newService(t, pub, nil)
	ctx := context.Background()

	snap, _, err := svc.StoreDataset(ctx, fixtureDataset(12))
	require.NoError(t, err)

	minAmount := 1000.0
	records, err := svc.Records(ctx, snap.ID, analytics.RecordFilter{MinAmount: &minAmount})
	require.NoError(t, err)
	for _, r := range records {
		assert.GreaterOrEqual(t, r.Amount, minAmount)
	}
	assert.NotEmpty(t, records)

	_, err = svc.AnalyzeDataset(ctx, snap.ID, analytics.DefaultConfig(), analytics.RecordFilter{})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDataset(ctx, snap.ID))
	_, err = svc.GetDataset(ctx, snap.ID)
	assert.Error(t, err)
	assert.Zero(t, svc.DatasetCount())

	expired := pub.ofType(events.MessageTypeDatasetExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, snap.ID, expired[0].Data.(events.DatasetExpired).DatasetID)

	assert.Error(t, svc.DeleteDataset(ctx, snap.ID))
}

func TestImportSheets(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc := newService(t, &recordingPublisher{}, nil)
		_, _, err := svc.ImportSheets(context.Background(), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSheetsDisabled)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
	})

	t.Run("loads and stores", func(t *testing.T) {
		ds := fixtureDataset(6)
		ds.Source = dataprocessing.SourceSheets
		svc := newService(t, &recordingPublisher{}, &stubSheets{ds: ds})

		snap, dup, err := svc.ImportSheets(context.Background(), []string{"Expenses"})
		require.NoError(t, err)
		assert.False(t, dup)
		assert.Equal(t, dataprocessing.SourceSheets, snap.Source)
	})

	t.Run("source failure", func(t *testing.T) {
		svc := newService(t, &recordingPublisher{}, &stubSheets{err: apperrors.NewSourceError("boom", nil)})
		_, _, err := svc.ImportSheets(context.Background(), nil)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSource))
	})
}

func TestFingerprint(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	a := []analytics.TransactionRecord{{Date: day, Category: "Rent", Amount: 10}}
	b := []analytics.TransactionRecord{{Date: day, Category: "Rent", Amount: 10}}
	c := []analytics.TransactionRecord{{Date: day, Category: "Rent", Amount: 10.01}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, Fingerprint(nil), 64)
}
