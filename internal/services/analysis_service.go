package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"expensecli/internal/analytics"
	"expensecli/internal/config"
	"expensecli/internal/dataprocessing"
	apperrors "expensecli/internal/errors"
	"expensecli/internal/infrastructure"
	ws "expensecli/internal/websocket"
	"expensecli/pkg/contracts/events"
)

const (
	datasetKeyPrefix     = "dataset:"
	fingerprintKeyPrefix = "fingerprint:"
	reportKeyPrefix      = "report:"
)

// Snapshot is a normalized dataset held in the session cache
type Snapshot struct {
	ID          string
	Name        string
	Source      string
	Fingerprint string
	Sheets      []string
	Records     []analytics.TransactionRecord
	Validation  analytics.ValidationSummary
	UploadedAt  time.Time
	ExpiresAt   time.Time
}

// Span returns the first and last period covered by the snapshot
func (s *Snapshot) Span() (first, last analytics.Period, ok bool) {
	for i, r := range s.Records {
		p := r.Period()
		if i == 0 || p.Before(first) {
			first = p
		}
		if i == 0 || last.Before(p) {
			last = p
		}
	}
	return first, last, len(s.Records) > 0
}

// Categories returns the distinct categories in name order
func (s *Snapshot) Categories() []string {
	return analytics.SortedCategories(analytics.GroupByCategory(s.Records))
}

// AnalysisResult is one completed engine run
type AnalysisResult struct {
	AnalysisID  string
	DatasetID   string
	GeneratedAt time.Time
	Duration    time.Duration
	Report      *analytics.Report
}

// SheetsLoader loads a dataset from a remote spreadsheet
type SheetsLoader interface {
	Load(ctx context.Context, sheets ...string) (*dataprocessing.Dataset, error)
}

// AnalysisDeps are the collaborators of AnalysisService. Only Engine is required.
type AnalysisDeps struct {
	Engine    *analytics.Engine
	Sheets    SheetsLoader
	Publisher ws.Publisher
	Metrics   *infrastructure.AnalysisMetrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
	// Timeout bounds one analysis run; zero means no limit beyond the caller's context
	Timeout time.Duration
}

// AnalysisService stores dataset snapshots and runs the analytics engine over them
type AnalysisService struct {
	engine    *analytics.Engine
	sheets    SheetsLoader
	cache     *cache.Cache
	ttl       time.Duration
	workers   int
	timeout   time.Duration
	publisher ws.Publisher
	metrics   *infrastructure.AnalysisMetrics
	tracer    trace.Tracer
	logger    *slog.Logger

	// serializes store so concurrent uploads of one file share a snapshot
	storeMu sync.Mutex
}

// NewAnalysisService creates the service. workers bounds per-category parallelism.
func NewAnalysisService(deps AnalysisDeps, cacheCfg config.CacheConfig, workers int) *AnalysisService {
	logger := deps.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("expensecli/services")
	}
	ttl := cacheCfg.DatasetTTL
	if ttl <= 0 {
		ttl = config.DatasetCacheDuration
	}
	cleanup := cacheCfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = config.DatasetCacheCleanup
	}
	if workers <= 0 {
		workers = 1
	}

	s := &AnalysisService{
		engine:    deps.Engine,
		sheets:    deps.Sheets,
		cache:     cache.New(ttl, cleanup),
		ttl:       ttl,
		workers:   workers,
		timeout:   deps.Timeout,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		tracer:    tracer,
		logger:    logger.With(slog.String("component", "analysis_service")),
	}
	s.cache.OnEvicted(s.onEvicted)

	s.logger.Info("AnalysisService initialized",
		slog.Duration("dataset_ttl", ttl),
		slog.Int("workers", workers))
	return s
}

// DefaultConfig returns the engine configuration requests start from
func (s *AnalysisService) DefaultConfig() analytics.Config {
	return s.engine.Config()
}

// DatasetCount returns the number of cached snapshots
func (s *AnalysisService) DatasetCount() int {
	n := 0
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, datasetKeyPrefix) {
			n++
		}
	}
	return n
}

// StoreDataset normalizes a loaded dataset and caches it. Uploading the same
// content again refreshes and returns the existing snapshot with duplicate set.
func (s *AnalysisService) StoreDataset(ctx context.Context, ds *dataprocessing.Dataset) (snap *Snapshot, duplicate bool, err error) {
	ctx, span := s.tracer.Start(ctx, "analysis.store_dataset",
		trace.WithAttributes(
			attribute.String("dataset.source", ds.Source),
			attribute.Int("dataset.rows", len(ds.Rows)),
		))
	defer span.End()

	normalized := s.engine.Normalize(ds.Rows)
	fingerprint := Fingerprint(normalized.Records)

	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	now := time.Now().UTC()
	if id, found := s.cache.Get(fingerprintKeyPrefix + fingerprint); found {
		if existing, ok := s.lookup(id.(string)); ok {
			refreshed := *existing
			refreshed.ExpiresAt = now.Add(s.ttl)
			s.put(&refreshed)
			span.SetAttributes(attribute.Bool("dataset.duplicate", true))
			s.logger.InfoContext(ctx, "dataset already cached, refreshed expiry",
				slog.String("dataset_id", refreshed.ID),
				slog.String("fingerprint", fingerprint))
			return &refreshed, true, nil
		}
	}

	snap = &Snapshot{
		ID:          uuid.New().String(),
		Name:        ds.Name,
		Source:      ds.Source,
		Fingerprint: fingerprint,
		Sheets:      ds.SheetNames(),
		Records:     normalized.Records,
		Validation:  normalized.Summary(),
		UploadedAt:  now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.put(snap)

	span.SetAttributes(
		attribute.String("dataset.id", snap.ID),
		attribute.Int("dataset.accepted_rows", snap.Validation.AcceptedRows),
		attribute.Int("dataset.skipped_rows", snap.Validation.SkippedRows),
	)
	s.logger.InfoContext(ctx, "dataset stored",
		slog.String("dataset_id", snap.ID),
		slog.String("name", snap.Name),
		slog.String("source", snap.Source),
		slog.Int("accepted_rows", snap.Validation.AcceptedRows),
		slog.Int("skipped_rows", snap.Validation.SkippedRows))

	s.publish(ctx, events.MessageTypeDatasetStored, events.DatasetStored{
		DatasetID:    snap.ID,
		Name:         snap.Name,
		Source:       snap.Source,
		AcceptedRows: snap.Validation.AcceptedRows,
		SkippedRows:  snap.Validation.SkippedRows,
		ExpiresAt:    snap.ExpiresAt,
	})
	return snap, false, nil
}

// ImportSheets loads the named sheets, or the configured ones, from the
// spreadsheet source and stores them as a dataset
func (s *AnalysisService) ImportSheets(ctx context.Context, sheets []string) (*Snapshot, bool, error) {
	if s.sheets == nil {
		return nil, false, apperrors.NewConfigError(ErrSheetsDisabled.Error(), ErrSheetsDisabled)
	}
	ds, err := s.sheets.Load(ctx, sheets...)
	if err != nil {
		return nil, false, err
	}
	return s.StoreDataset(ctx, ds)
}

func (s *AnalysisService) put(snap *Snapshot) {
	s.cache.Set(datasetKeyPrefix+snap.ID, snap, s.ttl)
	s.cache.Set(fingerprintKeyPrefix+snap.Fingerprint, snap.ID, s.ttl)
}

func (s *AnalysisService) lookup(id string) (*Snapshot, bool) {
	v, found := s.cache.Get(datasetKeyPrefix + id)
	if !found {
		return nil, false
	}
	return v.(*Snapshot), true
}

// GetDataset returns a cached snapshot
func (s *AnalysisService) GetDataset(ctx context.Context, id string) (*Snapshot, error) {
	snap, ok := s.lookup(id)
	s.metrics.RecordCacheLookup(ctx, ok)
	if !ok {
		s.logger.DebugContext(ctx, "dataset cache miss", slog.String("dataset_id", id))
		return nil, apperrors.DatasetNotFound(id)
	}
	return snap, nil
}

// DeleteDataset evicts a snapshot and its cached reports
func (s *AnalysisService) DeleteDataset(ctx context.Context, id string) error {
	snap, err := s.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, reportKeyPrefix+id+":") {
			s.cache.Delete(key)
		}
	}
	s.cache.Delete(fingerprintKeyPrefix + snap.Fingerprint)
	s.cache.Delete(datasetKeyPrefix + id)
	s.logger.InfoContext(ctx, "dataset deleted", slog.String("dataset_id", id))
	return nil
}

// Records returns the snapshot records matching filter
func (s *AnalysisService) Records(ctx context.Context, id string, filter analytics.RecordFilter) ([]analytics.TransactionRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return filter.Apply(snap.Records), nil
}

// AnalyzeRows normalizes inline rows and analyzes them without caching a snapshot
func (s *AnalysisService) AnalyzeRows(ctx context.Context, rows []analytics.RawRow, cfg analytics.Config, filter analytics.RecordFilter) (*AnalysisResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	engine, err := s.engine.WithConfig(cfg)
	if err != nil {
		return nil, err
	}

	normalized := engine.Normalize(rows)
	return s.run(ctx, engine, dataprocessing.SourceInline, "", normalized.Summary(), filter.Apply(normalized.Records))
}

// AnalyzeDataset analyzes a cached snapshot. Results for an unfiltered run
// are cached alongside the snapshot and reused for report downloads.
func (s *AnalysisService) AnalyzeDataset(ctx context.Context, id string, cfg analytics.Config, filter analytics.RecordFilter) (*AnalysisResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	engine, err := s.engine.WithConfig(cfg)
	if err != nil {
		return nil, err
	}
	snap, err := s.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}

	key := reportKey(id, cfg)
	if filter.IsZero() {
		if v, found := s.cache.Get(key); found {
			s.logger.DebugContext(ctx, "analysis served from cache", slog.String("dataset_id", id))
			return v.(*AnalysisResult), nil
		}
	}

	result, err := s.run(ctx, engine, snap.Source, id, snap.Validation, filter.Apply(snap.Records))
	if err != nil {
		return nil, err
	}
	if ttl := time.Until(snap.ExpiresAt); filter.IsZero() && ttl > 0 {
		s.cache.Set(key, result, ttl)
	}
	return result, nil
}

func reportKey(id string, cfg analytics.Config) string {
	return reportKeyPrefix + id + ":" + strconv.Itoa(cfg.Horizon) + ":" +
		strconv.FormatBool(cfg.FillGaps) + ":" + strconv.FormatFloat(cfg.ConfidenceLevel, 'g', -1, 64)
}

// run analyzes the overall series and every category in parallel, then
// assembles the report exactly as the sequential engine would
func (s *AnalysisService) run(ctx context.Context, engine *analytics.Engine, source, datasetID string, validation analytics.ValidationSummary, records []analytics.TransactionRecord) (*AnalysisResult, error) {
	analysisID := uuid.New().String()
	start := time.Now()
	cfg := engine.Config()

	ctx, span := s.tracer.Start(ctx, "analysis.run",
		trace.WithAttributes(
			attribute.String("analysis.id", analysisID),
			attribute.String("analysis.source", source),
			attribute.Int("analysis.records", len(records)),
			attribute.Int("analysis.horizon", cfg.Horizon),
		))
	defer span.End()

	logger := s.logger.With(slog.String("analysis_id", analysisID))
	logger.InfoContext(ctx, "analysis started",
		slog.String("dataset_id", datasetID),
		slog.Int("records", len(records)),
		slog.Int("horizon", cfg.Horizon))
	s.publish(ctx, events.MessageTypeAnalysisStarted, events.AnalysisStarted{
		AnalysisID: analysisID,
		DatasetID:  datasetID,
		Rows:       validation.TotalRows,
		Horizon:    cfg.Horizon,
	})

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report, err := s.analyzeParallel(runCtx, engine, validation, records)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordAnalysisRun(ctx, infrastructure.AnalysisRun{Source: source, Rows: validation.TotalRows, Duration: duration, Err: err})
		logger.ErrorContext(ctx, "analysis failed",
			slog.String("dataset_id", datasetID),
			slog.String("error", err.Error()))
		s.publish(ctx, events.MessageTypeAnalysisFailed, events.AnalysisFailed{
			AnalysisID: analysisID,
			DatasetID:  datasetID,
			Code:       failureCode(err),
			Message:    err.Error(),
		})
		return nil, err
	}

	unforecasted := unforecastedCategories(report)
	s.metrics.RecordAnalysisRun(ctx, infrastructure.AnalysisRun{
		Source:      source,
		Rows:        validation.TotalRows,
		Skipped:     validation.SkippedRows,
		Categories:  len(report.Categories),
		Unavailable: len(unforecasted),
		Duration:    duration,
	})
	span.SetAttributes(
		attribute.Int("analysis.categories", len(report.Categories)),
		attribute.Int("analysis.insights", len(report.Insights)),
	)
	logger.InfoContext(ctx, "analysis completed",
		slog.String("dataset_id", datasetID),
		slog.Int("categories", len(report.Categories)),
		slog.Int("insights", len(report.Insights)),
		slog.Duration("duration", duration))

	s.publish(ctx, events.MessageTypeAnalysisCompleted, completedEvent(analysisID, datasetID, report, duration, unforecasted))

	return &AnalysisResult{
		AnalysisID:  analysisID,
		DatasetID:   datasetID,
		GeneratedAt: start.UTC(),
		Duration:    duration,
		Report:      report,
	}, nil
}

func (s *AnalysisService) analyzeParallel(ctx context.Context, engine *analytics.Engine, validation analytics.ValidationSummary, records []analytics.TransactionRecord) (*analytics.Report, error) {
	grand := analytics.TotalAmount(records)
	groups := analytics.GroupByCategory(records)
	names := analytics.SortedCategories(groups)

	var overall analytics.CategoryAnalysis
	categories := make([]analytics.CategoryAnalysis, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	g.Go(func() error {
		var err error
		overall, err = engine.AnalyzeCategory(gctx, analytics.OverallCategory, records, grand)
		return err
	})
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("analysis cancelled: %w", err)
			}
			analysis, err := engine.AnalyzeCategory(gctx, name, groups[name], grand)
			if err != nil {
				return err
			}
			categories[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	return engine.Assemble(validation, overall, categories), nil
}

func unforecastedCategories(report *analytics.Report) []string {
	var out []string
	for _, c := range report.Categories {
		if !c.Forecast.Available() {
			out = append(out, c.Category)
		}
	}
	return out
}

func completedEvent(analysisID, datasetID string, report *analytics.Report, duration time.Duration, unforecasted []string) events.AnalysisCompleted {
	scores := make([]events.CategoryScore, 0, len(report.Scores))
	top := analytics.RiskLow
	for _, sc := range report.Scores {
		scores = append(scores, events.CategoryScore{
			Category:        sc.Category,
			Rank:            sc.Rank,
			EfficiencyScore: sc.EfficiencyScore,
			RiskLevel:       sc.RiskLevel.String(),
		})
		if sc.RiskLevel > top {
			top = sc.RiskLevel
		}
	}
	topRisk := ""
	if len(scores) > 0 {
		topRisk = top.String()
	}
	return events.AnalysisCompleted{
		AnalysisID:   analysisID,
		DatasetID:    datasetID,
		Categories:   len(report.Categories),
		SkippedRows:  report.Validation.SkippedRows,
		TotalSpent:   report.Overall.Summary.TotalSpent,
		Insights:     len(report.Insights),
		TopRisk:      topRisk,
		Scores:       scores,
		DurationMS:   duration.Milliseconds(),
		Unforecasted: unforecasted,
	}
}

func failureCode(err error) string {
	switch {
	case analytics.IsConfigurationError(err):
		return apperrors.CodeInvalidConfig
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.CodeServiceUnavailable
	default:
		return apperrors.CodeInternal
	}
}

func (s *AnalysisService) publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, events.NewMessage(msgType, infrastructure.GetTraceID(ctx), data))
}

func (s *AnalysisService) onEvicted(key string, _ interface{}) {
	id, ok := strings.CutPrefix(key, datasetKeyPrefix)
	if !ok {
		return
	}
	s.logger.Info("dataset evicted", slog.String("dataset_id", id))
	s.publish(context.Background(), events.MessageTypeDatasetExpired, events.DatasetExpired{DatasetID: id})
}

// Fingerprint hashes records with BLAKE2b-256. Equal ledgers hash equally
// regardless of the file they came from.
func Fingerprint(records []analytics.TransactionRecord) string {
	h, _ := blake2b.New256(nil)
	for _, r := range records {
		fmt.Fprintf(h, "%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1f%s\x1e",
			r.Date.UTC().Format(time.RFC3339Nano),
			r.Category,
			r.SubCategory,
			strconv.FormatFloat(r.Amount, 'g', -1, 64),
			r.Department,
			r.PaymentMethod,
			r.Vendor,
			r.Notes)
	}
	return hex.EncodeToString(h.Sum(nil))
}
