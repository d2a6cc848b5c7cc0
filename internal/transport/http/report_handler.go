package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"expensecli/internal/analytics"
	apierrors "expensecli/internal/errors"
	"expensecli/internal/exporter"
	"expensecli/internal/infrastructure"
	appmiddleware "expensecli/internal/middleware"
	"expensecli/internal/services"
	"expensecli/pkg/contracts"
)

// Report formats served by ReportHandler
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatHTML = "html"
	FormatJSON = "json"
)

// ReportFormats lists the downloadable report formats
var ReportFormats = []string{FormatXLSX, FormatCSV, FormatPDF, FormatHTML, FormatJSON}

var contentTypes = map[string]string{
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatCSV:  "text/csv; charset=utf-8",
	FormatPDF:  "application/pdf",
	FormatHTML: "text/html; charset=utf-8",
	FormatJSON: "application/json",
}

var csvTables = []string{
	exporter.TableSummary,
	exporter.TableSeries,
	exporter.TableForecast,
	exporter.TableScores,
	exporter.TableInsights,
}

// PDFRenderer prints a report to PDF
type PDFRenderer interface {
	Render(ctx context.Context, report *analytics.Report, meta exporter.ReportMeta) ([]byte, error)
}

// ReportHandler renders analysis reports of stored datasets as downloads
type ReportHandler struct {
	service      AnalysisServiceInterface
	pdf          PDFRenderer
	metrics      *infrastructure.AnalysisMetrics
	query        *appmiddleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewReportHandler creates the handler. A nil pdf renderer disables the pdf format.
func NewReportHandler(service AnalysisServiceInterface, pdf PDFRenderer, metrics *infrastructure.AnalysisMetrics, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ReportHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		service:      service,
		pdf:          pdf,
		metrics:      metrics,
		query:        appmiddleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		tracer:       otel.Tracer("expensecli/transport"),
		logger:       logger.With(slog.String("handler", "report")),
	}
}

// RegisterRoutes mounts the report download on r
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/datasets/{id}/report.{format}", h.Download)
}

// Download handles GET /api/v1/datasets/{id}/report.{format}. Query
// parameters horizon, fill_gaps and confidence_level override the engine
// defaults; table picks the csv table.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := chi.URLParam(r, "format")

	ctx, span := h.tracer.Start(r.Context(), "report.download",
		trace.WithAttributes(
			attribute.String("dataset.id", id),
			attribute.String("report.format", format),
		))
	defer span.End()
	r = r.WithContext(ctx)

	if _, ok := contentTypes[format]; !ok {
		h.errorHandler.HandleError(w, r, apierrors.UnsupportedFormat(format, ReportFormats))
		return
	}
	if format == FormatPDF && h.pdf == nil {
		h.errorHandler.HandleError(w, r, apierrors.New(http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable, "PDF rendering is not configured"))
		return
	}

	cfg, ok := h.configFromQuery(w, r)
	if !ok {
		return
	}
	table, ok := h.query.ValidateEnum(w, r, "table", csvTables, exporter.TableSummary)
	if !ok {
		return
	}

	snap, err := h.service.GetDataset(ctx, id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	result, err := h.service.AnalyzeDataset(ctx, id, cfg, analytics.RecordFilter{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.errorHandler.HandleError(w, r, err)
		return
	}

	start := time.Now()
	body, err := h.render(ctx, format, table, snap, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.errorHandler.HandleError(w, r, apierrors.NewRenderError(format, err))
		return
	}
	h.metrics.RecordReport(ctx, format)

	h.logger.InfoContext(ctx, "report rendered",
		slog.String("dataset_id", id),
		slog.String("format", format),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	suffix := "report"
	if format == FormatCSV {
		suffix = table
	}
	writeAttachment(w, contentTypes[format], downloadName(snap.Name, suffix, format), body)
}

func (h *ReportHandler) configFromQuery(w http.ResponseWriter, r *http.Request) (analytics.Config, bool) {
	cfg := h.service.DefaultConfig()
	var ok bool
	if cfg.Horizon, ok = h.query.ValidateInt(w, r, "horizon", analytics.MinHorizon, analytics.MaxHorizon, cfg.Horizon); !ok {
		return cfg, false
	}
	if cfg.FillGaps, ok = h.query.ValidateBool(w, r, "fill_gaps", cfg.FillGaps); !ok {
		return cfg, false
	}
	if cfg.ConfidenceLevel, ok = h.query.ValidateFloat(w, r, "confidence_level", 0, 1, cfg.ConfidenceLevel); !ok {
		return cfg, false
	}
	return cfg, true
}

func (h *ReportHandler) render(ctx context.Context, format, table string, snap *services.Snapshot, result *services.AnalysisResult) ([]byte, error) {
	meta := exporter.ReportMeta{
		DatasetName: snap.Name,
		GeneratedAt: result.GeneratedAt,
		Version:     contracts.Version,
	}

	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysisResponse(result)); err != nil {
			return nil, err
		}
	case FormatXLSX:
		if err := exporter.WriteWorkbook(&buf, exporter.BuildTables(result.Report)); err != nil {
			return nil, err
		}
	case FormatCSV:
		for _, t := range exporter.BuildTables(result.Report) {
			if t.Name == table {
				if err := exporter.EncodeTable(&buf, t); err != nil {
					return nil, err
				}
			}
		}
	case FormatHTML:
		if err := exporter.RenderHTML(&buf, result.Report, meta); err != nil {
			return nil, err
		}
	case FormatPDF:
		return h.pdf.Render(ctx, result.Report, meta)
	}
	return buf.Bytes(), nil
}
