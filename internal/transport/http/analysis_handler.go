package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"expensecli/internal/analytics"
	"expensecli/internal/dataprocessing"
	apierrors "expensecli/internal/errors"
	"expensecli/internal/exporter"
	appmiddleware "expensecli/internal/middleware"
	"expensecli/internal/validation"
	apiv1 "expensecli/pkg/contracts/api/v1"
)

const (
	uploadField = "file"
	// multipartMemory is held in memory before parts spill to temp files
	multipartMemory = 32 << 20
	// multipartOverhead allows for boundaries and headers around the file part
	multipartOverhead = 1 << 20
)

// AnalysisHandler serves dataset uploads, record queries and analysis runs
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	loader       *dataprocessing.Loader
	files        *validation.FileValidator
	validate     *validator.Validate
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewAnalysisHandler creates the handler
func NewAnalysisHandler(service AnalysisServiceInterface, loader *dataprocessing.Loader, files *validation.FileValidator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AnalysisHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		service:      service,
		loader:       loader,
		files:        files,
		validate:     appmiddleware.NewValidator(),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// RegisterRoutes mounts the dataset and analysis endpoints on r
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.With(appmiddleware.ContentTypeValidator("application/json")).Post("/analysis", h.Analyze)
	r.Route("/datasets", func(r chi.Router) {
		r.Post("/", h.UploadDataset)
		r.Post("/sheets", h.ImportSheets)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetDataset)
			r.Delete("/", h.DeleteDataset)
			r.Get("/records", h.Records)
			r.Post("/analysis", h.AnalyzeDataset)
		})
	})
}

// decode reads a JSON body into v and validates its struct tags. An empty
// body leaves v at its zero value.
func (h *AnalysisHandler) decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return apierrors.InvalidRequestWithError(err)
	}
	return appmiddleware.ValidateStruct(h.validate, v)
}

func recordFilter(req *apiv1.RecordFilterRequest) (analytics.RecordFilter, error) {
	filter, err := req.RecordFilter()
	if err != nil {
		return filter, apierrors.ErrValidation("filter", err.Error())
	}
	return filter, nil
}

// Analyze handles POST /api/v1/analysis
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req apiv1.AnalysisRequest
	if err := h.decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	filter, err := recordFilter(req.Filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rows := make([]analytics.RawRow, len(req.Rows))
	for i, row := range req.Rows {
		rows[i] = analytics.RawRow(row)
	}

	result, err := h.service.AnalyzeRows(ctx, rows, req.Apply(h.service.DefaultConfig()), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "inline analysis completed",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("analysis_id", result.AnalysisID),
		slog.Int("rows", len(rows)))
	render.JSON(w, r, analysisResponse(result))
}

// UploadDataset handles POST /api/v1/datasets with a multipart "file" part
func (h *AnalysisHandler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if limit := h.files.MaxBytes(); limit > 0 {
		if r.ContentLength > limit+multipartOverhead {
			h.errorHandler.HandleError(w, r, apierrors.PayloadTooLarge(limit))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errorHandler.HandleError(w, r, apierrors.PayloadTooLarge(h.files.MaxBytes()))
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(uploadField, "request must be multipart/form-data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(uploadField, `multipart field "file" is required`))
		return
	}
	defer file.Close()

	if err := h.files.ValidateUpload(header.Filename, header.Size); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ds, err := h.loader.Read(file, header.Filename)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	snap, duplicate, err := h.service.StoreDataset(ctx, ds)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "dataset uploaded",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("dataset_id", snap.ID),
		slog.String("file", header.Filename),
		slog.Int64("size", header.Size),
		slog.Bool("duplicate", duplicate))

	if !duplicate {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, datasetResponse(snap, duplicate))
}

// ImportSheets handles POST /api/v1/datasets/sheets
func (h *AnalysisHandler) ImportSheets(w http.ResponseWriter, r *http.Request) {
	var req apiv1.SheetsImportRequest
	if err := h.decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	snap, duplicate, err := h.service.ImportSheets(r.Context(), req.Sheets)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if !duplicate {
		render.Status(r, http.StatusCreated)
	}
	render.JSON(w, r, datasetResponse(snap, duplicate))
}

// GetDataset handles GET /api/v1/datasets/{id}
func (h *AnalysisHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.GetDataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, datasetResponse(snap, false))
}

// DeleteDataset handles DELETE /api/v1/datasets/{id}
func (h *AnalysisHandler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Records handles GET /api/v1/datasets/{id}/records. The query accepts
// category (repeatable or comma separated), min_amount, max_amount, from, to
// and format=json|csv.
func (h *AnalysisHandler) Records(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	req, err := h.filterFromQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	filter, err := recordFilter(req)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format != "" && format != "json" && format != "csv" {
		h.errorHandler.HandleError(w, r, apierrors.UnsupportedFormat(format, []string{"json", "csv"}))
		return
	}

	records, err := h.service.Records(ctx, id, filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if format == "csv" {
		snap, err := h.service.GetDataset(ctx, id)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		var buf bytes.Buffer
		if err := exporter.EncodeTable(&buf, exporter.RecordsTable(records)); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.NewRenderError("csv", err))
			return
		}
		writeAttachment(w, "text/csv; charset=utf-8", downloadName(snap.Name, "records", "csv"), buf.Bytes())
		return
	}

	if records == nil {
		records = []analytics.TransactionRecord{}
	}
	render.JSON(w, r, apiv1.RecordsResponse{
		DatasetID: id,
		Count:     len(records),
		Total:     analytics.TotalAmount(records),
		Records:   records,
	})
}

func (h *AnalysisHandler) filterFromQuery(r *http.Request) (*apiv1.RecordFilterRequest, error) {
	q := r.URL.Query()
	req := &apiv1.RecordFilterRequest{
		From: q.Get("from"),
		To:   q.Get("to"),
	}
	for _, v := range q["category"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				req.Categories = append(req.Categories, c)
			}
		}
	}

	amounts := []struct {
		param  string
		target **float64
	}{
		{"min_amount", &req.MinAmount},
		{"max_amount", &req.MaxAmount},
	}
	for _, a := range amounts {
		raw := q.Get(a.param)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, apierrors.ErrValidation(a.param, a.param+" must be a number")
		}
		*a.target = &f
	}

	if err := appmiddleware.ValidateStruct(h.validate, req); err != nil {
		return nil, err
	}
	return req, nil
}

// AnalyzeDataset handles POST /api/v1/datasets/{id}/analysis. An empty body
// runs with the server defaults.
func (h *AnalysisHandler) AnalyzeDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req apiv1.DatasetAnalysisRequest
	if err := h.decode(r, &req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	filter, err := recordFilter(req.Filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.AnalyzeDataset(ctx, id, req.Apply(h.service.DefaultConfig()), filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, analysisResponse(result))
}
