package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"expensecli/internal/analytics"
)

// Problem types following RFC 7807
const (
	TypeValidation      = "/errors/validation"
	TypeNotFound        = "/errors/not-found"
	TypeRateLimit       = "/errors/rate-limit"
	TypeInternal        = "/errors/internal"
	TypeServiceDown     = "/errors/service-unavailable"
	TypeTimeout         = "/errors/timeout"
	TypePayloadTooLarge = "/errors/payload-too-large"
	TypeMethod          = "/errors/method-not-allowed"
)

// Domain problem types
const (
	TypeAnalysisConfig    = "/errors/analysis/invalid-config"
	TypeDatasetNotFound   = "/errors/dataset/not-found"
	TypeDatasetUnreadable = "/errors/dataset/unreadable"
	TypeUnsupportedFormat = "/errors/dataset/unsupported-format"
	TypeReportFailed      = "/errors/report/render-failed"
	TypeSourceUnavailable = "/errors/source/unavailable"
	TypeWebSocketUpgrade  = "/errors/websocket/upgrade-failed"
)

var codeToType = map[string]string{
	CodeInvalidRequest:     TypeValidation,
	CodeValidationFailed:   TypeValidation,
	CodeInvalidConfig:      TypeAnalysisConfig,
	CodeNotFound:           TypeNotFound,
	CodeDatasetNotFound:    TypeDatasetNotFound,
	CodeUnsupportedFormat:  TypeUnsupportedFormat,
	CodePayloadTooLarge:    TypePayloadTooLarge,
	CodeUnreadableDataset:  TypeDatasetUnreadable,
	CodeRateLimitExceeded:  TypeRateLimit,
	CodeReportFailed:       TypeReportFailed,
	CodeSourceUnavailable:  TypeSourceUnavailable,
	CodeServiceUnavailable: TypeServiceDown,
	CodeWebSocketUpgrade:   TypeWebSocketUpgrade,
}

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The analysis took too long to complete and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var cfgErr *analytics.ConfigurationError
	if errors.As(err, &cfgErr) {
		return h.apiErrorToProblem(InvalidAnalysisConfig(cfgErr.Field, cfgErr.Message, cfgErr.Value), r)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType, ok := codeToType[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	var apiErr *APIError
	switch appErr.Type {
	case ErrTypeParsing:
		apiErr = UnreadableDataset(appErr)
	case ErrTypeValidation, ErrTypeConfig:
		apiErr = NewWithDetails(http.StatusBadRequest, CodeValidationFailed, appErr.Message, appErr.Context)
	case ErrTypeNotFound:
		apiErr = New(http.StatusNotFound, CodeNotFound, appErr.Message)
	case ErrTypeSource:
		apiErr = NewWithDetails(http.StatusBadGateway, CodeSourceUnavailable, appErr.Message, appErr.Context)
	case ErrTypeRender:
		format, _ := appErr.Context["format"].(string)
		var cause error = appErr
		if appErr.Cause != nil {
			cause = appErr.Cause
		}
		apiErr = ReportFailed(format, cause)
	default:
		apiErr = New(http.StatusInternalServerError, CodeInternal, "An unexpected error occurred while processing your request")
	}
	if apiErr.Details == nil || isEmptyContext(apiErr.Details) {
		apiErr.Details = nil
	}
	return h.apiErrorToProblem(apiErr, r)
}

func isEmptyContext(details interface{}) bool {
	m, ok := details.(map[string]interface{})
	return ok && len(m) == 0
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeMethod,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	render.Render(w, r, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
