package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensecli/internal/analytics"
	"expensecli/internal/shared/testutil"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandlerHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"timeout", fmt.Errorf("analysis cancelled: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, TypeTimeout},
		{"api error", DatasetNotFound("d1"), http.StatusNotFound, TypeDatasetNotFound},
		{"wrapped api error", fmt.Errorf("load: %w", PayloadTooLarge(5)), http.StatusRequestEntityTooLarge, TypePayloadTooLarge},
		{"engine configuration", fmt.Errorf("engine configuration: %w", &analytics.ConfigurationError{Field: "horizon", Message: "must be between 1 and 24", Value: 30}), http.StatusBadRequest, TypeAnalysisConfig},
		{"parsing", NewParsingError("read csv", fmt.Errorf("bad quote")), http.StatusUnprocessableEntity, TypeDatasetUnreadable},
		{"source", NewSourceError("fetch spreadsheet", fmt.Errorf("403")), http.StatusBadGateway, TypeSourceUnavailable},
		{"render", NewRenderError("pdf", fmt.Errorf("no browser")), http.StatusInternalServerError, TypeReportFailed},
		{"render without cause", NewRenderError("xlsx", nil), http.StatusInternalServerError, TypeReportFailed},
		{"not found", NewNotFoundError("report"), http.StatusNotFound, TypeNotFound},
		{"storage", NewStorageError("write report", fmt.Errorf("disk full")), http.StatusInternalServerError, TypeInternal},
		{"unknown", fmt.Errorf("something odd"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			handler := NewErrorHandler(logger, false)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", nil)
			handler.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/v1/analysis", body["instance"])
			assert.NotContains(t, body, "stack")
			assert.True(t, logs.ContainsMessage("request failed"))
		})
	}
}

func TestErrorHandlerConfigurationDetails(t *testing.T) {
	handler := NewErrorHandler(nil, false)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis", nil)

	problem := handler.ErrorToProblem(&analytics.ConfigurationError{Field: "confidence_level", Message: "must be between 0 and 1", Value: 1.5}, req)

	assert.Equal(t, http.StatusBadRequest, problem.Status)
	assert.Equal(t, CodeInvalidConfig, problem.Extensions["error_code"])
	details, ok := problem.Extensions["details"].(ValidationError)
	require.True(t, ok)
	assert.Equal(t, "confidence_level", details.Field)
	assert.Equal(t, 1.5, details.Value)
}

func TestErrorHandlerNil(t *testing.T) {
	rec := httptest.NewRecorder()
	NewErrorHandler(nil, false).HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Zero(t, rec.Body.Len())
}

func TestErrorHandlerStack(t *testing.T) {
	handler := NewErrorHandler(nil, true)

	rec := httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))
	assert.Contains(t, decodeProblem(t, rec), "stack")

	rec = httptest.NewRecorder()
	handler.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), DatasetNotFound("x"))
	assert.NotContains(t, decodeProblem(t, rec), "stack", "client errors never carry a stack")
}

func TestErrorHandlerPanicAndRouting(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	handler := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	handler.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/boom", nil), "nil map write")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nil map write")
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")

	rec = httptest.NewRecorder()
	handler.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	handler.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/analysis", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, TypeMethod, decodeProblem(t, rec)["type"])
}
