package http

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"expensecli/internal/services"
	apiv1 "expensecli/pkg/contracts/api/v1"
)

func datasetResponse(snap *services.Snapshot, duplicate bool) apiv1.DatasetResponse {
	resp := apiv1.DatasetResponse{
		ID:          snap.ID,
		Name:        snap.Name,
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		Sheets:      snap.Sheets,
		Categories:  snap.Categories(),
		Validation:  snap.Validation,
		UploadedAt:  snap.UploadedAt,
		ExpiresAt:   snap.ExpiresAt,
		Duplicate:   duplicate,
	}
	if resp.Sheets == nil {
		resp.Sheets = []string{}
	}
	if first, last, ok := snap.Span(); ok {
		resp.FirstPeriod = &first
		resp.LastPeriod = &last
	}
	return resp
}

func analysisResponse(result *services.AnalysisResult) apiv1.AnalysisResponse {
	return apiv1.AnalysisResponse{
		AnalysisID:  result.AnalysisID,
		DatasetID:   result.DatasetID,
		GeneratedAt: result.GeneratedAt,
		DurationMS:  result.Duration.Milliseconds(),
		Report:      result.Report,
	}
}

// downloadName derives an attachment name such as "ledger-report.xlsx" from a dataset name
func downloadName(datasetName, suffix, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(datasetName), filepath.Ext(datasetName))
	if stem == "" || stem == "." {
		stem = "dataset"
	}
	return stem + "-" + suffix + "." + ext
}

// writeAttachment sends body as a file download
func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
