package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/vidlens/internal/api/response"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
)

const maxRequestBody = 1 << 20

// AnalyzeRequest is the body of POST /api/video/analyze. URL wins when both
// URL fields are set.
type AnalyzeRequest struct {
	InstagramURL string `json:"instagram_url"`
	URL          string `json:"url"`
	AnalysisType string `json:"analysis_type"`
}

func (r AnalyzeRequest) sourceURL() string {
	if u := strings.TrimSpace(r.URL); u != "" {
		return u
	}
	return strings.TrimSpace(r.InstagramURL)
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/video/analyze.
// It answers as soon as the job row exists; the work runs in the background.
func NewAnalyzeHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), jobs.CreateRequest{
			URL:          req.sourceURL(),
			AnalysisType: req.AnalysisType,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id":  job.ID.String(),
			"status":  job.Status,
			"message": "Video analysis job created successfully",
		})
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/video/status/{job_id}.
func NewStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		view, err := svc.GetJob(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, view)
	}
}

// NewInfoHandler returns an http.HandlerFunc for GET /api/video/info?url=.
func NewInfoHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Inspect(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, info)
	}
}
