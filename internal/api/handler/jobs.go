package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/vidlens/internal/api/response"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// NewListJobsHandler returns an http.HandlerFunc for GET /api/jobs.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, ok := intParam(w, q.Get("page"), "page", 1, 1, 0)
		if !ok {
			return
		}
		perPage, ok := intParam(w, q.Get("per_page"), "per_page", defaultPerPage, 1, maxPerPage)
		if !ok {
			return
		}

		filter := store.JobFilter{Page: page, PerPage: perPage}
		if s := q.Get("status"); s != "" {
			status, err := models.ParseJobStatus(s)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
				return
			}
			filter.Status = status
		}

		list, total, err := svc.ListJobs(r.Context(), filter)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		views := make([]*jobs.JobView, len(list))
		for i, j := range list {
			views[i] = &jobs.JobView{Job: j, Progress: j.Progress()}
		}
		response.Collection(w, views, response.NewPaginationMeta(page, perPage, total))
	}
}

// NewDeleteJobHandler returns an http.HandlerFunc for DELETE /api/jobs/{job_id}.
// Files are removed unless cleanup_files=false.
func NewDeleteJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}

		cleanup := true
		if s := r.URL.Query().Get("cleanup_files"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
					"cleanup_files must be true or false", nil)
				return
			}
			cleanup = v
		}

		if err := svc.DeleteJob(r.Context(), id, cleanup); err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Message(w, "Job deleted successfully")
	}
}

// NewCancelJobHandler returns an http.HandlerFunc for POST /api/jobs/{job_id}/cancel.
func NewCancelJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.CancelJob(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Message(w, "Job cancelled successfully")
	}
}

// NewStatsHandler returns an http.HandlerFunc for GET /api/jobs/stats.
func NewStatsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, stats)
	}
}

// intParam parses an optional integer query value within [lo, hi]. A hi of
// zero means no upper bound.
func intParam(w http.ResponseWriter, raw, name string, def, lo, hi int) (int, bool) {
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err == nil && v >= lo && (hi == 0 || v <= hi) {
		return v, true
	}
	msg := fmt.Sprintf("%s must be an integer >= %d", name, lo)
	if hi > 0 {
		msg = fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi)
	}
	response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
	return 0, false
}
