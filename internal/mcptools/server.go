// Package mcptools exposes the job service as Model Context Protocol tools and
// resources, so assistants can submit and follow video analyses.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/api/handler"
	"github.com/kiranshivaraju/vidlens/internal/jobs"
	"github.com/kiranshivaraju/vidlens/internal/store"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 5 * time.Minute
	recentJobsPerPage   = 20
)

// Options tunes how analyze_video waits for a result.
type Options struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Tools holds the handlers behind every registered tool and resource.
type Tools struct {
	svc  handler.JobService
	opts Options
}

func NewTools(svc handler.JobService, opts Options) *Tools {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = defaultMaxWait
	}
	return &Tools{svc: svc, opts: opts}
}

// NewServer builds an MCP server with every vidlens tool and resource registered.
func NewServer(svc handler.JobService, version string, opts Options) *server.MCPServer {
	s := server.NewMCPServer("vidlens", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)
	NewTools(svc, opts).Register(s)
	return s
}

// Register adds the tools and resources to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("analyze_video",
		mcp.WithDescription("Download a video and analyze it with AI. By default waits for the result."),
		mcp.WithString("url", mcp.Required(),
			mcp.Description("Video URL (Instagram reel/post/IGTV, YouTube, TikTok)")),
		mcp.WithString("analysis_type",
			mcp.Description("Kind of analysis to run"),
			mcp.Enum(analysisTypeNames()...),
			mcp.DefaultString(string(models.AnalysisComprehensive))),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the job to finish before returning"),
			mcp.DefaultBool(true)),
	), t.analyze)

	s.AddTool(mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status, progress and result of an analysis job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID returned by analyze_video")),
	), t.jobStatus)

	s.AddTool(mcp.NewTool("list_recent_analyses",
		mcp.WithDescription("List analysis jobs, newest first"),
		mcp.WithNumber("limit", mcp.Description("Jobs per page (1-100)"), mcp.DefaultNumber(10)),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1"), mcp.DefaultNumber(1)),
		mcp.WithString("status", mcp.Description("Only jobs with this status")),
	), t.listRecent)

	s.AddTool(mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or processing analysis job"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID to cancel")),
	), t.cancel)

	s.AddTool(mcp.NewTool("get_system_stats",
		mcp.WithDescription("Job counts by status and disk usage"),
	), t.stats)

	s.AddTool(mcp.NewTool("get_video_info",
		mcp.WithDescription("Inspect a video URL without analyzing it"),
		mcp.WithString("url", mcp.Required(), mcp.Description("Video URL")),
	), t.videoInfo)

	s.AddResourceTemplate(mcp.NewResourceTemplate("analysis://{job_id}", "Analysis result",
		mcp.WithTemplateDescription("Status and result of one analysis job"),
		mcp.WithTemplateMIMEType("application/json"),
	), t.analysisResource)

	s.AddResource(mcp.NewResource("jobs://recent", "Recent jobs",
		mcp.WithResourceDescription("The most recent analysis jobs"),
		mcp.WithMIMEType("application/json"),
	), t.recentResource)

	s.AddResource(mcp.NewResource("stats://system", "System statistics",
		mcp.WithResourceDescription("Job counts by status and disk usage"),
		mcp.WithMIMEType("application/json"),
	), t.statsResource)
}

func analysisTypeNames() []string {
	names := make([]string, len(models.AllAnalysisTypes))
	for i, at := range models.AllAnalysisTypes {
		names[i] = string(at)
	}
	return names
}

func (t *Tools) analyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	job, err := t.svc.CreateJob(ctx, jobs.CreateRequest{
		URL:          rawURL,
		AnalysisType: req.GetString("analysis_type", ""),
	})
	if err != nil {
		return toolError(err)
	}
	if !req.GetBool("wait", true) {
		return jsonResult(map[string]any{
			"job_id":  job.ID,
			"status":  job.Status,
			"message": "Video analysis job created successfully",
		})
	}

	view, err := t.wait(ctx, job.ID)
	if errors.Is(err, errWaitTimeout) {
		return mcp.NewToolResultError(fmt.Sprintf(
			"job %s is still %s after %s; check it later with get_job_status",
			job.ID, view.Status, t.opts.MaxWait)), nil
	}
	if err != nil {
		return toolError(err)
	}

	switch view.Status {
	case models.JobStatusFailed:
		msg := "unknown error"
		if view.ErrorMessage != nil {
			msg = *view.ErrorMessage
		}
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %s", msg)), nil
	case models.JobStatusCancelled:
		return mcp.NewToolResultError(fmt.Sprintf("job %s was cancelled", job.ID)), nil
	}
	return jsonResult(view)
}

var errWaitTimeout = errors.New("timed out waiting for job")

// wait polls the job until it is terminal. On timeout it returns the last
// snapshot with errWaitTimeout.
func (t *Tools) wait(ctx context.Context, id uuid.UUID) (*jobs.JobView, error) {
	deadline := time.NewTimer(t.opts.MaxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		view, err := t.svc.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if view.Status.IsTerminal() {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return view, errWaitTimeout
		case <-ticker.C:
		}
	}
}

func (t *Tools) jobStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := jobIDArg(req)
	if res != nil {
		return res, nil
	}
	view, err := t.svc.GetJob(ctx, id)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(view)
}

func (t *Tools) listRecent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	page := req.GetInt("page", 1)
	if limit < 1 || limit > 100 {
		return mcp.NewToolResultError("limit must be between 1 and 100"), nil
	}
	if page < 1 {
		return mcp.NewToolResultError("page must be at least 1"), nil
	}

	filter := store.JobFilter{Page: page, PerPage: limit}
	if s := req.GetString("status", ""); s != "" {
		status, err := models.ParseJobStatus(s)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = status
	}

	payload, err := t.jobPage(ctx, filter)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(payload)
}

type jobPage struct {
	Jobs    []*jobs.JobView `json:"jobs"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int             `json:"total"`
	HasNext bool            `json:"has_next"`
}

func (t *Tools) jobPage(ctx context.Context, filter store.JobFilter) (*jobPage, error) {
	list, total, err := t.svc.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*jobs.JobView, len(list))
	for i, j := range list {
		views[i] = &jobs.JobView{Job: j, Progress: j.Progress()}
	}
	return &jobPage{
		Jobs:    views,
		Page:    filter.Page,
		PerPage: filter.PerPage,
		Total:   total,
		HasNext: filter.Page*filter.PerPage < total,
	}, nil
}

func (t *Tools) cancel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, res := jobIDArg(req)
	if res != nil {
		return res, nil
	}
	if err := t.svc.CancelJob(ctx, id); err != nil {
		return toolError(err)
	}
	return jsonResult(map[string]any{
		"job_id":  id,
		"message": "Job cancelled successfully",
	})
}

func (t *Tools) stats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := t.svc.Stats(ctx)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(st)
}

func (t *Tools) videoInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info, err := t.svc.Inspect(ctx, rawURL)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(info)
}

func (t *Tools) analysisResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	raw := strings.TrimPrefix(req.Params.URI, "analysis://")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q", raw)
	}
	view, err := t.svc.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, view)
}

func (t *Tools) recentResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	page, err := t.jobPage(ctx, store.JobFilter{Page: 1, PerPage: recentJobsPerPage})
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, page)
}

func (t *Tools) statsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	st, err := t.svc.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, st)
}

func jobIDArg(req mcp.CallToolRequest) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString("job_id")
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(err.Error())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("job_id must be a valid UUID")
	}
	return id, nil
}

// toolError reports client-caused failures as tool errors the model can read
// and returns everything else as a protocol error.
func toolError(err error) (*mcp.CallToolResult, error) {
	var verr *jobs.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Message), nil
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError("Job not found"), nil
	case errors.Is(err, jobs.ErrNotCancellable):
		return mcp.NewToolResultError(err.Error()), nil
	case errors.Is(err, jobs.ErrSchedulerClosed):
		return mcp.NewToolResultError("Server is shutting down"), nil
	default:
		return nil, err
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(b)},
	}, nil
}
