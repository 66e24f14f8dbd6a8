// Package batch transcribes many local videos in sequence, writing one
// Markdown document per video.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/internal/report"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// Analyzer runs one remote analysis of a local video.
type Analyzer interface {
	Analyze(ctx context.Context, path string, analysisType models.AnalysisType, progress models.ProgressFunc) (*models.AnalysisResult, error)
}

// Options tune a Runner. Zero values get the defaults noted per field.
type Options struct {
	// Attempts per video, default 3.
	Attempts int
	// Delay between attempts, default 10s.
	Delay time.Duration
	// OutputDir receives the documents; empty writes next to each video.
	OutputDir string
	// SkipExisting leaves videos that already have a document alone.
	SkipExisting bool
	AnalysisType models.AnalysisType
}

// Runner transcribes videos one at a time.
type Runner struct {
	analyzer Analyzer
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func NewRunner(analyzer Analyzer, opts Options) *Runner {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 10 * time.Second
	}
	if opts.AnalysisType == "" {
		opts.AnalysisType = models.AnalysisTranscription
	}
	return &Runner{
		analyzer: analyzer,
		opts:     opts,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// Result is the outcome for one video.
type Result struct {
	Video    string
	Document string
	Attempts int
	Skipped  bool
	Duration time.Duration
	Err      error
}

// Summary aggregates a run.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// FindVideos lists the supported video files directly inside dir, sorted by
// name.
func FindVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read video dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && models.IsVideoFile(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// RunDir processes every video in dir. It stops early only when ctx is done.
func (r *Runner) RunDir(ctx context.Context, dir string) (*Summary, error) {
	videos, err := FindVideos(dir)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, videos), nil
}

// Run processes the given videos in order.
func (r *Runner) Run(ctx context.Context, videos []string) *Summary {
	start := r.now()
	sum := &Summary{}
	for i, v := range videos {
		if ctx.Err() != nil {
			break
		}
		r.logger.Info("processing video", "index", i+1, "total", len(videos), "video", filepath.Base(v))
		res := r.RunFile(ctx, v)
		switch {
		case res.Skipped:
			sum.Skipped++
		case res.Err != nil:
			sum.Failed++
		default:
			sum.Succeeded++
		}
		sum.Results = append(sum.Results, res)
	}
	sum.Duration = r.now().Sub(start)
	return sum
}

// RunFile transcribes one video with bounded retries and always writes a
// document: the transcription, or an error document after the last attempt.
func (r *Runner) RunFile(ctx context.Context, video string) Result {
	return r.runFile(ctx, video, models.MediaInfo{})
}

// RunSource is RunFile for a video fetched from src; the document records
// where it came from.
func (r *Runner) RunSource(ctx context.Context, video string, src models.MediaInfo) Result {
	return r.runFile(ctx, video, src)
}

func (r *Runner) runFile(ctx context.Context, video string, src models.MediaInfo) Result {
	start := r.now()
	res := Result{Video: video, Document: r.documentPath(video)}

	if r.opts.SkipExisting {
		if _, err := os.Stat(res.Document); err == nil {
			res.Skipped = true
			return res
		}
	}

	result, attempts, err := r.analyze(ctx, video)
	res.Attempts = attempts
	res.Err = err

	info := report.VideoInfo{
		Filename:    filepath.Base(video),
		ProcessedAt: r.now(),
		SourceURL:   src.URL,
		Title:       src.Title,
	}
	if st, statErr := os.Stat(video); statErr == nil {
		info.Size = st.Size()
	}

	var doc string
	if err != nil {
		r.logger.Error("transcription failed", "video", video, "attempts", attempts, "error", err)
		doc = report.ErrorMarkdown(info, err)
	} else {
		doc = report.Markdown(info, result)
	}
	if writeErr := os.WriteFile(res.Document, []byte(doc), 0o644); writeErr != nil {
		res.Err = errors.Join(res.Err, fmt.Errorf("write document: %w", writeErr))
	}
	res.Duration = r.now().Sub(start)
	return res
}

func (r *Runner) analyze(ctx context.Context, video string) (*models.AnalysisResult, int, error) {
	var (
		result   *models.AnalysisResult
		attempts int
	)
	op := func() error {
		attempts++
		var err error
		result, err = r.analyzer.Analyze(ctx, video, r.opts.AnalysisType, nil)
		if errors.Is(err, ai.ErrInvalidVideo) {
			return backoff.Permanent(err)
		}
		if err != nil {
			r.logger.Warn("attempt failed", "video", filepath.Base(video), "attempt", attempts, "error", err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.Delay), uint64(r.opts.Attempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, attempts, err
	}
	return result, attempts, nil
}

func (r *Runner) documentPath(video string) string {
	dir := r.opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(video)
	}
	return filepath.Join(dir, report.MarkdownFilename(video))
}
