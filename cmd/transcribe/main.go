// Command transcribe writes a Markdown transcription for every video in a
// directory, or for a single video fetched from a URL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/internal/batch"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/downloader"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

type options struct {
	dir          string
	url          string
	out          string
	attempts     int
	delay        time.Duration
	skipExisting bool
	keep         bool
	analysisType string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := run(ctx, opts)
	if sum != nil {
		printSummary(os.Stdout, sum)
	}
	if err != nil {
		slog.Error("transcribe failed", "error", err)
		os.Exit(1)
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.dir, "dir", "", "directory of videos to transcribe")
	fs.StringVar(&o.url, "url", "", "download and transcribe a single video URL")
	fs.StringVar(&o.out, "out", "", "directory for the Markdown documents (default: next to each video)")
	fs.IntVar(&o.attempts, "attempts", 3, "attempts per video")
	fs.DurationVar(&o.delay, "delay", 10*time.Second, "delay between attempts")
	fs.BoolVar(&o.skipExisting, "skip-existing", false, "skip videos that already have a document")
	fs.BoolVar(&o.keep, "keep", false, "keep the downloaded video in -url mode")
	fs.StringVar(&o.analysisType, "type", string(models.AnalysisTranscription),
		"analysis type: comprehensive, summary, transcription, visual_description")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: transcribe -dir <videos> | -url <video-url> [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if (o.dir == "") == (o.url == "") {
		err := errors.New("exactly one of -dir or -url is required")
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return o, err
	}
	if _, err := models.ParseAnalysisType(o.analysisType); err != nil {
		fmt.Fprintln(stderr, err)
		return o, err
	}
	return o, nil
}

func run(ctx context.Context, o options) (*batch.Summary, error) {
	cfg, err := config.LoadStandalone()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", provider.Name(), "model", provider.Model())

	analysisType, _ := models.ParseAnalysisType(o.analysisType)
	out := o.out
	if out == "" && o.url != "" {
		out = cfg.Storage.ResultsDir
	}
	if out != "" {
		if err := os.MkdirAll(out, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	runner := batch.NewRunner(ai.NewAnalysisService(provider, cfg.AI, cfg.Storage.MaxFileSize), batch.Options{
		Attempts:     o.attempts,
		Delay:        o.delay,
		OutputDir:    out,
		SkipExisting: o.skipExisting,
		AnalysisType: analysisType,
	})

	if o.dir != "" {
		return runner.RunDir(ctx, o.dir)
	}
	return runURL(ctx, cfg, runner, o)
}

// runURL downloads one video into a scratch directory under the temp dir and
// transcribes it.
func runURL(ctx context.Context, cfg *config.Config, runner *batch.Runner, o options) (*batch.Summary, error) {
	dl := downloader.New(cfg.Download, nil, slog.Default())

	info, err := dl.Probe(ctx, o.url)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", o.url, err)
	}
	if !info.IsVideo {
		return nil, fmt.Errorf("%s: %w", o.url, downloader.ErrNotVideo)
	}

	scratch := filepath.Join(cfg.Storage.TempDir, uuid.NewString())
	if !o.keep {
		defer os.RemoveAll(scratch)
	}

	start := time.Now()
	video, err := dl.Download(ctx, o.url, scratch, nil)
	if err != nil {
		return nil, err
	}

	res := runner.RunSource(ctx, video, info)
	sum := &batch.Summary{Results: []batch.Result{res}, Duration: time.Since(start)}
	switch {
	case res.Skipped:
		sum.Skipped++
	case res.Err != nil:
		sum.Failed++
	default:
		sum.Succeeded++
	}
	return sum, nil
}

func printSummary(w io.Writer, sum *batch.Summary) {
	fmt.Fprintln(w, "\n=== Transcription Summary ===")
	for _, r := range sum.Results {
		status := "ok"
		switch {
		case r.Skipped:
			status = "skipped"
		case r.Err != nil:
			status = "FAILED: " + r.Err.Error()
		}
		fmt.Fprintf(w, "%-40s %s\n", filepath.Base(r.Video), status)
		if !r.Skipped {
			fmt.Fprintf(w, "  -> %s (%s attempt(s), %s)\n",
				r.Document, humanize.Comma(int64(r.Attempts)), r.Duration.Round(time.Millisecond))
		}
	}
	fmt.Fprintf(w, "\nVideos:    %s\n", humanize.Comma(int64(len(sum.Results))))
	fmt.Fprintf(w, "Succeeded: %d\n", sum.Succeeded)
	fmt.Fprintf(w, "Failed:    %d\n", sum.Failed)
	fmt.Fprintf(w, "Skipped:   %d\n", sum.Skipped)
	fmt.Fprintf(w, "Elapsed:   %s\n", sum.Duration.Round(time.Second))
}
