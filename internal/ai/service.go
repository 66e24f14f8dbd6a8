package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// MIMEType returns the upload content type for a supported video file.
func MIMEType(path string) (string, bool) {
	mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	return mt, ok
}

// AnalysisService uploads a local video to the provider, waits for it to be
// usable and asks the model for one analysis. It never retries.
type AnalysisService struct {
	provider    models.AssetProvider
	cfg         config.AIConfig
	maxFileSize int64
	logger      *slog.Logger
}

// NewAnalysisService creates a new AnalysisService. maxFileSize <= 0 disables
// the size check.
func NewAnalysisService(provider models.AssetProvider, cfg config.AIConfig, maxFileSize int64) *AnalysisService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	return &AnalysisService{
		provider:    provider,
		cfg:         cfg,
		maxFileSize: maxFileSize,
		logger:      slog.Default().With("provider", provider.Name()),
	}
}

// ValidateFile checks a local video before anything is sent over the network.
func (s *AnalysisService) ValidateFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: video file not found: %s", ErrInvalidVideo, path)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidVideo, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrInvalidVideo, path)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: video file is empty: %s", ErrInvalidVideo, path)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return 0, fmt.Errorf("%w: video file is %s, limit is %s", ErrInvalidVideo,
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(s.maxFileSize)))
	}
	if _, ok := MIMEType(path); !ok {
		return 0, fmt.Errorf("%w: unsupported video format: %s", ErrInvalidVideo, filepath.Base(path))
	}
	return info.Size(), nil
}

// Analyze runs one analysis of the video at path. progress receives
// milestones between 0 and 1; it may be nil.
func (s *AnalysisService) Analyze(ctx context.Context, path string, analysisType models.AnalysisType, progress models.ProgressFunc) (*models.AnalysisResult, error) {
	report := func(f float64) {
		if progress != nil {
			progress(f)
		}
	}
	start := time.Now()

	report(0.1)
	size, err := s.ValidateFile(path)
	if err != nil {
		return nil, err
	}
	mimeType, _ := MIMEType(path)
	s.logger.Info("video file validated", "path", path, "size", size)
	report(0.2)

	uploadCtx, cancel := withOptionalTimeout(ctx, s.cfg.UploadTimeout)
	asset, err := s.provider.Upload(uploadCtx, path, mimeType)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	s.logger.Info("video uploaded", "asset", asset.Name)

	if err := s.waitActive(ctx, asset); err != nil {
		return nil, err
	}
	report(0.5)

	genCtx, cancel := withOptionalTimeout(ctx, s.cfg.InferenceTimeout)
	text, err := s.provider.Generate(genCtx, asset, Prompt(analysisType))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	report(0.9)

	result := &models.AnalysisResult{
		AnalysisType:   analysisType,
		ModelUsed:      s.provider.Model(),
		FileSize:       size,
		ProcessingTime: time.Since(start).Seconds(),
		RawResponse:    text,
		Structured:     Extract(text, analysisType),
	}
	report(1.0)

	s.logger.Info("video analysis completed", "asset", asset.Name, "words", result.Structured.WordCount)
	return result, nil
}

// waitActive polls the asset until it is ACTIVE. A remote FAILED state is an
// error. Running out of MaxWait, or failing to read the state, only logs a
// warning and lets generation go ahead.
func (s *AnalysisService) waitActive(ctx context.Context, asset models.Asset) error {
	if asset.State == models.AssetActive {
		return nil
	}

	deadline := time.Now().Add(s.cfg.MaxWait)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		state, err := s.provider.Status(ctx, asset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("checking file state failed, proceeding", "asset", asset.Name, "error", err)
			return nil
		}
		switch state {
		case models.AssetActive:
			return nil
		case models.AssetFailed:
			return fmt.Errorf("%w: %s", ErrAssetFailed, asset.Name)
		}

		if !time.Now().Before(deadline) {
			s.logger.Warn("timeout waiting for file processing, proceeding anyway",
				"asset", asset.Name, "max_wait", s.cfg.MaxWait)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
