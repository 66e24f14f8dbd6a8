// Package files owns the on-disk layout: one private directory per job under
// the upload dir, and one result envelope per job under the results dir.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/report"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"golang.org/x/sync/errgroup"
)

var ErrResultNotFound = errors.New("analysis result not found")

// Manager creates, reads and removes job artifacts.
type Manager struct {
	uploadDir  string
	resultsDir string
	tempDir    string
}

// New creates the managed directories if they do not exist.
func New(cfg config.StorageConfig) (*Manager, error) {
	m := &Manager{
		uploadDir:  cfg.UploadDir,
		resultsDir: cfg.ResultsDir,
		tempDir:    cfg.TempDir,
	}
	for _, dir := range []string{m.uploadDir, m.resultsDir, m.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return m, nil
}

// JobDir is the private download directory for a job.
func (m *Manager) JobDir(id uuid.UUID) string {
	return filepath.Join(m.uploadDir, id.String())
}

// ResultPath is where a job's result envelope is stored.
func (m *Manager) ResultPath(id uuid.UUID) string {
	return filepath.Join(m.resultsDir, id.String()+"_analysis.json")
}

// SaveResult writes the envelope for a job and returns its path. The file is
// written to a temp name first so readers never see a partial envelope.
func (m *Manager) SaveResult(id uuid.UUID, result *models.AnalysisResult, now time.Time) (string, error) {
	target := m.ResultPath(id)

	tmp, err := os.CreateTemp(m.resultsDir, id.String()+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := report.EncodeEnvelope(tmp, report.NewEnvelope(id, result, now)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close result file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store result file: %w", err)
	}

	slog.Info("analysis result saved", "job_id", id, "path", target)
	return target, nil
}

// LoadResult reads a job's envelope back.
func (m *Manager) LoadResult(id uuid.UUID) (report.Envelope, error) {
	f, err := os.Open(m.ResultPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return report.Envelope{}, ErrResultNotFound
		}
		return report.Envelope{}, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()
	return report.DecodeEnvelope(f)
}

// Cleanup removes the job directory and the result envelope. Missing files are
// not an error.
func (m *Manager) Cleanup(id uuid.UUID) error {
	dir := m.JobDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	if err := os.Remove(m.ResultPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove result file: %w", err)
	}
	slog.Info("job files cleaned up", "job_id", id, "dir", dir)
	return nil
}

// DirUsage summarizes one managed directory.
type DirUsage struct {
	Path        string  `json:"path"`
	TotalSize   int64   `json:"total_size"`
	TotalSizeMB float64 `json:"total_size_mb"`
	Human       string  `json:"total_size_human"`
	FileCount   int     `json:"file_count"`
}

// DiskUsage walks the upload, results and temp directories in parallel.
func (m *Manager) DiskUsage(ctx context.Context) (map[string]DirUsage, error) {
	dirs := []struct{ name, path string }{
		{"upload", m.uploadDir},
		{"results", m.resultsDir},
		{"temp", m.tempDir},
	}
	out := make([]DirUsage, len(dirs))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dirs {
		g.Go(func() error {
			u, err := dirUsage(ctx, d.path)
			if err != nil {
				return fmt.Errorf("disk usage for %s: %w", d.name, err)
			}
			out[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usage := make(map[string]DirUsage, len(dirs))
	for i, d := range dirs {
		usage[d.name] = out[i]
	}
	return usage, nil
}

func dirUsage(ctx context.Context, root string) (DirUsage, error) {
	u := DirUsage{Path: root}
	err := filepath.WalkDir(root, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !e.Type().IsRegular() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		u.TotalSize += info.Size()
		u.FileCount++
		return nil
	})
	if err != nil {
		return DirUsage{}, err
	}
	u.TotalSizeMB = math.Round(float64(u.TotalSize)/humanize.MiByte*100) / 100
	u.Human = humanize.IBytes(uint64(u.TotalSize))
	return u, nil
}
