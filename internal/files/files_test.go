package files_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/internal/files"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*files.Manager, config.StorageConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := config.StorageConfig{
		UploadDir:  filepath.Join(root, "videos"),
		ResultsDir: filepath.Join(root, "results"),
		TempDir:    filepath.Join(root, "temp"),
	}
	m, err := files.New(cfg)
	require.NoError(t, err)
	return m, cfg
}

func TestNew_CreatesDirectories(t *testing.T) {
	_, cfg := newManager(t)
	for _, dir := range []string{cfg.UploadDir, cfg.ResultsDir, cfg.TempDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPaths(t *testing.T) {
	m, cfg := newManager(t)
	id := uuid.MustParse("3f2c1a7e-0000-4000-8000-000000000001")
	assert.Equal(t, filepath.Join(cfg.UploadDir, id.String()), m.JobDir(id))
	assert.Equal(t, filepath.Join(cfg.ResultsDir, id.String()+"_analysis.json"), m.ResultPath(id))
}

func TestSaveAndLoadResult_ByteExact(t *testing.T) {
	m, _ := newManager(t)
	id := uuid.New()
	raw := "[00:00] Bom dia!\n[00:03] <script>nope</script> éè \U0001F3A5\n\n  trailing spaces  "

	path, err := m.SaveResult(id, &models.AnalysisResult{
		AnalysisType: models.AnalysisTranscription,
		ModelUsed:    "gemini-2.5-flash",
		RawResponse:  raw,
		Structured:   models.StructuredResult{FullText: raw},
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, m.ResultPath(id), path)

	env, err := m.LoadResult(id)
	require.NoError(t, err)
	assert.Equal(t, id, env.JobID)
	assert.Equal(t, raw, env.Analysis.RawResponse)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadResult_NotFound(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.LoadResult(uuid.New())
	assert.ErrorIs(t, err, files.ErrResultNotFound)
}

func TestLoadResult_Corrupt(t *testing.T) {
	m, _ := newManager(t)
	id := uuid.New()
	require.NoError(t, os.WriteFile(m.ResultPath(id), []byte("{broken"), 0o644))
	_, err := m.LoadResult(id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, files.ErrResultNotFound)
}

func TestCleanup(t *testing.T) {
	m, _ := newManager(t)
	id := uuid.New()
	other := uuid.New()

	for _, job := range []uuid.UUID{id, other} {
		require.NoError(t, os.MkdirAll(m.JobDir(job), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(m.JobDir(job), "clip.mp4"), []byte("v"), 0o644))
		_, err := m.SaveResult(job, &models.AnalysisResult{RawResponse: "x"}, time.Now())
		require.NoError(t, err)
	}

	require.NoError(t, m.Cleanup(id))

	assert.NoDirExists(t, m.JobDir(id))
	assert.NoFileExists(t, m.ResultPath(id))
	assert.DirExists(t, m.JobDir(other))
	assert.FileExists(t, m.ResultPath(other))
}

func TestCleanup_MissingIsNotAnError(t *testing.T) {
	m, _ := newManager(t)
	assert.NoError(t, m.Cleanup(uuid.New()))
}

func TestDiskUsage(t *testing.T) {
	m, cfg := newManager(t)
	id := uuid.New()
	require.NoError(t, os.MkdirAll(m.JobDir(id), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.JobDir(id), "a.mp4"), make([]byte, 1024*1024), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(m.JobDir(id), "b.json"), make([]byte, 512*1024), 0o644))

	usage, err := m.DiskUsage(context.Background())
	require.NoError(t, err)
	require.Len(t, usage, 3)

	up := usage["upload"]
	assert.Equal(t, cfg.UploadDir, up.Path)
	assert.EqualValues(t, 1536*1024, up.TotalSize)
	assert.Equal(t, 1.5, up.TotalSizeMB)
	assert.Equal(t, "1.5 MiB", up.Human)
	assert.Equal(t, 2, up.FileCount)

	assert.Zero(t, usage["results"].FileCount)
	assert.Zero(t, usage["temp"].TotalSize)
}

func TestDiskUsage_MissingDirectory(t *testing.T) {
	m, cfg := newManager(t)
	require.NoError(t, os.RemoveAll(cfg.TempDir))

	usage, err := m.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, files.DirUsage{Path: cfg.TempDir, Human: "0 B"}, usage["temp"])
}
