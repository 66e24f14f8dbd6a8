package batch_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/internal/batch"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAnalyzer struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]int
	err      error
}

func newScriptedAnalyzer() *scriptedAnalyzer {
	return &scriptedAnalyzer{calls: map[string]int{}, failures: map[string]int{}, err: errors.New("503 overloaded")}
}

func (a *scriptedAnalyzer) Analyze(_ context.Context, path string, at models.AnalysisType, _ models.ProgressFunc) (*models.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	name := filepath.Base(path)
	a.calls[name]++
	if a.calls[name] <= a.failures[name] {
		return nil, a.err
	}
	text := fmt.Sprintf("[00:00] transcript of %s", name)
	return &models.AnalysisResult{
		AnalysisType: at,
		ModelUsed:    "mock-v1",
		RawResponse:  text,
		Structured: models.StructuredResult{
			FullText:   text,
			Transcript: []models.TranscriptLine{{Stamp: "00:00", Text: "transcript of " + name}},
		},
	}, nil
}

func (a *scriptedAnalyzer) callsFor(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func videoDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("video"), 0o644))
	}
	return dir
}

func fastOptions() batch.Options {
	return batch.Options{Attempts: 3, Delay: time.Millisecond}
}

func TestFindVideos(t *testing.T) {
	dir := videoDir(t, "b.mov", "a.mp4", "notes.txt", "c.WEBM")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp4"), 0o755))

	videos, err := batch.FindVideos(dir)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "a.mp4", filepath.Base(videos[0]))
	assert.Equal(t, "b.mov", filepath.Base(videos[1]))
	assert.Equal(t, "c.WEBM", filepath.Base(videos[2]))
}

func TestFindVideos_MissingDir(t *testing.T) {
	_, err := batch.FindVideos(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRunDir_WritesDocuments(t *testing.T) {
	dir := videoDir(t, "one.mp4", "two.mp4")
	an := newScriptedAnalyzer()

	sum, err := batch.NewRunner(an, fastOptions()).RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Zero(t, sum.Failed)

	doc, err := os.ReadFile(filepath.Join(dir, "one_transcription.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "# Video Transcription - one\n"))
	assert.Contains(t, string(doc), "**[00:00]** transcript of one.mp4")
}

func TestRunFile_RetriesTransientFailures(t *testing.T) {
	dir := videoDir(t, "flaky.mp4")
	an := newScriptedAnalyzer()
	an.failures["flaky.mp4"] = 2

	res := batch.NewRunner(an, fastOptions()).RunFile(context.Background(), filepath.Join(dir, "flaky.mp4"))
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, an.callsFor("flaky.mp4"))
	assert.FileExists(t, res.Document)
}

func TestRunFile_GivesUpAfterThreeAttempts(t *testing.T) {
	dir := videoDir(t, "broken.mp4")
	an := newScriptedAnalyzer()
	an.failures["broken.mp4"] = 10

	res := batch.NewRunner(an, fastOptions()).RunFile(context.Background(), filepath.Join(dir, "broken.mp4"))
	require.Error(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, an.callsFor("broken.mp4"))

	doc, err := os.ReadFile(res.Document)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "# Transcription Error - broken\n"))
	assert.Contains(t, string(doc), "## Error\n503 overloaded\n")
}

func TestRunFile_InvalidVideoIsNotRetried(t *testing.T) {
	dir := videoDir(t, "empty.mp4")
	an := newScriptedAnalyzer()
	an.failures["empty.mp4"] = 10
	an.err = fmt.Errorf("%w: video file is empty", ai.ErrInvalidVideo)

	res := batch.NewRunner(an, fastOptions()).RunFile(context.Background(), filepath.Join(dir, "empty.mp4"))
	require.ErrorIs(t, res.Err, ai.ErrInvalidVideo)
	assert.Equal(t, 1, res.Attempts)
}

func TestRunFile_SkipExisting(t *testing.T) {
	dir := videoDir(t, "done.mp4")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "done_transcription.md"), []byte("old"), 0o644))
	an := newScriptedAnalyzer()
	opts := fastOptions()
	opts.SkipExisting = true

	sum, err := batch.NewRunner(an, opts).RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, an.callsFor("done.mp4"))

	doc, err := os.ReadFile(filepath.Join(dir, "done_transcription.md"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(doc))
}

func TestRunFile_OutputDir(t *testing.T) {
	dir := videoDir(t, "clip.mkv")
	out := t.TempDir()
	opts := fastOptions()
	opts.OutputDir = out

	res := batch.NewRunner(newScriptedAnalyzer(), opts).RunFile(context.Background(), filepath.Join(dir, "clip.mkv"))
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(out, "clip_transcription.md"), res.Document)
	assert.FileExists(t, res.Document)
}

func TestRun_MixedSummary(t *testing.T) {
	dir := videoDir(t, "a.mp4", "b.mp4", "c.mp4")
	an := newScriptedAnalyzer()
	an.failures["b.mp4"] = 5

	sum, err := batch.NewRunner(an, fastOptions()).RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Results, 3)
	assert.Error(t, sum.Results[1].Err)
}

func TestRun_StopsWhenContextDone(t *testing.T) {
	dir := videoDir(t, "a.mp4", "b.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := batch.NewRunner(newScriptedAnalyzer(), fastOptions()).RunDir(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, sum.Results)
}

func TestRunSource_RecordsOrigin(t *testing.T) {
	dir := videoDir(t, "reel.mp4")
	src := models.MediaInfo{URL: "https://www.instagram.com/reel/C0deAbc123/", Title: "Sunset timelapse"}

	res := batch.NewRunner(newScriptedAnalyzer(), fastOptions()).
		RunSource(context.Background(), filepath.Join(dir, "reel.mp4"), src)
	require.NoError(t, res.Err)

	doc, err := os.ReadFile(res.Document)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "- **Title**: Sunset timelapse\n")
	assert.Contains(t, string(doc), "- **URL**: https://www.instagram.com/reel/C0deAbc123/\n")
}
