// Package downloader resolves a source URL to a platform and fetches the video
// into a job-scoped directory using external fetch tools.
package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kiranshivaraju/vidlens/internal/config"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

var (
	ErrInvalidURL   = errors.New("invalid video URL")
	ErrNotVideo     = errors.New("post does not contain a video")
	ErrFileNotFound = errors.New("video file not found after download")
)

var shortcodePattern = regexp.MustCompile(`instagram\.com/(?:p|reel|tv)/([A-Za-z0-9_-]+)`)

var platformHosts = map[string]models.Platform{
	"youtube.com":       models.PlatformYouTube,
	"youtu.be":          models.PlatformYouTube,
	"music.youtube.com": models.PlatformYouTube,
	"instagram.com":     models.PlatformInstagram,
	"tiktok.com":        models.PlatformTikTok,
	"vm.tiktok.com":     models.PlatformTikTok,
}

// Classify maps a URL to a platform by hostname. Anything that is a well-formed
// http(s) URL but not a known host is generic.
func Classify(rawURL string) (models.Platform, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	if p, ok := platformHosts[host]; ok {
		return p, nil
	}
	return models.PlatformGeneric, nil
}

// ExtractShortcode pulls the post shortcode out of an Instagram /p/, /reel/ or /tv/ URL.
func ExtractShortcode(rawURL string) (string, error) {
	m := shortcodePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: no Instagram post shortcode in %q", ErrInvalidURL, rawURL)
	}
	return m[1], nil
}

const (
	maxFilenameLen   = 200 // characters
	maxFilenameBytes = 255 // per-name limit of common filesystems
)

// SanitizeFilename replaces characters that are invalid on common filesystems
// and caps the length, keeping the extension. Truncation never splits a
// character.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	}, name)

	if utf8.RuneCountInString(name) <= maxFilenameLen && len(name) <= maxFilenameBytes {
		return name
	}
	ext := filepath.Ext(name)
	stem := []rune(strings.TrimSuffix(name, ext))
	if keep := maxFilenameLen - 10; len(stem) > keep {
		stem = stem[:keep]
	}
	for len(stem) > 0 && len(string(stem))+len(ext) > maxFilenameBytes {
		stem = stem[:len(stem)-1]
	}
	return string(stem) + ext
}

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, lastLine(out.String()))
	}
	return out.Bytes(), nil
}

// Downloader fetches videos with yt-dlp, or instaloader for Instagram posts.
type Downloader struct {
	cfg    config.DownloadConfig
	runner Runner
	logger *slog.Logger
}

// New creates a Downloader. A nil runner uses ExecRunner.
func New(cfg config.DownloadConfig, runner Runner, logger *slog.Logger) *Downloader {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{cfg: cfg, runner: runner, logger: logger}
}

// Probe learns whether the URL points at a video without downloading it.
func (d *Downloader) Probe(ctx context.Context, rawURL string) (models.MediaInfo, error) {
	platform, err := Classify(rawURL)
	if err != nil {
		return models.MediaInfo{}, err
	}
	info := models.MediaInfo{URL: rawURL, Platform: platform}
	if platform == models.PlatformInstagram {
		if info.Shortcode, err = ExtractShortcode(rawURL); err != nil {
			return models.MediaInfo{}, err
		}
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	out, err := d.runner.Run(ctx, d.cfg.YtDlpPath,
		"--dump-single-json", "--no-warnings", "--skip-download", "--no-playlist", rawURL)
	if err != nil {
		// yt-dlp refuses image-only posts instead of reporting them.
		if strings.Contains(strings.ToLower(string(out)), "no video") {
			return info, nil
		}
		return models.MediaInfo{}, fmt.Errorf("probe %s: %w", platform, err)
	}

	var meta struct {
		Title    string  `json:"title"`
		Uploader string  `json:"uploader"`
		Duration float64 `json:"duration"`
		VCodec   string  `json:"vcodec"`
		Ext      string  `json:"ext"`
	}
	if err := json.Unmarshal(out, &meta); err != nil {
		return models.MediaInfo{}, fmt.Errorf("parse probe output: %w", err)
	}
	info.Title = meta.Title
	info.Uploader = meta.Uploader
	info.Duration = meta.Duration
	info.IsVideo = meta.Duration > 0 || (meta.VCodec != "" && meta.VCodec != "none") ||
		models.IsVideoFile("x."+meta.Ext)
	return info, nil
}

// Download fetches rawURL into dir and returns the local video path. progress
// receives coarse milestones; it may be nil.
func (d *Downloader) Download(ctx context.Context, rawURL, dir string, progress models.ProgressFunc) (string, error) {
	report := func(f float64) {
		if progress != nil {
			progress(f)
		}
	}

	platform, err := Classify(rawURL)
	if err != nil {
		return "", err
	}
	var shortcode string
	if platform == models.PlatformInstagram {
		if shortcode, err = ExtractShortcode(rawURL); err != nil {
			return "", err
		}
	}

	report(0.1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job dir: %w", err)
	}
	report(0.3)

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	report(0.5)
	if platform == models.PlatformInstagram {
		err = d.fetchInstagram(ctx, shortcode, dir)
	} else {
		err = d.fetchYtDlp(ctx, rawURL, dir)
	}
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	report(0.9)

	path, err := findVideo(dir, shortcode)
	if err != nil {
		d.logger.Error("no video file after download", "dir", dir, "platform", platform)
		return "", err
	}
	if path, err = sanitizeInPlace(path); err != nil {
		return "", err
	}
	report(1.0)

	d.logger.Info("video downloaded", "path", path, "platform", platform)
	return path, nil
}

func (d *Downloader) fetchInstagram(ctx context.Context, shortcode, dir string) error {
	_, err := d.runner.Run(ctx, d.cfg.InstaloaderPath,
		"--no-pictures",
		"--no-video-thumbnails",
		"--no-geotags",
		"--no-comments",
		"--no-compress-json",
		"--dirname-pattern="+dir,
		"--", "-"+shortcode,
	)
	return err
}

func (d *Downloader) fetchYtDlp(ctx context.Context, rawURL, dir string) error {
	_, err := d.runner.Run(ctx, d.cfg.YtDlpPath,
		"-f", d.cfg.Format,
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"-o", filepath.Join(dir, "%(title)s.%(ext)s"),
		rawURL,
	)
	return err
}

func (d *Downloader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.Timeout)
}

// findVideo locates the fetched file. Fetch tools do not name files
// predictably, so it tries the hint first, then any video in dir, then any
// video below dir.
func findVideo(dir, hint string) (string, error) {
	if hint != "" {
		matches, _ := filepath.Glob(filepath.Join(dir, "*"+hint+"*.mp4"))
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches[0], nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read job dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && models.IsVideoFile(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}

	var found string
	_ = filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		if !e.IsDir() && models.IsVideoFile(e.Name()) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if found == "" {
		return "", ErrFileNotFound
	}
	return found, nil
}

// sanitizeInPlace renames path when its base name is not filesystem safe.
func sanitizeInPlace(path string) (string, error) {
	base := filepath.Base(path)
	clean := SanitizeFilename(base)
	if clean == base {
		return path, nil
	}
	target := filepath.Join(filepath.Dir(path), clean)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("rename downloaded file: %w", err)
	}
	return target, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
