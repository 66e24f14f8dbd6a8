package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

const (
	footer       = "*Generated using Gemini Video Understanding API*"
	dateLayout   = "2006-01-02 15:04:05"
	noTranscript = "No transcription returned."
)

// VideoInfo is the metadata block at the top of a Markdown document.
type VideoInfo struct {
	Filename    string
	Size        int64
	ProcessedAt time.Time
	SourceURL   string
	Title       string
	Description string
}

func (v VideoInfo) stem() string {
	return strings.TrimSuffix(v.Filename, filepath.Ext(v.Filename))
}

// Markdown renders a successful transcription. Parsed transcript lines are
// preferred; the raw response is used when none could be parsed.
func Markdown(info VideoInfo, result *models.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Video Transcription - %s\n\n", info.stem())
	writeInfo(&b, info)

	if d := strings.TrimSpace(info.Description); d != "" {
		fmt.Fprintf(&b, "## Description\n%s\n\n", d)
	}

	b.WriteString("## Transcription with Timestamps\n\n")
	switch {
	case result != nil && len(result.Structured.Transcript) > 0:
		for _, l := range result.Structured.Transcript {
			fmt.Fprintf(&b, "**[%s]** %s\n\n", l.Stamp, l.Text)
		}
	case result != nil && strings.TrimSpace(result.RawResponse) != "":
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(result.RawResponse))
	default:
		fmt.Fprintf(&b, "%s\n\n", noTranscript)
	}

	if result != nil {
		b.WriteString("## Analysis Metadata\n")
		fmt.Fprintf(&b, "- **Model**: %s\n", result.ModelUsed)
		fmt.Fprintf(&b, "- **Words**: %s\n", humanize.Comma(int64(result.Structured.WordCount)))
		fmt.Fprintf(&b, "- **Processing Time**: %.1fs\n\n", result.ProcessingTime)
	}

	b.WriteString("---\n\n")
	b.WriteString(footer + "\n")
	return b.String()
}

// ErrorMarkdown renders the document written in place of a transcription that
// could not be produced.
func ErrorMarkdown(info VideoInfo, cause error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcription Error - %s\n\n", info.stem())
	writeInfo(&b, info)
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	fmt.Fprintf(&b, "## Error\n%s\n", msg)
	return b.String()
}

func writeInfo(b *strings.Builder, info VideoInfo) {
	b.WriteString("## Video Information\n")
	fmt.Fprintf(b, "- **File**: %s\n", info.Filename)
	fmt.Fprintf(b, "- **Size**: %s\n", humanize.IBytes(uint64(max(info.Size, 0))))
	if info.Title != "" {
		fmt.Fprintf(b, "- **Title**: %s\n", info.Title)
	}
	if info.SourceURL != "" {
		fmt.Fprintf(b, "- **URL**: %s\n", info.SourceURL)
	}
	fmt.Fprintf(b, "- **Processing Date**: %s\n\n", info.ProcessedAt.Format(dateLayout))
}

// MarkdownFilename is the document name written next to a video.
func MarkdownFilename(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_transcription.md"
}
