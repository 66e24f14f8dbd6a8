package ai

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/vidlens/pkg/models"
)

var sectionPatterns = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(sectionHeaders))
	for _, h := range sectionHeaders {
		m[h.Key] = regexp.MustCompile(`(?is)\*\*` + regexp.QuoteMeta(h.Header) + `:?\*\*:?\s*(.*?)(?:\*\*|\z)`)
	}
	return m
}()

// trailingMarker is the "2." of the next numbered item that a lazy section
// match picks up before stopping at the next bold header.
var trailingMarker = regexp.MustCompile(`\s*\n\s*\d+\.\s*$`)

var transcriptLine = regexp.MustCompile(`^\[(\d{1,2}):(\d{2})(?::(\d{2}))?\]\s*(.*)$`)

// Extract builds the structured view of a raw model response. Only the parts
// that make sense for the analysis type are filled in.
func Extract(raw string, t models.AnalysisType) models.StructuredResult {
	out := models.StructuredResult{
		FullText:  raw,
		WordCount: len(strings.Fields(raw)),
	}
	switch t {
	case models.AnalysisComprehensive:
		out.Sections = extractSections(raw)
	case models.AnalysisTranscription:
		out.Transcript = ParseTranscript(raw)
	}
	return out
}

func extractSections(raw string) map[string]string {
	sections := make(map[string]string)
	for key, re := range sectionPatterns {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		body := trailingMarker.ReplaceAllString(strings.TrimSpace(m[1]), "")
		if body != "" {
			sections[key] = body
		}
	}
	if len(sections) == 0 {
		return nil
	}
	return sections
}

// ParseTranscript reads "[MM:SS] text" (or "[HH:MM:SS] text") lines. Lines
// without a leading timestamp are skipped.
func ParseTranscript(raw string) []models.TranscriptLine {
	var lines []models.TranscriptLine
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "-*"))
		m := transcriptLine.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		var offset time.Duration
		stamp := fmt.Sprintf("%02d:%02d", a, b)
		if m[3] != "" {
			c, _ := strconv.Atoi(m[3])
			offset = time.Duration(a)*time.Hour + time.Duration(b)*time.Minute + time.Duration(c)*time.Second
			stamp = fmt.Sprintf("%02d:%02d:%02d", a, b, c)
		} else {
			offset = time.Duration(a)*time.Minute + time.Duration(b)*time.Second
		}
		lines = append(lines, models.TranscriptLine{
			Offset: offset,
			Stamp:  stamp,
			Text:   strings.TrimSpace(m[4]),
		})
	}
	return lines
}
