package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AnalysisType selects the prompt template and the expected output shape.
type AnalysisType string

const (
	AnalysisComprehensive     AnalysisType = "comprehensive"
	AnalysisSummary           AnalysisType = "summary"
	AnalysisTranscription     AnalysisType = "transcription"
	AnalysisVisualDescription AnalysisType = "visual_description"
)

// AllAnalysisTypes lists every supported analysis type.
var AllAnalysisTypes = []AnalysisType{
	AnalysisComprehensive,
	AnalysisSummary,
	AnalysisTranscription,
	AnalysisVisualDescription,
}

// ParseAnalysisType validates a client-supplied type. An empty string yields
// the comprehensive analysis.
func ParseAnalysisType(s string) (AnalysisType, error) {
	if s == "" {
		return AnalysisComprehensive, nil
	}
	for _, t := range AllAnalysisTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid analysis_type %q: must be one of comprehensive, summary, transcription, visual_description", s)
}

// Platform is the source a video URL was classified into.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformGeneric   Platform = "generic"
)

// MediaInfo is what a probe learns about a remote post without downloading it.
type MediaInfo struct {
	URL       string   `json:"url"`
	Platform  Platform `json:"platform"`
	Shortcode string   `json:"shortcode,omitempty"`
	IsVideo   bool     `json:"is_video"`
	Title     string   `json:"title,omitempty"`
	Uploader  string   `json:"uploader,omitempty"`
	Duration  float64  `json:"duration_seconds,omitempty"`
}

// VideoExtensions are the container formats the pipeline accepts.
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// IsVideoFile reports whether name carries a supported video extension.
func IsVideoFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}
