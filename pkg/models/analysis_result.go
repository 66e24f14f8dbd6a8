package models

import "time"

// AnalysisResult is the output of one remote analysis call. Structured holds the
// parts that could be extracted from the raw text for the requested type.
type AnalysisResult struct {
	AnalysisType   AnalysisType     `json:"analysis_type"`
	ModelUsed      string           `json:"model_used"`
	FileSize       int64            `json:"file_size"`
	ProcessingTime float64          `json:"processing_time_seconds"`
	RawResponse    string           `json:"raw_response"`
	Structured     StructuredResult `json:"structured"`
}

// StructuredResult is shaped per analysis type: Sections is only populated for
// comprehensive results and Transcript only for transcriptions.
type StructuredResult struct {
	FullText   string            `json:"full_text"`
	WordCount  int               `json:"word_count"`
	Sections   map[string]string `json:"sections,omitempty"`
	Transcript []TranscriptLine  `json:"transcript,omitempty"`
}

// TranscriptLine is one "[MM:SS] text" line of a transcription.
type TranscriptLine struct {
	Offset time.Duration `json:"offset_ns"`
	Stamp  string        `json:"timestamp"`
	Text   string        `json:"text"`
}
