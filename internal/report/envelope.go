// Package report turns analysis output into the artifacts that leave the
// pipeline: the per-job JSON envelope and the Markdown transcription document.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vidlens/pkg/models"
)

// Envelope is the on-disk form of a completed job's result.
type Envelope struct {
	JobID     uuid.UUID              `json:"job_id"`
	Timestamp time.Time              `json:"timestamp"`
	Analysis  *models.AnalysisResult `json:"analysis"`
}

func NewEnvelope(jobID uuid.UUID, result *models.AnalysisResult, now time.Time) Envelope {
	return Envelope{JobID: jobID, Timestamp: now.UTC(), Analysis: result}
}

// EncodeEnvelope writes env as indented JSON. HTML characters are not escaped
// so model text is stored as written.
func EncodeEnvelope(w io.Writer, env Envelope) error {
	if env.Analysis == nil {
		return fmt.Errorf("envelope for job %s has no analysis", env.JobID)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode result envelope: %w", err)
	}
	return nil
}

func DecodeEnvelope(r io.Reader) (Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("decode result envelope: %w", err)
	}
	if env.Analysis == nil {
		return Envelope{}, fmt.Errorf("result envelope for job %s has no analysis", env.JobID)
	}
	return env, nil
}
