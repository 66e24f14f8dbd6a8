package ai_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/vidlens/internal/ai"
	"github.com/kiranshivaraju/vidlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const comprehensiveResponse = `1. **Summary**: A cook prepares pasta in a small kitchen.

2. **Visual Analysis**:
   - Close-up shots of boiling water

3. **Audio Analysis**: Upbeat music with narration.

5. **Key Timestamps**:
   - 00:10 water boils
`

func TestExtract_ComprehensiveSections(t *testing.T) {
	s := ai.Extract(comprehensiveResponse, models.AnalysisComprehensive)

	assert.Equal(t, comprehensiveResponse, s.FullText)
	assert.Equal(t, "A cook prepares pasta in a small kitchen.", s.Sections["summary"])
	assert.Equal(t, "- Close-up shots of boiling water", s.Sections["visual"])
	assert.Equal(t, "Upbeat music with narration.", s.Sections["audio"])
	assert.Equal(t, "- 00:10 water boils", s.Sections["timestamps"])
	assert.NotContains(t, s.Sections, "themes")
	assert.NotContains(t, s.Sections, "insights")
	assert.Nil(t, s.Transcript)
}

func TestExtract_HeaderWithColonInsideBold(t *testing.T) {
	s := ai.Extract("**Summary:** short and sweet", models.AnalysisComprehensive)
	assert.Equal(t, "short and sweet", s.Sections["summary"])
}

func TestExtract_NoSectionsYieldsNil(t *testing.T) {
	s := ai.Extract("plain answer with no headers", models.AnalysisComprehensive)
	assert.Nil(t, s.Sections)
	assert.Equal(t, 5, s.WordCount)
}

func TestExtract_SummaryHasOnlyText(t *testing.T) {
	s := ai.Extract("**Summary**: x\n[00:01] y", models.AnalysisSummary)
	assert.Nil(t, s.Sections)
	assert.Nil(t, s.Transcript)
	assert.Equal(t, 4, s.WordCount)
}

func TestParseTranscript(t *testing.T) {
	raw := "Transcript:\n[00:00] Hello.\n- [01:05] Second line\n[1:02:03] Long video\nnot a line [00:09]\n[00:10]"
	lines := ai.ParseTranscript(raw)
	require.Len(t, lines, 4)

	assert.Equal(t, models.TranscriptLine{Offset: 0, Stamp: "00:00", Text: "Hello."}, lines[0])
	assert.Equal(t, 65*time.Second, lines[1].Offset)
	assert.Equal(t, "01:05", lines[1].Stamp)
	assert.Equal(t, "Second line", lines[1].Text)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, lines[2].Offset)
	assert.Equal(t, "01:02:03", lines[2].Stamp)
	assert.Equal(t, "", lines[3].Text)
}

func TestPrompt(t *testing.T) {
	assert.Contains(t, ai.Prompt(models.AnalysisTranscription), "[MM:SS]")
	assert.Contains(t, ai.Prompt(models.AnalysisComprehensive), "**Summary**")
	assert.Equal(t, ai.Prompt(models.AnalysisComprehensive), ai.Prompt("unknown"))
	for _, typ := range []models.AnalysisType{
		models.AnalysisComprehensive, models.AnalysisSummary,
		models.AnalysisTranscription, models.AnalysisVisualDescription,
	} {
		assert.NotEmpty(t, ai.Prompt(typ))
	}
}
