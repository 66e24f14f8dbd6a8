package ai

import "github.com/kiranshivaraju/vidlens/pkg/models"

// sectionHeaders are the bold headers the comprehensive prompt asks for,
// keyed by the name they are stored under in the structured result.
var sectionHeaders = []struct {
	Key    string
	Header string
}{
	{"summary", "Summary"},
	{"visual", "Visual Analysis"},
	{"audio", "Audio Analysis"},
	{"themes", "Themes and Messages"},
	{"timestamps", "Key Timestamps"},
	{"insights", "Insights"},
}

var prompts = map[models.AnalysisType]string{
	models.AnalysisComprehensive: `Analyze this video comprehensively and provide:

1. **Summary**: Describe the main content of the video in 2-3 sentences.

2. **Visual Analysis**:
   - Main scenes
   - Important objects, people or visual elements
   - Visual quality and style

3. **Audio Analysis**:
   - Transcription of speech or narration, if any
   - Background music or sound effects
   - Tone and emotion of the audio

4. **Themes and Messages**:
   - Main themes
   - Message or purpose of the video
   - Apparent target audience

5. **Key Timestamps**:
   - Key moments with timestamps (MM:SS)
   - Significant scene or topic changes

6. **Insights**:
   - Cultural or social context
   - Notable production techniques
   - Emotional or persuasive impact

Use exactly the bold headers above.`,

	models.AnalysisSummary: `Provide a concise summary of this video including:
1. Description of the main content (2-3 sentences)
2. Main points or messages
3. Approximate duration and visual quality
4. Suggested target audience

Be clear and objective.`,

	models.AnalysisTranscription: `Transcribe all of the audio in this video.

Write one segment per line in the form "[MM:SS] text", where MM:SS is the
time the segment starts. Include complete speech and narration, note
background music or sound effects in brackets on their own line, and mark
pauses or changes in tone.

Format it as a professional transcription.`,

	models.AnalysisVisualDescription: `Describe the visual elements of this video in detail:
1. Each main scene
2. People, objects and settings
3. Colors, lighting and visual style
4. Camera movements and transitions
5. Any visible text or graphics

Be specific and detailed.`,
}

// Prompt returns the instruction block for an analysis type. Unknown types
// get the comprehensive prompt.
func Prompt(t models.AnalysisType) string {
	if p, ok := prompts[t]; ok {
		return p
	}
	return prompts[models.AnalysisComprehensive]
}
