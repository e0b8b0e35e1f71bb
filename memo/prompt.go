package memo

import (
	"strings"
)

// TranscriptionInstruction accompanies the audio in every transcription request
const TranscriptionInstruction = "Please transcribe this audio file accurately. Return only the transcript text, no additional commentary."

const infographicPreamble = `Create a professional, high-quality infographic image that visually summarizes the following text. Use a clean layout, clear typography, and relevant icons or illustrations. The style should be modern and suitable for a presentation or social media.`

// InfographicPrompt builds the image prompt. The transcript is embedded
// verbatim between double quotes.
func InfographicPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString(infographicPreamble)
	sb.WriteString("\n\nText to visualize:\n\"")
	sb.WriteString(transcript)
	sb.WriteString("\"")
	return sb.String()
}
