// Package scribe provides a client for the ElevenLabs Scribe speech-to-text
// API, used as an alternative transcription backend for voice memos.
package scribe

// Model IDs for ElevenLabs Scribe API
const (
	ModelScribeV1             = "scribe_v1"
	ModelScribeV1Experimental = "scribe_v1_experimental"
	ModelScribeV2Realtime     = "scribe_v2_realtime"
)

// WordType represents the type of a transcribed element
type WordType string

const (
	WordTypeWord       WordType = "word"
	WordTypeSpacing    WordType = "spacing"
	WordTypeAudioEvent WordType = "audio_event"
)

// TranscribeRequest configures a transcription request
type TranscribeRequest struct {
	// Audio is the recording to transcribe
	Audio []byte

	// Filename is reported to the API; its extension hints the format
	Filename string

	// Model is the model ID to use (scribe_v1, scribe_v1_experimental)
	Model string

	// Language is an ISO-639 code; empty lets the model detect it
	Language string

	// TagAudioEvents annotates laughter, applause and similar sounds
	TagAudioEvents bool

	// Diarize enables speaker labels
	Diarize *bool
}

// TranscribeResponse is the response from the speech-to-text endpoint
type TranscribeResponse struct {
	// LanguageCode is the detected language
	LanguageCode string `json:"language_code"`

	// LanguageProbability is the confidence of the detected language
	LanguageProbability float64 `json:"language_probability"`

	// Text is the full transcribed text
	Text string `json:"text"`

	// Words holds word-level timing
	Words []Word `json:"words"`
}

// Word represents a transcribed word with timing
type Word struct {
	Text      string   `json:"text"`
	Type      WordType `json:"type"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	SpeakerID string   `json:"speaker_id,omitempty"`
}

// SpokenText rebuilds the transcript from words, leaving out audio events
func (r *TranscribeResponse) SpokenText() string {
	if len(r.Words) == 0 {
		return r.Text
	}
	var out []byte
	for _, w := range r.Words {
		if w.Type == WordTypeAudioEvent {
			continue
		}
		out = append(out, w.Text...)
	}
	return string(out)
}

// APIError represents an error response from the ElevenLabs API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
