// Package memo holds the types shared by every stage of the voice memo to
// infographic pipeline: the captured audio payload, the contracts of the two
// remote model calls, and the errors they can produce.
package memo

import (
	"context"
	"encoding/base64"
	"strings"
	"time"
)

// Default model identifiers
const (
	// DefaultTranscriptionModel is the fast multimodal model used for speech to text
	DefaultTranscriptionModel = "gemini-2.5-flash"
	// DefaultImageModel is the image-capable model used for infographics
	DefaultImageModel = "gemini-3-pro-image-preview"
	// DefaultAspectRatio is portrait, suited to phones and slides
	DefaultAspectRatio = "3:4"
	// DefaultImageSize is the resolution tier sent with image requests
	DefaultImageSize = "1K"
)

// Audio is a finished recording ready for transcription.
type Audio struct {
	Raw      []byte
	Base64   string
	MIMEType string
	Duration time.Duration
}

// NewAudio builds a payload and fills in the base64 form of raw.
func NewAudio(raw []byte, mimeType string, duration time.Duration) *Audio {
	return &Audio{
		Raw:      raw,
		Base64:   base64.StdEncoding.EncodeToString(raw),
		MIMEType: mimeType,
		Duration: duration,
	}
}

// Empty reports whether the payload carries no audio at all.
func (a *Audio) Empty() bool {
	return a == nil || (len(a.Raw) == 0 && a.Base64 == "")
}

// Transcriber turns recorded speech into text.
//
// Implementations return trimmed, non-empty text on success, ErrEmptyResult
// when the model answered without text, and a *TranscriptionError for any
// transport or provider failure. They do not retry.
type Transcriber interface {
	Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error)
}

// ImageGenerator renders a transcript as an infographic.
//
// The returned string is a data URL (data:image/png;base64,...). A response
// without an image part yields ErrNoImageProduced; everything else is wrapped
// in a *GenerationError.
type ImageGenerator interface {
	Generate(ctx context.Context, transcript string) (string, error)
}

// TranscriberFunc adapts a function to the Transcriber interface
type TranscriberFunc func(ctx context.Context, base64Audio, mimeType string) (string, error)

// Transcribe calls f
func (f TranscriberFunc) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	return f(ctx, base64Audio, mimeType)
}

// ImageGeneratorFunc adapts a function to the ImageGenerator interface
type ImageGeneratorFunc func(ctx context.Context, transcript string) (string, error)

// Generate calls f
func (f ImageGeneratorFunc) Generate(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

// FileExtension returns the filename extension providers expect for an
// audio MIME type. Codec parameters are ignored and unknown types map to .wav.
func FileExtension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/webm":
		return ".webm"
	case "audio/mp3", "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/aac":
		return ".aac"
	default:
		return ".wav"
	}
}
