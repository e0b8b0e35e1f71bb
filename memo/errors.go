package memo

import "errors"

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened
	ErrPermissionDenied = errors.New("microphone access denied")
	// ErrEmptyResult is returned when a capture or transcription produced nothing
	ErrEmptyResult = errors.New("no transcription generated")
	// ErrKeyNotSelected is returned when the key gate refused image generation
	ErrKeyNotSelected = errors.New("api key not selected")
	// ErrNoImageProduced is returned when the image model answered without an image
	ErrNoImageProduced = errors.New("no image generated from the response")
)

// TranscriptionError wraps a failed transcription call
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	if e.Err == nil {
		return "transcription failed"
	}
	if e.Provider != "" {
		return e.Provider + " transcription failed: " + e.Err.Error()
	}
	return "transcription failed: " + e.Err.Error()
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// GenerationError wraps a failed image generation call
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "image generation failed"
	}
	if e.Provider != "" {
		return e.Provider + " image generation failed: " + e.Err.Error()
	}
	return "image generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
