package session

import (
	"context"
	"errors"
	"strings"

	"memographic/memo"
)

// User-facing messages
const (
	MsgTranscribeFailed = "Failed to transcribe audio."
	MsgGenerateFailed   = "Failed to generate infographic."
	MsgKeyNotSelected   = "API key selection is required to generate images."
	MsgEmptyResult      = "No transcription generated."
	MsgNoImage          = "No image generated from the response."
	MsgCancelled        = "Cancelled by user"
	MsgTimeout          = "The request timed out."
	MsgPermission       = "Microphone access was denied. Check your system's privacy settings."
)

// UserMessage turns an error from any stage into the text shown to the user.
// Known conditions get fixed wording; provider failures surface their cause
// and fall back to the given default when the cause has no message.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return MsgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	case errors.Is(err, memo.ErrKeyNotSelected):
		return MsgKeyNotSelected
	case errors.Is(err, memo.ErrEmptyResult):
		return MsgEmptyResult
	case errors.Is(err, memo.ErrNoImageProduced):
		return MsgNoImage
	case errors.Is(err, memo.ErrPermissionDenied):
		return MsgPermission
	}

	var terr *memo.TranscriptionError
	if errors.As(err, &terr) {
		return causeOr(terr.Err, fallback)
	}
	var gerr *memo.GenerationError
	if errors.As(err, &gerr) {
		return causeOr(gerr.Err, fallback)
	}

	return causeOr(err, fallback)
}

func causeOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return fallback
	}
	return msg
}
