// Package session implements the memo-to-infographic state machine. A
// Machine owns the single State record, validates every transition against
// the current phase and runs the remote calls with cancellable, token-tagged
// requests so that late results of aborted work are discarded.
package session

import (
	"errors"
	"fmt"
)

// Phase is the coarse stage of a session
type Phase int

const (
	Idle Phase = iota
	Recording
	ProcessingAudio
	ReviewTranscript
	GeneratingImage
	Completed
	Error
)

// String returns a human-readable phase name
func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case ProcessingAudio:
		return "Processing audio"
	case ReviewTranscript:
		return "Review transcript"
	case GeneratingImage:
		return "Generating image"
	case Completed:
		return "Completed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Busy reports whether a remote call is running in this phase
func (p Phase) Busy() bool {
	return p == ProcessingAudio || p == GeneratingImage
}

// Progress maps a phase to the percentage shown in the progress indicator.
// Completed and Error both count as done.
func Progress(p Phase) int {
	switch p {
	case Idle:
		return 5
	case Recording:
		return 25
	case ProcessingAudio:
		return 50
	case ReviewTranscript:
		return 75
	case GeneratingImage:
		return 90
	default:
		return 100
	}
}

// State is the whole session record. The zero value is the Idle default.
type State struct {
	Phase        Phase
	Transcript   string
	ImageURL     string
	ErrorMessage string
}

// Validate checks the cross-field invariants of a state record
func (s State) Validate() error {
	if (s.ImageURL != "") != (s.Phase == Completed) {
		return fmt.Errorf("image url set=%t in phase %s", s.ImageURL != "", s.Phase)
	}
	if (s.ErrorMessage != "") != (s.Phase == Error) {
		return fmt.Errorf("error message set=%t in phase %s", s.ErrorMessage != "", s.Phase)
	}
	switch s.Phase {
	case Idle, Recording, ProcessingAudio:
		if s.Transcript != "" {
			return fmt.Errorf("transcript set in phase %s", s.Phase)
		}
	}
	return nil
}

// CanRevise reports whether a failed generation can go back to review
func (s State) CanRevise() bool {
	return s.Phase == Error && s.Transcript != ""
}

var (
	// ErrInvalidTransition is returned for events the current phase does not accept
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrBusy is returned when a remote call is already running
	ErrBusy = errors.New("a request is already in progress")
	// ErrCancelled marks a request that was aborted by the user
	ErrCancelled = errors.New("cancelled by user")
)

// TransitionError describes a rejected event
type TransitionError struct {
	Event string
	From  Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed in phase %s", e.Event, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
