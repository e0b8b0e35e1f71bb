package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memographic/keygate"
	"memographic/media"
	"memographic/memo"
)

// DefaultTimeout bounds each remote call
const DefaultTimeout = 5 * time.Minute

// Recorder is the microphone capability the machine drives
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*memo.Audio, error)
	Close() error
}

// Machine is the single source of truth for a session. All methods are safe
// for concurrent use. The asynchronous steps (transcription, key selection
// and image generation) run on the calling goroutine with the lock released,
// so Abort and Reset can interrupt them from another goroutine.
type Machine struct {
	mu    sync.Mutex
	state State

	// in-flight request
	token  string
	cancel context.CancelFunc

	recorder    Recorder
	transcriber memo.Transcriber
	generator   memo.ImageGenerator
	keyHost     keygate.Host
	logger      *zap.Logger
	timeout     time.Duration
	now         func() time.Time

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSub     int
}

// Option configures a Machine
type Option func(*Machine)

// WithRecorder sets the microphone
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		m.recorder = r
	}
}

// WithTranscriber sets the speech-to-text client
func WithTranscriber(t memo.Transcriber) Option {
	return func(m *Machine) {
		m.transcriber = t
	}
}

// WithImageGenerator sets the image client
func WithImageGenerator(g memo.ImageGenerator) Option {
	return func(m *Machine) {
		m.generator = g
	}
}

// WithKeyHost sets the key-selection capability. A nil host disables the gate.
func WithKeyHost(h keygate.Host) Option {
	return func(m *Machine) {
		m.keyHost = h
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeout bounds each remote call. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Machine) {
		m.timeout = timeout
	}
}

// WithClock replaces time.Now, used for download file names
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a machine in the Idle phase
func New(opts ...Option) *Machine {
	m := &Machine{
		logger:      zap.NewNop(),
		timeout:     DefaultTimeout,
		now:         time.Now,
		subscribers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a copy of the current record
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn to receive every new state. The returned function
// removes the subscription.
func (m *Machine) Subscribe(fn func(State)) func() {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subscribers, id)
		m.subMu.Unlock()
	}
}

func (m *Machine) publish(s State) {
	m.subMu.Lock()
	fns := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// setLocked replaces the record. Callers hold m.mu and publish the returned
// copy after unlocking.
func (m *Machine) setLocked(next State) State {
	prev := m.state.Phase
	m.state = next
	if err := next.Validate(); err != nil {
		m.logger.Error("session state invariant violated", zap.Error(err))
	}
	m.logger.Debug("session transition",
		zap.Stringer("from", prev),
		zap.Stringer("to", next.Phase),
		zap.Int("progress", Progress(next.Phase)),
	)
	return next
}

// beginLocked starts a new request and returns its token and context
func (m *Machine) beginLocked(ctx context.Context) (string, context.Context) {
	var reqCtx context.Context
	var cancel context.CancelFunc
	if m.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, m.timeout)
	} else {
		reqCtx, cancel = context.WithCancel(ctx)
	}
	m.token = uuid.NewString()
	m.cancel = cancel
	return m.token, reqCtx
}

// endLocked releases the current request if token still owns it
func (m *Machine) endLocked(token string) bool {
	if m.token != token || token == "" {
		return false
	}
	m.cancel()
	m.token = ""
	m.cancel = nil
	return true
}

// abortLocked cancels whatever request is in flight
func (m *Machine) abortLocked() bool {
	if m.token == "" {
		return false
	}
	m.cancel()
	m.token = ""
	m.cancel = nil
	return true
}

// StartRecording opens the microphone and enters Recording. If the device
// cannot be opened the phase stays Idle and the error is returned.
func (m *Machine) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != Idle {
		m.mu.Unlock()
		return &TransitionError{Event: "start recording", From: m.state.Phase}
	}
	if m.recorder == nil {
		m.mu.Unlock()
		return fmt.Errorf("no recorder configured")
	}

	if err := m.recorder.Start(ctx); err != nil {
		m.mu.Unlock()
		m.logger.Warn("failed to start recording", zap.Error(err))
		return err
	}

	s := m.setLocked(State{Phase: Recording})
	m.mu.Unlock()
	m.publish(s)
	return nil
}

// StopRecording finalizes the capture, releases the microphone and
// transcribes the result. It blocks until transcription finishes or is
// aborted and returns the transcription error, if any.
func (m *Machine) StopRecording(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != Recording {
		m.mu.Unlock()
		return &TransitionError{Event: "stop recording", From: m.state.Phase}
	}

	token, reqCtx := m.beginLocked(ctx)
	s := m.setLocked(State{Phase: ProcessingAudio})
	m.mu.Unlock()
	m.publish(s)

	// Stop can block on the device for seconds and runs without the lock
	audio, stopErr := m.recorder.Stop(ctx)
	if stopErr != nil {
		m.logger.Error("failed to finalize recording", zap.Error(stopErr))
		return m.failTranscription(token, stopErr)
	}
	if err := reqCtx.Err(); err != nil {
		return m.failTranscription(token, err)
	}
	return m.transcribe(reqCtx, token, audio)
}

// SubmitAudio transcribes an audio payload that was not recorded through
// the microphone, such as an imported file
func (m *Machine) SubmitAudio(ctx context.Context, audio *memo.Audio) error {
	m.mu.Lock()
	if m.state.Phase != Idle {
		m.mu.Unlock()
		return &TransitionError{Event: "submit audio", From: m.state.Phase}
	}
	token, reqCtx := m.beginLocked(ctx)
	s := m.setLocked(State{Phase: ProcessingAudio})
	m.mu.Unlock()
	m.publish(s)

	return m.transcribe(reqCtx, token, audio)
}

func (m *Machine) transcribe(ctx context.Context, token string, audio *memo.Audio) error {
	if audio.Empty() {
		m.logger.Warn("recording produced no audio")
		return m.failTranscription(token, memo.ErrEmptyResult)
	}
	if m.transcriber == nil {
		return m.failTranscription(token, &memo.TranscriptionError{Err: fmt.Errorf("no transcriber configured")})
	}

	start := time.Now()
	text, err := m.transcriber.Transcribe(ctx, audio.Base64, audio.MIMEType)
	m.logger.Info("transcription finished",
		zap.String("mime", audio.MIMEType),
		zap.Int("bytes", len(audio.Raw)),
		zap.Duration("audio", audio.Duration),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return m.failTranscription(token, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return m.failTranscription(token, memo.ErrEmptyResult)
	}

	m.mu.Lock()
	if !m.endLocked(token) {
		m.mu.Unlock()
		m.logger.Debug("discarding stale transcription", zap.String("token", token))
		return ErrCancelled
	}
	s := m.setLocked(State{Phase: ReviewTranscript, Transcript: text})
	m.mu.Unlock()
	m.publish(s)
	return nil
}

func (m *Machine) failTranscription(token string, err error) error {
	m.mu.Lock()
	if !m.endLocked(token) {
		m.mu.Unlock()
		return ErrCancelled
	}
	s := m.setLocked(State{Phase: Error, ErrorMessage: UserMessage(err, MsgTranscribeFailed)})
	m.mu.Unlock()
	m.publish(s)
	return err
}

// EditTranscript replaces the transcript. Any text is accepted.
func (m *Machine) EditTranscript(text string) error {
	m.mu.Lock()
	if m.state.Phase != ReviewTranscript {
		m.mu.Unlock()
		return &TransitionError{Event: "edit transcript", From: m.state.Phase}
	}
	next := m.state
	next.Transcript = text
	m.state = next
	m.mu.Unlock()
	m.publish(next)
	return nil
}

// Cancel discards the transcript and returns to Idle
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if m.state.Phase != ReviewTranscript {
		m.mu.Unlock()
		return &TransitionError{Event: "cancel", From: m.state.Phase}
	}
	s := m.setLocked(State{})
	m.mu.Unlock()
	m.publish(s)
	return nil
}

// Generate runs the key gate and then the image model on the current
// transcript. It blocks until the image arrives, generation fails or the
// request is aborted.
func (m *Machine) Generate(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != ReviewTranscript {
		m.mu.Unlock()
		return &TransitionError{Event: "generate", From: m.state.Phase}
	}
	if m.token != "" {
		m.mu.Unlock()
		return ErrBusy
	}
	transcript := m.state.Transcript
	token, reqCtx := m.beginLocked(ctx)
	s := m.setLocked(State{Phase: GeneratingImage, Transcript: transcript})
	m.mu.Unlock()
	m.publish(s)

	ok, err := keygate.EnsureKeySelected(reqCtx, m.keyHost)
	if err != nil {
		m.logger.Warn("key selection failed", zap.Error(err))
	}
	if !ok {
		return m.failGeneration(token, transcript, memo.ErrKeyNotSelected)
	}
	if m.generator == nil {
		return m.failGeneration(token, transcript, &memo.GenerationError{Err: fmt.Errorf("no image generator configured")})
	}
	if !m.current(token) {
		return ErrCancelled
	}

	start := time.Now()
	url, err := m.generator.Generate(reqCtx, transcript)
	m.logger.Info("image generation finished",
		zap.Int("transcript_chars", len(transcript)),
		zap.Int("image_bytes", len(url)),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return m.failGeneration(token, transcript, err)
	}
	if url == "" {
		return m.failGeneration(token, transcript, memo.ErrNoImageProduced)
	}

	m.mu.Lock()
	if !m.endLocked(token) {
		m.mu.Unlock()
		m.logger.Debug("discarding stale image", zap.String("token", token))
		return ErrCancelled
	}
	s = m.setLocked(State{Phase: Completed, Transcript: transcript, ImageURL: url})
	m.mu.Unlock()
	m.publish(s)
	return nil
}

func (m *Machine) failGeneration(token, transcript string, err error) error {
	m.mu.Lock()
	if !m.endLocked(token) {
		m.mu.Unlock()
		return ErrCancelled
	}
	s := m.setLocked(State{
		Phase:        Error,
		Transcript:   transcript,
		ErrorMessage: UserMessage(err, MsgGenerateFailed),
	})
	m.mu.Unlock()
	m.publish(s)
	return err
}

func (m *Machine) current(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token == token
}

// Abort cancels the in-flight transcription or generation. The session moves
// to Error; a transcript under generation is kept so it can be revised.
func (m *Machine) Abort() error {
	m.mu.Lock()
	if !m.state.Phase.Busy() || !m.abortLocked() {
		m.mu.Unlock()
		return &TransitionError{Event: "abort", From: m.state.Phase}
	}
	s := m.setLocked(State{
		Phase:        Error,
		Transcript:   m.state.Transcript,
		ErrorMessage: MsgCancelled,
	})
	m.mu.Unlock()
	m.logger.Info("request aborted by user")
	m.publish(s)
	return nil
}

// ReviseTranscript returns from a failed generation to the review phase
// with the transcript that was being rendered
func (m *Machine) ReviseTranscript() error {
	m.mu.Lock()
	if !m.state.CanRevise() {
		m.mu.Unlock()
		return &TransitionError{Event: "revise transcript", From: m.state.Phase}
	}
	s := m.setLocked(State{Phase: ReviewTranscript, Transcript: m.state.Transcript})
	m.mu.Unlock()
	m.publish(s)
	return nil
}

// RecordingElapsed reports how long the microphone has been capturing. ok
// is false outside Recording or when the recorder does not track time.
func (m *Machine) RecordingElapsed() (d time.Duration, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != Recording {
		return 0, false
	}
	timed, ok := m.recorder.(interface{ Elapsed() time.Duration })
	if !ok {
		return 0, false
	}
	return timed.Elapsed(), true
}

// Reset returns to the Idle default from any phase. It aborts a running
// request and releases the microphone if it is held.
func (m *Machine) Reset() error {
	m.mu.Lock()
	m.abortLocked()

	var closeErr error
	if m.state.Phase == Recording && m.recorder != nil {
		closeErr = m.recorder.Close()
		if closeErr != nil {
			m.logger.Warn("failed to release microphone", zap.Error(closeErr))
		}
	}
	s := m.setLocked(State{})
	m.mu.Unlock()
	m.publish(s)
	return closeErr
}

// Download writes the generated image into dir and returns its path. The
// session state is not changed.
func (m *Machine) Download(dir string) (string, error) {
	m.mu.Lock()
	if m.state.Phase != Completed {
		m.mu.Unlock()
		return "", &TransitionError{Event: "download", From: m.state.Phase}
	}
	url := m.state.ImageURL
	now := m.now()
	m.mu.Unlock()

	path, err := media.SaveDataURL(dir, media.DownloadFilename(now, memo.DataURLMIMEType(url)), url)
	if err != nil {
		return "", err
	}
	m.logger.Info("image saved", zap.String("path", path))
	return path, nil
}

// Close aborts any request and releases the microphone. It is meant for
// application teardown and leaves the state untouched.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortLocked()
	if m.recorder != nil {
		return m.recorder.Close()
	}
	return nil
}
