// Package recorder captures voice memos from the microphone. A Device
// produces raw 16-bit little-endian PCM; the Recorder buffers it between
// Start and Stop and hands back a WAV payload ready for transcription.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"memographic/memo"
)

const (
	// DefaultSampleRate is the capture rate used for speech
	DefaultSampleRate = 16000
	// DefaultChannels records mono
	DefaultChannels = 1

	// closeTimeout bounds how long Close waits for the device to drain
	closeTimeout = 3 * time.Second
)

var (
	// ErrAlreadyRecording is returned by Start while a capture is running
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop without a running capture
	ErrNotRecording = errors.New("not recording")
)

// Format describes the PCM stream a device produces
type Format struct {
	SampleRate int
	Channels   int
}

// frameSize is the number of bytes per sample frame
func (f Format) frameSize() int {
	return 2 * f.Channels
}

// Device opens microphone captures
type Device interface {
	Open(ctx context.Context, format Format) (Stream, error)
}

// Stream is a running capture. Reads return raw s16le PCM until the capture
// ends; Close ends it and releases the microphone.
type Stream interface {
	io.Reader
	Close() error
}

// Recorder turns a Device capture into a memo.Audio payload
type Recorder struct {
	mu      sync.Mutex
	device  Device
	format  Format
	logger  *zap.Logger
	now     func() time.Time
	stream  Stream
	pcm     *bytes.Buffer
	copyErr chan error
	started time.Time
	elapsed time.Duration
}

// Option configures a Recorder
type Option func(*Recorder)

// WithFormat sets the capture format
func WithFormat(format Format) Option {
	return func(r *Recorder) {
		if format.SampleRate > 0 {
			r.format.SampleRate = format.SampleRate
		}
		if format.Channels > 0 {
			r.format.Channels = format.Channels
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a recorder for device
func New(device Device, opts ...Option) *Recorder {
	r := &Recorder{
		device: device,
		format: Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Format returns the capture format
func (r *Recorder) Format() Format {
	return r.format
}

// Recording reports whether a capture is running
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Start opens the microphone. Any failure to open the device is reported as
// memo.ErrPermissionDenied with the device error attached.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return ErrAlreadyRecording
	}

	stream, err := r.device.Open(ctx, r.format)
	if err != nil {
		if errors.Is(err, memo.ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %w", memo.ErrPermissionDenied, err)
	}

	pcm := &bytes.Buffer{}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(pcm, stream)
		done <- err
	}()

	r.stream = stream
	r.pcm = pcm
	r.copyErr = done
	r.started = r.now()
	r.elapsed = 0

	r.logger.Info("recording started",
		zap.Int("sample_rate", r.format.SampleRate),
		zap.Int("channels", r.format.Channels),
	)
	return nil
}

// Elapsed returns the capture time so far. It stops advancing once the
// capture ends.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return r.now().Sub(r.started)
	}
	return r.elapsed
}

// Stop ends the capture, releases the microphone and encodes what was
// recorded. A capture without a single full frame yields an empty payload.
func (r *Recorder) Stop(ctx context.Context) (*memo.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return nil, ErrNotRecording
	}

	pcm, err := r.finishLocked(ctx)
	if err != nil {
		return nil, err
	}

	frameSize := r.format.frameSize()
	pcm = pcm[:len(pcm)-len(pcm)%frameSize]
	frames := len(pcm) / frameSize
	duration := time.Duration(frames) * time.Second / time.Duration(r.format.SampleRate)

	r.logger.Info("recording stopped",
		zap.Int("bytes", len(pcm)),
		zap.Duration("duration", duration),
		zap.Duration("elapsed", r.elapsed),
	)

	if frames == 0 {
		return memo.NewAudio(nil, "audio/wav", 0), nil
	}

	wavData, err := EncodeWAV(pcm, r.format.SampleRate, r.format.Channels)
	if err != nil {
		return nil, err
	}
	return memo.NewAudio(wavData, "audio/wav", duration), nil
}

// Close releases the microphone if a capture is running and drops its
// audio. It is safe to call at any time and more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	_, err := r.finishLocked(ctx)
	r.logger.Info("recording discarded")
	return err
}

// finishLocked closes the stream and waits for the buffered PCM
func (r *Recorder) finishLocked(ctx context.Context) ([]byte, error) {
	stream, pcm, done := r.stream, r.pcm, r.copyErr
	r.stream, r.pcm, r.copyErr = nil, nil, nil
	r.elapsed = r.now().Sub(r.started)

	closeErr := stream.Close()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("capture failed: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if closeErr != nil {
		r.logger.Warn("capture device did not close cleanly", zap.Error(closeErr))
	}
	return pcm.Bytes(), nil
}
