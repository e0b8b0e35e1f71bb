package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"

	"memographic/memo"
)

// DefaultGrace is how long a capture process must survive to count as open
const DefaultGrace = 400 * time.Millisecond

// DeviceConfig selects how the capture process is launched
type DeviceConfig struct {
	// Command replaces the built-in ffmpeg invocation. It must write raw
	// s16le PCM to stdout; {sample_rate} and {channels} are substituted.
	Command string
	// Device names the input device; empty picks the system default
	Device string
	// Grace is the start-up window in which an exiting process is treated
	// as a refused microphone
	Grace time.Duration
}

// FFmpegDevice captures audio by running ffmpeg (or a configured command)
type FFmpegDevice struct {
	command []string
	device  string
	grace   time.Duration
	logger  *zap.Logger
}

// NewFFmpegDevice creates a capture device from cfg
func NewFFmpegDevice(cfg DeviceConfig, logger *zap.Logger) (*FFmpegDevice, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &FFmpegDevice{
		device: cfg.Device,
		grace:  cfg.Grace,
		logger: logger,
	}
	if d.grace <= 0 {
		d.grace = DefaultGrace
	}

	if strings.TrimSpace(cfg.Command) != "" {
		parser := shellwords.NewParser()
		args, err := parser.Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse capture command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("capture command is empty")
		}
		d.command = args
	}
	return d, nil
}

// Args returns the command line used for a capture in format
func (d *FFmpegDevice) Args(format Format) []string {
	rate := strconv.Itoa(format.SampleRate)
	channels := strconv.Itoa(format.Channels)

	if len(d.command) > 0 {
		args := make([]string, len(d.command))
		for i, arg := range d.command {
			arg = strings.ReplaceAll(arg, "{sample_rate}", rate)
			args[i] = strings.ReplaceAll(arg, "{channels}", channels)
		}
		return args
	}

	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs(runtime.GOOS, d.device)...)
	return append(args, "-ac", channels, "-ar", rate, "-f", "s16le", "-")
}

// inputArgs picks the platform capture backend
func inputArgs(goos, device string) []string {
	switch goos {
	case "darwin":
		if device == "" {
			device = "0"
		}
		return []string{"-f", "avfoundation", "-i", ":" + device}
	case "windows":
		if device == "" {
			device = "Microphone"
		}
		return []string{"-f", "dshow", "-i", "audio=" + device}
	default:
		if device == "" {
			device = "default"
		}
		return []string{"-f", "pulse", "-i", device}
	}
}

// Open starts the capture process. A process that cannot be started or
// exits within the grace window is reported as memo.ErrPermissionDenied.
func (d *FFmpegDevice) Open(ctx context.Context, format Format) (Stream, error) {
	args := d.Args(format)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create capture pipe: %w", err)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = pw
	stderr := &limitedBuffer{limit: 4096}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	d.logger.Debug("starting capture", zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s not found", memo.ErrPermissionDenied, args[0])
		}
		return nil, fmt.Errorf("%w: %w", memo.ErrPermissionDenied, err)
	}
	pw.Close()

	s := &ffmpegStream{
		cmd:    cmd,
		stdout: pr,
		stdin:  stdin,
		exited: make(chan struct{}),
	}
	go func() {
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()

	timer := time.NewTimer(d.grace)
	defer timer.Stop()

	select {
	case <-s.exited:
		pr.Close()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && s.waitErr != nil {
			msg = s.waitErr.Error()
		}
		d.logger.Warn("capture process exited during start-up", zap.String("stderr", msg))
		return nil, fmt.Errorf("%w: %s", memo.ErrPermissionDenied, msg)
	case <-ctx.Done():
		s.kill()
		return nil, ctx.Err()
	case <-timer.C:
	}

	return s, nil
}

type ffmpegStream struct {
	cmd     *exec.Cmd
	stdout  *os.File
	stdin   io.WriteCloser
	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
	readOnce  sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err == io.EOF {
		s.readOnce.Do(func() { s.stdout.Close() })
	}
	return n, err
}

// Close asks ffmpeg to finish ("q" on stdin) so the trailing audio is
// flushed, and kills the process if it does not exit in time
func (s *ffmpegStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		io.WriteString(s.stdin, "q\n")
		s.stdin.Close()

		select {
		case <-s.exited:
		case <-time.After(closeTimeout):
			s.kill()
			err = fmt.Errorf("capture process did not exit, killed")
		}
	})
	return err
}

func (s *ffmpegStream) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	<-s.exited
	s.stdout.Close()
}

// limitedBuffer keeps the first limit bytes written to it
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
