package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memographic/media"
	"memographic/memo"
)

// MaxFileSize is the largest file accepted for inline transcription (20MB)
const MaxFileSize = 20 * 1024 * 1024

// LoadFile imports an existing recording. Video files are reduced to their
// audio track first, which needs ffmpeg.
func LoadFile(ctx context.Context, path string, sampleRate int) (*memo.Audio, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if media.IsVideoFile(path) {
		if sampleRate <= 0 {
			sampleRate = DefaultSampleRate
		}
		dir, err := media.TempDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		defer os.RemoveAll(dir)

		extracted, err := media.ExtractAudio(ctx, path, dir, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("failed to extract audio: %w", err)
		}
		return readAudio(ctx, extracted)
	}

	if !media.IsAudioFile(path) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file size %d exceeds maximum %d bytes (20MB)", info.Size(), MaxFileSize)
	}
	return readAudio(ctx, path)
}

func readAudio(ctx context.Context, path string) (*memo.Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("audio is %d bytes, maximum is %d (20MB)", len(data), MaxFileSize)
	}

	return memo.NewAudio(data, media.AudioMIMEType(path), fileDuration(ctx, path)), nil
}

// fileDuration is best effort; an unknown duration is reported as zero
func fileDuration(ctx context.Context, path string) time.Duration {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if d, err := WAVDuration(path); err == nil {
			return d
		}
	}
	d, err := media.ProbeDuration(ctx, path)
	if err != nil {
		return 0
	}
	return d
}
