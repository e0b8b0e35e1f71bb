// Package media handles the files around a session: importing audio from
// existing recordings or videos, and saving and opening generated images.
package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// audioMIMETypes maps the audio extensions the transcription models accept
var audioMIMETypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mp3",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".aiff": "audio/aiff",
	".webm": "audio/webm",
}

// AudioMIMEType returns the MIME type for an audio file, or "" if the
// extension is not a supported audio format
func AudioMIMEType(path string) string {
	return audioMIMETypes[strings.ToLower(filepath.Ext(path))]
}

// IsAudioFile checks if a file is an audio file based on extension
func IsAudioFile(path string) bool {
	return AudioMIMEType(path) != ""
}

// IsVideoFile checks if a file is a video based on extension
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	videoExts := map[string]bool{
		".mp4": true, ".mkv": true, ".mov": true, ".avi": true,
		".flv": true, ".wmv": true, ".m4v": true,
		".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
	}
	return videoExts[ext]
}

// IsSupportedMediaFile checks if a file can be turned into a memo
func IsSupportedMediaFile(path string) bool {
	return IsVideoFile(path) || IsAudioFile(path)
}

// ProbeDuration reads the duration of a media file using ffprobe
func ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("failed to get duration: %w", err)
	}

	durationSec, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(durationSec * float64(time.Second)), nil
}

// ExtractAudio writes the audio track of inputPath as 16-bit mono WAV into
// dir and returns the new file's path
func ExtractAudio(ctx context.Context, inputPath, dir string, sampleRate int) (string, error) {
	if sampleRate < 8000 || sampleRate > 48000 {
		return "", fmt.Errorf("sample rate must be between 8000 and 48000 Hz")
	}

	ext := filepath.Ext(inputPath)
	baseName := strings.TrimSuffix(filepath.Base(inputPath), ext)
	outputPath := filepath.Join(dir, baseName+"_audio.wav")

	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-codec:a", "pcm_s16le",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg error: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// CheckFFmpeg checks if ffmpeg is installed and returns version info
func CheckFFmpeg() (string, error) {
	cmd := exec.Command("ffmpeg", "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w\n\n%s", err, GetFFmpegInstallHelp())
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "ffmpeg installed", nil
}

// GetFFmpegInstallHelp returns platform-specific installation instructions
func GetFFmpegInstallHelp() string {
	switch runtime.GOOS {
	case "darwin":
		return `Install FFmpeg on macOS:
  brew install ffmpeg

Recording needs microphone access for your terminal:
  System Settings > Privacy & Security > Microphone`
	case "linux":
		return `Install FFmpeg on Linux:
  Ubuntu/Debian: sudo apt install ffmpeg
  Fedora:        sudo dnf install ffmpeg
  Arch:          sudo pacman -S ffmpeg

Recording uses PulseAudio (or PipeWire's pulse server).`
	case "windows":
		return `Install FFmpeg on Windows:
  winget install ffmpeg

Then add it to PATH and set recorder.device to your microphone name
(list devices with: ffmpeg -list_devices true -f dshow -i dummy).`
	default:
		return `Please install FFmpeg from: https://ffmpeg.org/download.html`
	}
}

// FormatDuration formats a duration as MM:SS or HH:MM:SS
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// TempDir returns a private scratch directory for extracted audio
func TempDir() (string, error) {
	return os.MkdirTemp("", "memographic-*")
}
