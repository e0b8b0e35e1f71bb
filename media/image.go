package media

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"memographic/memo"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ImageExtension returns the file extension for an image MIME type.
// Unknown types fall back to .png.
func ImageExtension(mimeType string) string {
	if ext, ok := imageExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	return ".png"
}

// DownloadFilename names a saved infographic after the moment it was saved.
// The extension follows the image's MIME type.
func DownloadFilename(t time.Time, mimeType string) string {
	return fmt.Sprintf("memo-graphic-%d%s", t.UnixMilli(), ImageExtension(mimeType))
}

// SaveDataURL decodes an image data URL and writes it to dir/name. The
// directory is created if needed. Existing files are never overwritten.
func SaveDataURL(dir, name, dataURL string) (string, error) {
	_, data, err := memo.DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image is empty")
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("file exists: %s", path)
		}
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// OpenCommand returns the command that shows a file in the system viewer
func OpenCommand(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// Open shows a file in the system viewer without waiting for it to close
func Open(path string) error {
	cmd := OpenCommand(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	go cmd.Wait()
	return nil
}
