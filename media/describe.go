package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"memographic/memo"
)

// ImageInfo describes a generated image without decoding its pixels
type ImageInfo struct {
	MIMEType string
	Format   string
	Width    int
	Height   int
	Bytes    int
}

// Orientation returns "portrait", "landscape" or "square"
func (i ImageInfo) Orientation() string {
	switch {
	case i.Height > i.Width:
		return "portrait"
	case i.Width > i.Height:
		return "landscape"
	default:
		return "square"
	}
}

// DescribeDataURL reads the dimensions of a PNG, JPEG or WebP data URL
func DescribeDataURL(dataURL string) (ImageInfo, error) {
	mimeType, data, err := memo.DecodeDataURL(dataURL)
	if err != nil {
		return ImageInfo{}, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("unrecognized image: %w", err)
	}
	return ImageInfo{
		MIMEType: mimeType,
		Format:   format,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Bytes:    len(data),
	}, nil
}
