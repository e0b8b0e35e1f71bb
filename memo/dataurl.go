package memo

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EncodeDataURL returns data as a base64 data URL
func EncodeDataURL(mimeType string, data []byte) string {
	return DataURLFromBase64(mimeType, base64.StdEncoding.EncodeToString(data))
}

// DataURLFromBase64 wraps already-encoded data in a data URL
func DataURLFromBase64(mimeType, b64 string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + b64
}

// DecodeDataURL splits a base64 data URL into its MIME type and payload
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}

	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL: missing payload")
	}

	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("unsupported data URL encoding: %q", header)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return mimeType, data, nil
}

// DataURLMIMEType returns the MIME type of a data URL without decoding its
// payload, or "" if dataURL is not one
func DataURLMIMEType(dataURL string) string {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return ""
	}
	header, _, ok := strings.Cut(rest, ",")
	if !ok {
		return ""
	}
	mimeType, _, _ := strings.Cut(header, ";")
	return mimeType
}
