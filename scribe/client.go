package scribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"memographic/memo"
)

const (
	// BaseURL is the ElevenLabs API base URL
	BaseURL = "https://api.elevenlabs.io"

	// DefaultTimeout for API requests
	DefaultTimeout = 5 * time.Minute

	// MaxFileSize is the maximum upload size accepted here (1GB)
	MaxFileSize = 1024 * 1024 * 1024
)

// Client is the ElevenLabs Scribe API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	debug      bool
	logger     *zap.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing)
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithDebug enables logging of response bodies
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new ElevenLabs Scribe API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromEnv creates a client using the ELEVENLABS_API_KEY environment variable
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	apiKey := os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY environment variable not set")
	}
	return NewClient(apiKey, opts...)
}

// Transcribe uploads audio to the speech-to-text endpoint
func (c *Client) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResponse, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("audio is required")
	}
	if len(req.Audio) > MaxFileSize {
		return nil, fmt.Errorf("audio size %d exceeds maximum %d bytes", len(req.Audio), MaxFileSize)
	}

	// Build multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := req.Filename
	if filename == "" {
		filename = "memo.wav"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("failed to copy audio to form: %w", err)
	}

	model := req.Model
	if model == "" {
		model = ModelScribeV1
	}
	if err := writer.WriteField("model_id", model); err != nil {
		return nil, fmt.Errorf("failed to write model_id: %w", err)
	}

	if req.Language != "" {
		if err := writer.WriteField("language_code", req.Language); err != nil {
			return nil, fmt.Errorf("failed to write language_code: %w", err)
		}
	}

	if req.Diarize != nil {
		if err := writer.WriteField("diarize", strconv.FormatBool(*req.Diarize)); err != nil {
			return nil, fmt.Errorf("failed to write diarize: %w", err)
		}
	}

	if err := writer.WriteField("tag_audio_events", strconv.FormatBool(req.TagAudioEvents)); err != nil {
		return nil, fmt.Errorf("failed to write tag_audio_events: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := c.baseURL + "/v1/speech-to-text"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("xi-api-key", c.apiKey)

	c.logger.Debug("scribe request", zap.String("url", url), zap.String("model", model), zap.Int("bytes", len(req.Audio)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("scribe response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(respBody)))
	if c.debug {
		if len(respBody) < 2000 {
			c.logger.Debug("scribe response body", zap.ByteString("body", respBody))
		} else {
			c.logger.Debug("scribe response body (truncated)", zap.ByteString("body", respBody[:2000]))
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	var result TranscribeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// parseAPIError understands both the flat error shape and the
// {"detail": {...}} shape the API returns for validation failures
func parseAPIError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = status
		return &apiErr
	}

	var wrapped struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Detail.Message != "" {
		return &APIError{StatusCode: status, Message: wrapped.Detail.Message, Code: wrapped.Detail.Status}
	}

	return &APIError{
		StatusCode: status,
		Message:    fmt.Sprintf("API error (status %d): %s", status, strings.TrimSpace(string(body))),
	}
}

// Transcriber adapts a Client to memo.Transcriber
type Transcriber struct {
	Client   *Client
	Model    string
	Language string
}

// Transcribe implements memo.Transcriber
func (t *Transcriber) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(base64Audio)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: "elevenlabs", Err: fmt.Errorf("invalid audio encoding: %w", err)}
	}
	if len(audio) == 0 {
		return "", memo.ErrEmptyResult
	}

	resp, err := t.Client.Transcribe(ctx, &TranscribeRequest{
		Audio:    audio,
		Filename: "memo" + memo.FileExtension(mimeType),
		Model:    t.Model,
		Language: t.Language,
	})
	if err != nil {
		return "", &memo.TranscriptionError{Provider: "elevenlabs", Err: err}
	}

	text := strings.TrimSpace(resp.SpokenText())
	if text == "" {
		return "", memo.ErrEmptyResult
	}
	return text, nil
}

// GetAPIKeyHelp returns help text for setting up the API key
func GetAPIKeyHelp() string {
	return `To use the ElevenLabs Scribe API, you need an API key.

1. Sign up at https://elevenlabs.io
2. Go to Profile Settings > API Keys
3. Create a new API key
4. Set the environment variable:

   export ELEVENLABS_API_KEY="your-api-key"

Or create a .env file with:
   ELEVENLABS_API_KEY=your-api-key`
}
