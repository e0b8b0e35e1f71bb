package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"memographic/memo"
)

const (
	// BaseURL is the Google AI Studio API base URL
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout for API requests
	DefaultTimeout = 5 * time.Minute

	// MaxInlineSize is the largest inline payload the API accepts (20MB)
	MaxInlineSize = 20 * 1024 * 1024

	providerName = "gemini"
)

// APIKeyEnvVars are checked in order by NewClientFromEnv
var APIKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// Client is the Google Gemini API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	debug      bool
	logger     *zap.Logger

	transcriptionModel string
	imageModel         string
	aspectRatio        string
	imageSize          string
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host == "" {
			return
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
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

// WithTranscriptionModel overrides the speech-to-text model
func WithTranscriptionModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.transcriptionModel = model
		}
	}
}

// WithImageModel overrides the image model
func WithImageModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.imageModel = model
		}
	}
}

// WithImageConfig sets the aspect ratio and resolution tier of generated images
func WithImageConfig(aspectRatio, imageSize string) ClientOption {
	return func(c *Client) {
		if aspectRatio != "" {
			c.aspectRatio = aspectRatio
		}
		if imageSize != "" {
			c.imageSize = imageSize
		}
	}
}

// NewClient creates a new Google Gemini API client
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
		logger:             zap.NewNop(),
		transcriptionModel: memo.DefaultTranscriptionModel,
		imageModel:         memo.DefaultImageModel,
		aspectRatio:        memo.DefaultAspectRatio,
		imageSize:          memo.DefaultImageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromEnv creates a client using the first API key found in
// GEMINI_API_KEY, GOOGLE_API_KEY or API_KEY
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	apiKey := LookupAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY environment variable not set")
	}
	return NewClient(apiKey, opts...)
}

// LookupAPIKey returns the first configured Gemini key, or ""
func LookupAPIKey() string {
	for _, name := range APIKeyEnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key
		}
	}
	return ""
}

// Transcribe sends inline audio with a transcription instruction and
// returns the spoken text
func (c *Client) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	if base64Audio == "" {
		return "", memo.ErrEmptyResult
	}
	if len(base64Audio)*3/4 > MaxInlineSize {
		return "", &memo.TranscriptionError{
			Provider: providerName,
			Err:      fmt.Errorf("audio exceeds the %d byte inline limit", MaxInlineSize),
		}
	}

	req := &GenerateContentRequest{
		Contents: []*Content{
			{
				Role: "user",
				Parts: []*Part{
					{InlineData: &InlineData{MIMEType: mimeType, Data: base64Audio}},
					{Text: memo.TranscriptionInstruction},
				},
			},
		},
	}

	resp, err := c.generateContent(ctx, c.transcriptionModel, req)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: providerName, Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", memo.ErrEmptyResult
	}
	return text, nil
}

// Generate renders the transcript as an infographic and returns it as a
// data URL
func (c *Client) Generate(ctx context.Context, transcript string) (string, error) {
	req := &GenerateContentRequest{
		Contents: []*Content{
			{
				Role:  "user",
				Parts: []*Part{{Text: memo.InfographicPrompt(transcript)}},
			},
		},
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig: &ImageConfig{
				AspectRatio: c.aspectRatio,
				ImageSize:   c.imageSize,
			},
		},
	}

	resp, err := c.generateContent(ctx, c.imageModel, req)
	if err != nil {
		return "", &memo.GenerationError{Provider: providerName, Err: err}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &memo.GenerationError{
			Provider: providerName,
			Err:      fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}

	blob := resp.FirstInlineData()
	if blob == nil {
		return "", memo.ErrNoImageProduced
	}
	return memo.DataURLFromBase64(blob.MIMEType, blob.Data), nil
}

// generateContent makes an API call to generate content
func (c *Client) generateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	apiURL := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, url.QueryEscape(c.apiKey))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug("gemini request",
		zap.String("model", model),
		zap.Int("parts", len(req.Contents[0].Parts)),
		zap.Int("bytes", len(body)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			// url.Error repeats the request URL, which carries the key
			err = urlErr.Err
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("gemini response",
		zap.String("model", model),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("latency", time.Since(start)),
	)
	if c.debug {
		if len(respBody) < 2000 {
			c.logger.Debug("gemini response body", zap.ByteString("body", respBody))
		} else {
			c.logger.Debug("gemini response body (truncated)", zap.ByteString("body", respBody[:2000]))
		}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Error.Message == "" {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("API error (status %d)", resp.StatusCode),
				Details:    strings.TrimSpace(string(respBody)),
			}
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Error.Message,
			Details:    apiErr.Error.Status,
		}
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}

// GetAPIKeyHelp returns help text for setting up the API key
func GetAPIKeyHelp() string {
	return `To transcribe memos and generate infographics you need a Google Gemini API key.

1. Go to https://aistudio.google.com/apikey
2. Sign in with your Google account
3. Click "Create API key"
4. Copy the API key
5. Set the environment variable:

   export GEMINI_API_KEY="your-api-key"

Or create a .env file with:
   GEMINI_API_KEY=your-api-key

Image models (gemini-3-pro-image-preview) require a key from a project with
billing enabled. See https://ai.google.dev/gemini-api/docs/pricing`
}

// CheckConfig verifies the Gemini configuration is set up
func CheckConfig() error {
	if LookupAPIKey() == "" {
		return fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY environment variable not set")
	}
	return nil
}

// ValidAspectRatio reports whether ratio is accepted by the image API
func ValidAspectRatio(ratio string) bool {
	for _, r := range SupportedAspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}

// ValidImageSize reports whether size is a known resolution tier
func ValidImageSize(size string) bool {
	for _, s := range SupportedImageSizes {
		if s == size {
			return true
		}
	}
	return false
}
