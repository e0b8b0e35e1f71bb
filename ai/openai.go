package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"memographic/config"
	"memographic/memo"
)

// Default OpenAI models
const (
	DefaultOpenAITranscriptionModel = string(openai.AudioModelWhisper1)
	DefaultOpenAIImageModel         = string(openai.ImageModelGPTImage1)

	openaiProvider = "openai"
)

// OpenAI transcribes with the audio API and draws with the images API, on
// either api.openai.com or an Azure OpenAI resource.
type OpenAI struct {
	client             openai.Client
	transcriptionModel string
	imageModel         string
	language           string
	size               openai.ImageGenerateParamsSize
}

// NewOpenAI creates a client. An Azure endpoint (config or
// AZURE_OPENAI_ENDPOINT) selects Azure OpenAI with AZURE_OPENAI_API_KEY;
// otherwise OPENAI_API_KEY is used.
func NewOpenAI(cfg config.Config, baseURL string) (*OpenAI, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	endpoint := cfg.OpenAI.AzureEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	}
	if baseURL != "" && endpoint != "" {
		endpoint = baseURL
	}

	if endpoint != "" {
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("AZURE_OPENAI_API_KEY environment variable not set")
		}
		apiVersion := cfg.OpenAI.AzureAPIVersion
		if v := os.Getenv("AZURE_OPENAI_API_VERSION"); v != "" {
			apiVersion = v
		}
		opts = append(opts,
			azure.WithEndpoint(strings.TrimSuffix(endpoint, "/"), apiVersion),
			azure.WithAPIKey(apiKey),
		)
	} else {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		if baseURL == "" {
			baseURL = cfg.OpenAI.BaseURL
		}
		if baseURL != "" {
			opts = append(opts, option.WithBaseURL(baseURL))
		}
	}

	return &OpenAI{
		client:             openai.NewClient(opts...),
		transcriptionModel: TranscriptionModel(cfg),
		imageModel:         ImageModel(cfg),
		language:           cfg.Transcription.Language,
		size:               imageSizeFor(cfg.Image.AspectRatio),
	}, nil
}

// Transcribe implements memo.Transcriber
func (c *OpenAI) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(base64Audio)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: openaiProvider, Err: fmt.Errorf("invalid audio encoding: %w", err)}
	}
	if len(audio) == 0 {
		return "", memo.ErrEmptyResult
	}

	params := openai.AudioTranscriptionNewParams{
		File:   openai.File(bytes.NewReader(audio), "memo"+memo.FileExtension(mimeType), mimeType),
		Model:  openai.AudioModel(c.transcriptionModel),
		Prompt: openai.String(memo.TranscriptionInstruction),
	}
	if c.language != "" {
		params.Language = openai.String(c.language)
	}

	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: openaiProvider, Err: describeOpenAIError(err)}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", memo.ErrEmptyResult
	}
	return text, nil
}

// Generate implements memo.ImageGenerator
func (c *OpenAI) Generate(ctx context.Context, transcript string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:       memo.InfographicPrompt(transcript),
		Model:        openai.ImageModel(c.imageModel),
		Size:         c.size,
		OutputFormat: openai.ImageGenerateParamsOutputFormatPNG,
		N:            openai.Int(1),
	})
	if err != nil {
		return "", &memo.GenerationError{Provider: openaiProvider, Err: describeOpenAIError(err)}
	}

	for _, img := range resp.Data {
		if img.B64JSON != "" {
			return memo.DataURLFromBase64("image/png", img.B64JSON), nil
		}
	}
	return "", memo.ErrNoImageProduced
}

// imageSizeFor maps an aspect ratio onto the closest size the images API
// accepts: portrait, landscape or square.
func imageSizeFor(ratio string) openai.ImageGenerateParamsSize {
	w, h, ok := strings.Cut(ratio, ":")
	if !ok {
		return openai.ImageGenerateParamsSize1024x1024
	}
	wn, err1 := strconv.ParseFloat(w, 64)
	hn, err2 := strconv.ParseFloat(h, 64)
	if err1 != nil || err2 != nil || wn <= 0 || hn <= 0 {
		return openai.ImageGenerateParamsSize1024x1024
	}
	switch {
	case wn < hn:
		return openai.ImageGenerateParamsSize1024x1536
	case wn > hn:
		return openai.ImageGenerateParamsSize1536x1024
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

func describeOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return fmt.Errorf("%s (status %d)", apiErr.Message, apiErr.StatusCode)
	}
	return err
}
