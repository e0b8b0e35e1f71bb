package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"memographic/config"
	"memographic/gemini"
	"memographic/memo"
)

const genaiProvider = "genai"

// GenAI talks to Gemini through the official SDK, against either the Gemini
// API or Vertex AI.
type GenAI struct {
	client             *genai.Client
	transcriptionModel string
	imageModel         string
	aspectRatio        string
	imageSize          string
}

// NewGenAI creates an SDK client for cfg.GenAI.Backend. baseURL overrides
// the endpoint when non-empty.
func NewGenAI(ctx context.Context, cfg config.Config, baseURL string) (*GenAI, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	}

	switch cfg.GenAI.Backend {
	case config.BackendVertexAI:
		// Vertex uses application default credentials
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.GenAI.Project
		cc.Location = cfg.GenAI.Location
	default:
		key := gemini.LookupAPIKey()
		if key == "" {
			return nil, errors.New("GEMINI_API_KEY or GOOGLE_API_KEY environment variable not set")
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = key
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAI{
		client:             client,
		transcriptionModel: TranscriptionModel(cfg),
		imageModel:         ImageModel(cfg),
		aspectRatio:        cfg.Image.AspectRatio,
		imageSize:          cfg.Image.ImageSize,
	}, nil
}

// Transcribe implements memo.Transcriber
func (g *GenAI) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	audio, err := base64.StdEncoding.DecodeString(base64Audio)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: genaiProvider, Err: fmt.Errorf("invalid audio encoding: %w", err)}
	}
	if len(audio) == 0 {
		return "", memo.ErrEmptyResult
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(audio, mimeType),
		genai.NewPartFromText(memo.TranscriptionInstruction),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.transcriptionModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: genaiProvider, Err: describeGenAIError(err)}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", memo.ErrEmptyResult
	}
	return text, nil
}

// Generate implements memo.ImageGenerator
func (g *GenAI) Generate(ctx context.Context, transcript string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(memo.InfographicPrompt(transcript))}, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel, contents, &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: g.aspectRatio,
			ImageSize:   g.imageSize,
		},
	})
	if err != nil {
		return "", &memo.GenerationError{Provider: genaiProvider, Err: describeGenAIError(err)}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", &memo.GenerationError{
			Provider: genaiProvider,
			Err:      fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", memo.ErrNoImageProduced
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return memo.EncodeDataURL(part.InlineData.MIMEType, part.InlineData.Data), nil
		}
	}
	return "", memo.ErrNoImageProduced
}

// describeGenAIError turns the SDK's APIError into a short message
func describeGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Status
		}
		return &gemini.APIError{StatusCode: apiErr.Code, Message: msg}
	}
	return err
}
