// Package ai builds the transcription and image providers named in the
// configuration. Clients are constructed at call time so a key entered
// through the key gate is picked up by the next request.
package ai

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"memographic/config"
	"memographic/gemini"
	"memographic/memo"
	"memographic/scribe"
)

type options struct {
	logger   *zap.Logger
	baseURLs map[string]string
}

// Option configures the providers built by this package
type Option func(*options)

// WithLogger sets the logger handed to every client
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBaseURL points a provider at a different endpoint (for testing)
func WithBaseURL(provider, url string) Option {
	return func(o *options) {
		o.baseURLs[provider] = url
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: zap.NewNop(), baseURLs: map[string]string{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TranscriptionModel returns the configured transcription model or the
// provider's default
func TranscriptionModel(cfg config.Config) string {
	if cfg.Transcription.Model != "" {
		return cfg.Transcription.Model
	}
	switch cfg.Transcription.Provider {
	case config.ProviderOpenAI:
		return DefaultOpenAITranscriptionModel
	case config.ProviderElevenLabs:
		return scribe.ModelScribeV1
	case config.ProviderElevenLabsRealtime:
		return scribe.ModelScribeV2Realtime
	default:
		return memo.DefaultTranscriptionModel
	}
}

// ImageModel returns the configured image model or the provider's default
func ImageModel(cfg config.Config) string {
	if cfg.Image.Model != "" {
		return cfg.Image.Model
	}
	if cfg.Image.Provider == config.ProviderOpenAI {
		return DefaultOpenAIImageModel
	}
	return memo.DefaultImageModel
}

// NewTranscriber returns the transcriber for cfg.Transcription.Provider
func NewTranscriber(cfg config.Config, opts ...Option) (memo.Transcriber, error) {
	o := newOptions(opts)
	provider := cfg.Transcription.Provider
	model := TranscriptionModel(cfg)

	var t memo.Transcriber
	switch provider {
	case config.ProviderGemini:
		t = memo.TranscriberFunc(func(ctx context.Context, base64Audio, mimeType string) (string, error) {
			client, err := o.geminiClient(cfg)
			if err != nil {
				return "", &memo.TranscriptionError{Provider: provider, Err: err}
			}
			return client.Transcribe(ctx, base64Audio, mimeType)
		})
	case config.ProviderGenAI:
		t = memo.TranscriberFunc(func(ctx context.Context, base64Audio, mimeType string) (string, error) {
			g, err := NewGenAI(ctx, cfg, o.baseURLs[provider])
			if err != nil {
				return "", &memo.TranscriptionError{Provider: provider, Err: err}
			}
			return g.Transcribe(ctx, base64Audio, mimeType)
		})
	case config.ProviderOpenAI:
		t = memo.TranscriberFunc(func(ctx context.Context, base64Audio, mimeType string) (string, error) {
			c, err := NewOpenAI(cfg, o.baseURLs[provider])
			if err != nil {
				return "", &memo.TranscriptionError{Provider: provider, Err: err}
			}
			return c.Transcribe(ctx, base64Audio, mimeType)
		})
	case config.ProviderElevenLabs:
		t = memo.TranscriberFunc(func(ctx context.Context, base64Audio, mimeType string) (string, error) {
			scribeOpts := []scribe.ClientOption{scribe.WithLogger(o.logger), scribe.WithDebug(cfg.Debug)}
			if url := o.baseURLs[provider]; url != "" {
				scribeOpts = append(scribeOpts, scribe.WithBaseURL(url))
			}
			client, err := scribe.NewClientFromEnv(scribeOpts...)
			if err != nil {
				return "", &memo.TranscriptionError{Provider: provider, Err: err}
			}
			st := &scribe.Transcriber{Client: client, Model: model, Language: cfg.Transcription.Language}
			return st.Transcribe(ctx, base64Audio, mimeType)
		})
	case config.ProviderElevenLabsRealtime:
		t = memo.TranscriberFunc(func(ctx context.Context, base64Audio, mimeType string) (string, error) {
			rt, err := scribe.NewRealtimeTranscriberFromEnv()
			if err != nil {
				return "", &memo.TranscriptionError{Provider: provider, Err: err}
			}
			rt.URL = o.baseURLs[provider]
			rt.Model = model
			rt.Language = cfg.Transcription.Language
			rt.Logger = o.logger
			return rt.Transcribe(ctx, base64Audio, mimeType)
		})
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", provider)
	}

	return &loggedTranscriber{next: t, provider: provider, model: model, logger: o.logger}, nil
}

// NewImageGenerator returns the image generator for cfg.Image.Provider
func NewImageGenerator(cfg config.Config, opts ...Option) (memo.ImageGenerator, error) {
	o := newOptions(opts)
	provider := cfg.Image.Provider
	model := ImageModel(cfg)

	var g memo.ImageGenerator
	switch provider {
	case config.ProviderGemini:
		g = memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
			client, err := o.geminiClient(cfg)
			if err != nil {
				return "", &memo.GenerationError{Provider: provider, Err: err}
			}
			return client.Generate(ctx, transcript)
		})
	case config.ProviderGenAI:
		g = memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
			c, err := NewGenAI(ctx, cfg, o.baseURLs[provider])
			if err != nil {
				return "", &memo.GenerationError{Provider: provider, Err: err}
			}
			return c.Generate(ctx, transcript)
		})
	case config.ProviderOpenAI:
		g = memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
			c, err := NewOpenAI(cfg, o.baseURLs[provider])
			if err != nil {
				return "", &memo.GenerationError{Provider: provider, Err: err}
			}
			return c.Generate(ctx, transcript)
		})
	default:
		return nil, fmt.Errorf("unknown image provider %q", provider)
	}

	return &loggedGenerator{next: g, provider: provider, model: model, logger: o.logger}, nil
}

func (o *options) geminiClient(cfg config.Config) (*gemini.Client, error) {
	opts := []gemini.ClientOption{
		gemini.WithLogger(o.logger),
		gemini.WithDebug(cfg.Debug),
		gemini.WithTranscriptionModel(TranscriptionModel(cfg)),
		gemini.WithImageModel(ImageModel(cfg)),
		gemini.WithImageConfig(cfg.Image.AspectRatio, cfg.Image.ImageSize),
	}
	if url := o.baseURLs[config.ProviderGemini]; url != "" {
		opts = append(opts, gemini.WithBaseURL(url))
	}
	return gemini.NewClientFromEnv(opts...)
}

type loggedTranscriber struct {
	next     memo.Transcriber
	provider string
	model    string
	logger   *zap.Logger
}

func (l *loggedTranscriber) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	start := time.Now()
	text, err := l.next.Transcribe(ctx, base64Audio, mimeType)
	fields := []zap.Field{
		zap.String("provider", l.provider),
		zap.String("model", l.model),
		zap.String("mime_type", mimeType),
		zap.Int("audio_bytes", len(base64Audio)*3/4),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		l.logger.Error("transcription failed", append(fields, zap.Error(err))...)
		return "", err
	}
	l.logger.Info("transcription finished", append(fields, zap.Int("chars", len(text)))...)
	return text, nil
}

type loggedGenerator struct {
	next     memo.ImageGenerator
	provider string
	model    string
	logger   *zap.Logger
}

func (l *loggedGenerator) Generate(ctx context.Context, transcript string) (string, error) {
	start := time.Now()
	url, err := l.next.Generate(ctx, transcript)
	fields := []zap.Field{
		zap.String("provider", l.provider),
		zap.String("model", l.model),
		zap.Int("transcript_chars", len(transcript)),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		l.logger.Error("image generation failed", append(fields, zap.Error(err))...)
		return "", err
	}
	l.logger.Info("image generated", append(fields, zap.Int("data_url_bytes", len(url)))...)
	return url, nil
}

// KeyEnvVars returns the variables that hold the image provider's key, in
// lookup order. Nil means the provider does not use an API key.
func KeyEnvVars(cfg config.Config) []string {
	switch cfg.Image.Provider {
	case config.ProviderOpenAI:
		if cfg.OpenAI.AzureEndpoint != "" || os.Getenv("AZURE_OPENAI_ENDPOINT") != "" {
			return []string{"AZURE_OPENAI_API_KEY"}
		}
		return []string{"OPENAI_API_KEY"}
	case config.ProviderGenAI:
		if cfg.GenAI.Backend == config.BackendVertexAI {
			return nil
		}
	}
	return gemini.APIKeyEnvVars
}
