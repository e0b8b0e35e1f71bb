// Package config loads memographic settings from defaults, an optional YAML
// file and MEMOGRAPHIC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"memographic/gemini"
	"memographic/memo"
)

// Provider names
const (
	ProviderGemini             = "gemini"
	ProviderGenAI              = "genai"
	ProviderOpenAI             = "openai"
	ProviderElevenLabs         = "elevenlabs"
	ProviderElevenLabsRealtime = "elevenlabs_realtime"
)

// Key gate modes
const (
	KeyGatePrompt = "prompt"
	KeyGateOff    = "off"
)

// GenAI backends
const (
	BackendGeminiAPI = "gemini"
	BackendVertexAI  = "vertex"
)

type TranscriptionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type ImageConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	AspectRatio string `yaml:"aspect_ratio"`
	ImageSize   string `yaml:"image_size"`
}

type GenAIConfig struct {
	Backend  string `yaml:"backend"` // gemini, vertex
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

type OpenAIConfig struct {
	BaseURL         string `yaml:"base_url"`
	AzureEndpoint   string `yaml:"azure_endpoint"`
	AzureAPIVersion string `yaml:"azure_api_version"`
}

type RecorderConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Command    string `yaml:"command"`
	Device     string `yaml:"device"`
}

type OutputConfig struct {
	Dir  string `yaml:"dir"`
	Open bool   `yaml:"open"`
}

type KeyGateConfig struct {
	Mode        string `yaml:"mode"` // prompt, off
	PersistFile string `yaml:"persist_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type Config struct {
	Transcription  TranscriptionConfig `yaml:"transcription"`
	Image          ImageConfig         `yaml:"image"`
	GenAI          GenAIConfig         `yaml:"genai"`
	OpenAI         OpenAIConfig        `yaml:"openai"`
	Recorder       RecorderConfig      `yaml:"recorder"`
	Output         OutputConfig        `yaml:"output"`
	KeyGate        KeyGateConfig       `yaml:"key_gate"`
	Log            LogConfig           `yaml:"log"`
	RequestTimeout time.Duration       `yaml:"request_timeout"`
	Debug          bool                `yaml:"debug"`
}

func Default() Config {
	return Config{
		Transcription: TranscriptionConfig{
			Provider: ProviderGemini,
		},
		Image: ImageConfig{
			Provider:    ProviderGemini,
			AspectRatio: memo.DefaultAspectRatio,
			ImageSize:   memo.DefaultImageSize,
		},
		GenAI: GenAIConfig{
			Backend:  BackendGeminiAPI,
			Location: "us-central1",
		},
		OpenAI: OpenAIConfig{
			AzureAPIVersion: "2025-04-01-preview",
		},
		Recorder: RecorderConfig{
			SampleRate: 16000,
			Channels:   1,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		KeyGate: KeyGateConfig{
			Mode:        KeyGatePrompt,
			PersistFile: ".env",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		RequestTimeout: 5 * time.Minute,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/memographic/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "memographic", "config.yaml")
}

// Resolve returns path when set, otherwise DefaultPath if that file exists
func Resolve(path string) string {
	if path != "" {
		return path
	}
	if def := DefaultPath(); def != "" {
		if _, err := os.Stat(def); err == nil {
			return def
		}
	}
	return ""
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Transcription.Provider, "MEMOGRAPHIC_TRANSCRIPTION_PROVIDER")
	overrideString(&cfg.Transcription.Model, "MEMOGRAPHIC_TRANSCRIPTION_MODEL")
	overrideString(&cfg.Transcription.Language, "MEMOGRAPHIC_TRANSCRIPTION_LANGUAGE")
	overrideString(&cfg.Image.Provider, "MEMOGRAPHIC_IMAGE_PROVIDER")
	overrideString(&cfg.Image.Model, "MEMOGRAPHIC_IMAGE_MODEL")
	overrideString(&cfg.Image.AspectRatio, "MEMOGRAPHIC_IMAGE_ASPECT_RATIO")
	overrideString(&cfg.Image.ImageSize, "MEMOGRAPHIC_IMAGE_SIZE")
	overrideString(&cfg.GenAI.Backend, "MEMOGRAPHIC_GENAI_BACKEND")
	overrideString(&cfg.GenAI.Project, "MEMOGRAPHIC_GENAI_PROJECT")
	overrideString(&cfg.GenAI.Location, "MEMOGRAPHIC_GENAI_LOCATION")
	overrideString(&cfg.OpenAI.BaseURL, "MEMOGRAPHIC_OPENAI_BASE_URL")
	overrideString(&cfg.OpenAI.AzureEndpoint, "MEMOGRAPHIC_OPENAI_AZURE_ENDPOINT")
	overrideString(&cfg.OpenAI.AzureAPIVersion, "MEMOGRAPHIC_OPENAI_AZURE_API_VERSION")
	overrideInt(&cfg.Recorder.SampleRate, "MEMOGRAPHIC_RECORDER_SAMPLE_RATE")
	overrideInt(&cfg.Recorder.Channels, "MEMOGRAPHIC_RECORDER_CHANNELS")
	overrideString(&cfg.Recorder.Command, "MEMOGRAPHIC_RECORDER_COMMAND")
	overrideString(&cfg.Recorder.Device, "MEMOGRAPHIC_RECORDER_DEVICE")
	overrideString(&cfg.Output.Dir, "MEMOGRAPHIC_OUTPUT_DIR")
	overrideBool(&cfg.Output.Open, "MEMOGRAPHIC_OUTPUT_OPEN")
	overrideString(&cfg.KeyGate.Mode, "MEMOGRAPHIC_KEY_GATE_MODE")
	overrideString(&cfg.KeyGate.PersistFile, "MEMOGRAPHIC_KEY_GATE_PERSIST_FILE")
	overrideString(&cfg.Log.Level, "MEMOGRAPHIC_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "MEMOGRAPHIC_LOG_FORMAT")
	overrideString(&cfg.Log.File, "MEMOGRAPHIC_LOG_FILE")
	overrideDuration(&cfg.RequestTimeout, "MEMOGRAPHIC_REQUEST_TIMEOUT")
	overrideBool(&cfg.Debug, "MEMOGRAPHIC_DEBUG")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideDuration(target *time.Duration, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := time.ParseDuration(value); err == nil {
			*target = parsed
		}
	}
}

// Validate reports the first invalid setting
func (cfg Config) Validate() error {
	switch cfg.Transcription.Provider {
	case ProviderGemini, ProviderGenAI, ProviderOpenAI, ProviderElevenLabs, ProviderElevenLabsRealtime:
	default:
		return fmt.Errorf("transcription.provider must be one of gemini, genai, openai, elevenlabs, elevenlabs_realtime (got %q)", cfg.Transcription.Provider)
	}
	switch cfg.Image.Provider {
	case ProviderGemini, ProviderGenAI, ProviderOpenAI:
	default:
		return fmt.Errorf("image.provider must be one of gemini, genai, openai (got %q)", cfg.Image.Provider)
	}
	if !gemini.ValidAspectRatio(cfg.Image.AspectRatio) {
		return fmt.Errorf("image.aspect_ratio %q is not supported", cfg.Image.AspectRatio)
	}
	if !gemini.ValidImageSize(cfg.Image.ImageSize) {
		return fmt.Errorf("image.image_size must be 1K, 2K or 4K (got %q)", cfg.Image.ImageSize)
	}
	switch cfg.GenAI.Backend {
	case BackendGeminiAPI:
	case BackendVertexAI:
		if cfg.GenAI.Project == "" && (cfg.Transcription.Provider == ProviderGenAI || cfg.Image.Provider == ProviderGenAI) {
			return errors.New("genai.project is required for the vertex backend")
		}
	default:
		return fmt.Errorf("genai.backend must be gemini or vertex (got %q)", cfg.GenAI.Backend)
	}
	if cfg.Recorder.SampleRate < 8000 || cfg.Recorder.SampleRate > 48000 {
		return errors.New("recorder.sample_rate must be between 8000 and 48000")
	}
	if cfg.Recorder.Channels != 1 && cfg.Recorder.Channels != 2 {
		return errors.New("recorder.channels must be 1 or 2")
	}
	switch cfg.KeyGate.Mode {
	case KeyGatePrompt, KeyGateOff:
	default:
		return fmt.Errorf("key_gate.mode must be prompt or off (got %q)", cfg.KeyGate.Mode)
	}
	if cfg.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if cfg.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	return nil
}
