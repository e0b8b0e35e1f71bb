package keygate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// DefaultEnvVars are checked in order for a selected Gemini key
var DefaultEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}

// Prompter asks the user for an API key. An empty answer means no selection.
type Prompter func(ctx context.Context) (string, error)

// EnvHost treats a non-empty environment variable as a selected key and
// collects a new one through a Prompter
type EnvHost struct {
	vars        []string
	prompt      Prompter
	persistFile string
	logger      *zap.Logger
}

// EnvOption configures an EnvHost
type EnvOption func(*EnvHost)

// WithEnvVars overrides the variables that count as a selected key. The
// first one receives a newly entered key.
func WithEnvVars(vars ...string) EnvOption {
	return func(h *EnvHost) {
		if len(vars) > 0 {
			h.vars = vars
		}
	}
}

// WithPersistFile stores entered keys in a dotenv file
func WithPersistFile(path string) EnvOption {
	return func(h *EnvHost) {
		h.persistFile = path
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) EnvOption {
	return func(h *EnvHost) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewEnvHost creates an environment-backed host
func NewEnvHost(prompt Prompter, opts ...EnvOption) *EnvHost {
	h := &EnvHost{
		vars:   DefaultEnvVars,
		prompt: prompt,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HasSelectedAPIKey implements Host
func (h *EnvHost) HasSelectedAPIKey(ctx context.Context) (bool, error) {
	for _, name := range h.vars {
		if strings.TrimSpace(os.Getenv(name)) != "" {
			return true, nil
		}
	}
	return false, nil
}

// OpenSelectKey implements Host. A cancelled or empty prompt is not an
// error; the follow-up check simply finds no key.
func (h *EnvHost) OpenSelectKey(ctx context.Context) error {
	if h.prompt == nil {
		h.logger.Warn("no key prompt available")
		return nil
	}

	key, err := h.prompt(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			h.logger.Info("key selection aborted by user")
			return nil
		}
		return err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	name := h.vars[0]
	if err := os.Setenv(name, key); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	h.logger.Info("api key selected", zap.String("var", name))

	if h.persistFile != "" {
		if err := persistKey(h.persistFile, name, key); err != nil {
			// The key is usable for this run even if saving failed.
			h.logger.Warn("failed to persist api key", zap.String("file", h.persistFile), zap.Error(err))
		}
	}
	return nil
}

func persistKey(path, name, key string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[name] = key
	return godotenv.Write(env, path)
}

// NewKeyForm builds the password field used to collect a key
func NewKeyForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("api_key").
				Title("API key required").
				Description("Image models need a paid key. Get one at https://aistudio.google.com/apikey").
				Placeholder("paste your key").
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("key cannot be empty")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeCatppuccin()).WithShowHelp(true)
}

// FormPrompter runs the key form as a standalone program, for use outside
// the TUI
func FormPrompter() Prompter {
	return func(ctx context.Context) (string, error) {
		form := NewKeyForm()
		if err := form.RunWithContext(ctx); err != nil {
			return "", err
		}
		return form.GetString("api_key"), nil
	}
}
