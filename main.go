package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memographic/config"
	"memographic/logging"
	"memographic/media"
	"memographic/session"
	"memographic/tui"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F472B6")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#38BDF8")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#38BDF8")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every command
type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "memographic",
		Short: "Turn a voice memo into an infographic",
		Long: `Record a voice memo, review its transcript and turn it into an
infographic with an image model.

Without a subcommand the interactive terminal UI starts.

Configuration is read from $XDG_CONFIG_HOME/memographic/config.yaml (or
--config), then .env, then MEMOGRAPHIC_* environment variables.

API keys:
  GEMINI_API_KEY       gemini and genai providers
  OPENAI_API_KEY       openai provider (AZURE_OPENAI_API_KEY for Azure)
  ELEVENLABS_API_KEY   elevenlabs transcription`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer logging.Sync()
			return runTUI(a)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log at debug level")

	cmd.AddCommand(
		newRunCmd(opts),
		newUpdateCmd(),
		newVersionCmd(),
	)
	return cmd
}

// app carries what every command needs once configuration is loaded
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func loadApp(opts *rootOptions) (*app, error) {
	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	cfg, err := config.Load(config.Resolve(opts.configPath))
	if err != nil {
		return nil, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	logger, err := logging.Initialize(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("memographic starting",
		zap.String("version", version),
		zap.String("transcription_provider", cfg.Transcription.Provider),
		zap.String("image_provider", cfg.Image.Provider),
	)
	return &app{cfg: cfg, logger: logger}, nil
}

// checkCapture makes sure the default capture command can run. A custom
// command is trusted as configured.
func (a *app) checkCapture() error {
	if a.cfg.Recorder.Command != "" {
		return nil
	}
	if _, err := media.CheckFFmpeg(); err != nil {
		return err
	}
	return nil
}

func runTUI(a *app) error {
	if err := a.checkCapture(); err != nil {
		return err
	}
	if help := keyHelp(a.cfg); help != "" {
		fmt.Println(infoStyle.Render(help))
		return errors.New("transcription provider has no API key")
	}

	prompter := tui.NewKeyPrompter()
	machine, err := a.newMachine(keyHost(a.cfg, prompter.Prompt, a.logger))
	if err != nil {
		return err
	}

	model := tui.NewModel(machine, prompter, tui.Options{
		OutputDir:  a.cfg.Output.Dir,
		SampleRate: a.cfg.Recorder.SampleRate,
		Logger:     a.logger,
	})
	return runSession(machine, a.logger, func() error { return tui.Run(model) })
}

// runSession runs the UI and closes the session however it exits. The quit
// key closes it too, but a program that dies any other way must still
// release the microphone.
func runSession(machine *session.Machine, logger *zap.Logger, run func() error) error {
	defer func() {
		if err := machine.Close(); err != nil {
			logger.Warn("failed to close session", zap.Error(err))
		}
	}()
	return run()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), versionInfo())
		},
	}
}

func versionInfo() string {
	return fmt.Sprintf("memographic %s\n"+
		"  commit: %s\n"+
		"  built:  %s\n"+
		"  go:     %s\n"+
		"  os/arch: %s/%s\n",
		version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
