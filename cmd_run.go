package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memographic/keygate"
	"memographic/logging"
	"memographic/media"
	"memographic/recorder"
	"memographic/session"
)

// runOptions holds the flags of the run command
type runOptions struct {
	audioPath      string
	outputDir      string
	transcriptOnly bool
	yes            bool
	open           bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the memo pipeline without the full-screen UI",
		Long: `Transcribe a voice memo and generate an infographic from it.

With --audio an existing recording (or a video's audio track) is used,
otherwise the microphone records until Enter is pressed.

Examples:
  memographic run --audio memo.m4a
  memographic run --audio memo.wav --transcript-only
  memographic run --yes --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(root)
			if err != nil {
				return err
			}
			defer logging.Sync()

			if opts.outputDir == "" {
				opts.outputDir = a.cfg.Output.Dir
			}
			if a.cfg.Output.Open {
				opts.open = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPipeline(ctx, a, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.audioPath, "audio", "a", "", "audio or video file to transcribe instead of recording")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "directory for the infographic (default from config)")
	cmd.Flags().BoolVar(&opts.transcriptOnly, "transcript-only", false, "stop after printing the transcript")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "generate without asking to review the transcript")
	cmd.Flags().BoolVar(&opts.open, "open", false, "open the saved infographic")
	return cmd
}

func runPipeline(ctx context.Context, a *app, opts *runOptions, in io.Reader, out io.Writer) error {
	if opts.audioPath == "" {
		if err := a.checkCapture(); err != nil {
			return err
		}
	}

	// The session's own gate never prompts: a form cannot share the
	// terminal with the spinner, so the key is collected before generating.
	machine, err := a.newMachine(keyHost(a.cfg, nil, a.logger))
	if err != nil {
		return err
	}
	defer machine.Close()

	fmt.Fprintln(out, titleStyle.Render("memographic"))
	if help := keyHelp(a.cfg); help != "" {
		fmt.Fprintln(out, infoStyle.Render(help))
		return errors.New("transcription provider has no API key")
	}

	if err := transcribeStep(ctx, a, machine, opts, in, out); err != nil {
		return err
	}

	state := machine.State()
	fmt.Fprintln(out, boxStyle.Render("Transcript\n\n"+state.Transcript))
	if opts.transcriptOnly {
		return nil
	}

	if !opts.yes {
		proceed, err := reviewTranscript(ctx, machine)
		if err != nil {
			return err
		}
		if !proceed {
			_ = machine.Cancel()
			fmt.Fprintln(out, infoStyle.Render("Generation cancelled."))
			return nil
		}
	}

	if !opts.yes {
		host := keyHost(a.cfg, keygate.FormPrompter(), a.logger)
		if _, err := keygate.EnsureKeySelected(ctx, host); err != nil {
			a.logger.Warn("key selection failed", zap.Error(err))
		}
	}

	var genErr error
	err = spinner.New().
		Title("Designing your infographic...").
		Action(func() {
			genErr = machine.Generate(ctx)
		}).
		Run()
	if genErr != nil {
		return phaseError(machine, genErr)
	}
	if err != nil {
		return err
	}

	path, err := machine.Download(opts.outputDir)
	if err != nil {
		return fmt.Errorf("failed to save infographic: %w", err)
	}
	fmt.Fprintln(out, successStyle.Render(boxStyle.Render(completionSummary(machine.State(), path))))

	if opts.open {
		if err := media.Open(path); err != nil {
			a.logger.Warn("failed to open infographic", zap.String("path", path), zap.Error(err))
			fmt.Fprintln(out, infoStyle.Render("Could not open the image: "+err.Error()))
		}
	}
	return nil
}

// transcribeStep fills the session with a transcript, from a file or from
// the microphone
func transcribeStep(ctx context.Context, a *app, machine *session.Machine, opts *runOptions, in io.Reader, out io.Writer) error {
	var stepErr error

	if opts.audioPath != "" {
		err := spinner.New().
			Title("Transcribing " + filepath.Base(opts.audioPath) + "...").
			Action(func() {
				audio, err := recorder.LoadFile(ctx, opts.audioPath, a.cfg.Recorder.SampleRate)
				if err != nil {
					stepErr = err
					return
				}
				stepErr = machine.SubmitAudio(ctx, audio)
			}).
			Run()
		if stepErr != nil {
			return phaseError(machine, stepErr)
		}
		return err
	}

	if err := machine.StartRecording(ctx); err != nil {
		return errors.New(session.UserMessage(err, "Could not start recording."))
	}
	fmt.Fprintln(out, subtitleStyle.Render("Recording... press Enter to stop."))

	start := time.Now()
	if err := waitForEnter(ctx, in); err != nil {
		_ = machine.Reset()
		return err
	}
	fmt.Fprintln(out, infoStyle.Render("Recorded "+media.FormatDuration(time.Since(start))))

	err := spinner.New().
		Title("Transcribing your memo...").
		Action(func() {
			stepErr = machine.StopRecording(ctx)
		}).
		Run()
	if stepErr != nil {
		return phaseError(machine, stepErr)
	}
	return err
}

// waitForEnter blocks until a line is read from in or ctx is done
func waitForEnter(ctx context.Context, in io.Reader) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reviewTranscript lets the user edit the transcript before generating.
// It reports false when the user backs out.
func reviewTranscript(ctx context.Context, machine *session.Machine) (bool, error) {
	for {
		var choice string
		err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[string]().
				Title("Generate an infographic from this transcript?").
				Options(
					huh.NewOption("Generate", "generate"),
					huh.NewOption("Edit transcript first", "edit"),
					huh.NewOption("Cancel", "cancel"),
				).
				Value(&choice),
		)).WithTheme(huh.ThemeCatppuccin()).RunWithContext(ctx)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return false, nil
			}
			return false, err
		}

		switch choice {
		case "generate":
			return true, nil
		case "cancel":
			return false, nil
		}

		text := machine.State().Transcript
		err = huh.NewForm(huh.NewGroup(
			huh.NewText().
				Title("Edit transcript").
				CharLimit(0).
				Lines(10).
				Value(&text),
		)).WithTheme(huh.ThemeCatppuccin()).RunWithContext(ctx)
		if err != nil && !errors.Is(err, huh.ErrUserAborted) {
			return false, err
		}
		if err == nil {
			if err := machine.EditTranscript(text); err != nil {
				return false, err
			}
		}
	}
}

// phaseError prefers the message the session shows in its Error phase
func phaseError(machine *session.Machine, err error) error {
	if s := machine.State(); s.Phase == session.Error && s.ErrorMessage != "" {
		return fmt.Errorf("%s", s.ErrorMessage)
	}
	return err
}

func completionSummary(s session.State, path string) string {
	var b strings.Builder
	b.WriteString("Done!\n\n")
	b.WriteString("Saved to: " + path + "\n")

	if info, err := media.DescribeDataURL(s.ImageURL); err == nil {
		fmt.Fprintf(&b, "Image:    %s %dx%d (%s)\n", info.Format, info.Width, info.Height, info.Orientation())
		b.WriteString("Size:     " + formatFileSize(int64(info.Bytes)))
	} else if fi, err := os.Stat(path); err == nil {
		b.WriteString("Size:     " + formatFileSize(fi.Size()))
	}
	return b.String()
}
