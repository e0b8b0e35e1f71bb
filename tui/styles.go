// Package tui provides the terminal UI for memographic using Charm libraries
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"memographic/session"
)

// Color palette - Catppuccin Mocha inspired with some custom touches
var (
	// Primary colors
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"} // Violet
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue

	// Semantic colors
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"} // Emerald
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"} // Red
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"} // Indigo

	// Neutral colors
	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}

	// Recording indicator
	ColorRecording = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	ColorBrand     = lipgloss.AdaptiveColor{Light: "#DB2777", Dark: "#F472B6"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	FocusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	BadgeRecordingStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Bold(true).
				Background(ColorRecording).
				Foreground(lipgloss.Color("#FFFFFF"))
)

// Banner is the application header
var Banner = `
 _ __ ___   ___ _ __ ___   ___   __ _ _ __ __ _ _ __ | |__ (_) ___
| '_ ` + "`" + ` _ \ / _ \ '_ ` + "`" + ` _ \ / _ \ / _` + "`" + ` | '__/ _` + "`" + ` | '_ \| '_ \| |/ __|
| | | | | |  __/ | | | | | (_) | (_| | | | (_| | |_) | | | | | (__
|_| |_| |_|\___|_| |_| |_|\___/ \__, |_|  \__,_| .__/|_| |_|_|\___|
                                |___/          |_|
`

// Header returns the styled banner
func Header() string {
	return lipgloss.NewStyle().
		Foreground(ColorBrand).
		Bold(true).
		Render(Banner)
}

// WizardStep is one stage in the step indicator
type WizardStep struct {
	Title  string
	Status StepStatus
}

// StepStatus represents the status of a wizard step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepError
)

var stepTitles = []string{"Record", "Transcribe", "Review", "Generate", "Done"}

// stepIndex maps a phase onto stepTitles. Idle shares the first step with
// Recording.
func stepIndex(p session.Phase) int {
	switch p {
	case session.Idle, session.Recording:
		return 0
	case session.ProcessingAudio:
		return 1
	case session.ReviewTranscript:
		return 2
	case session.GeneratingImage:
		return 3
	default:
		return 4
	}
}

// PhaseSteps builds the step list for a session state. An error marks the
// step that failed: generation when a transcript survived, otherwise
// transcription.
func PhaseSteps(s session.State) []WizardStep {
	current := stepIndex(s.Phase)
	failed := -1
	if s.Phase == session.Error {
		if s.Transcript != "" {
			failed = 3
		} else {
			failed = 1
		}
		current = failed
	}

	steps := make([]WizardStep, len(stepTitles))
	for i, title := range stepTitles {
		steps[i].Title = title
		switch {
		case i == failed:
			steps[i].Status = StepError
		case i < current:
			steps[i].Status = StepCompleted
		case i == current && s.Phase == session.Completed:
			steps[i].Status = StepCompleted
		case i == current:
			steps[i].Status = StepActive
		}
	}
	return steps
}

// StepIndicator renders the step list on one line
func StepIndicator(steps []WizardStep, width int) string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		Width(width).
		Align(lipgloss.Center)

	b.WriteString(headerStyle.Render("Voice Memo to Infographic"))
	b.WriteString("\n\n")

	for i, step := range steps {
		var icon string
		var style lipgloss.Style

		switch step.Status {
		case StepCompleted:
			icon = "[x]"
			style = lipgloss.NewStyle().Foreground(ColorSuccess)
		case StepActive:
			icon = "[>]"
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		case StepError:
			icon = "[!]"
			style = lipgloss.NewStyle().Foreground(ColorError)
		default:
			icon = "[ ]"
			style = lipgloss.NewStyle().Foreground(ColorMuted)
		}

		b.WriteString(style.Render(icon + " " + step.Title))

		if i < len(steps)-1 {
			connector := lipgloss.NewStyle().Foreground(ColorMuted)
			if step.Status == StepCompleted {
				connector = lipgloss.NewStyle().Foreground(ColorSuccess)
			}
			b.WriteString(connector.Render(" --- "))
		}
	}

	b.WriteString("\n")
	return b.String()
}

// SpinnerFrames animate the busy phases
var SpinnerFrames = []string{
	"[ .    ]",
	"[ ..   ]",
	"[ ...  ]",
	"[  ... ]",
	"[   .. ]",
	"[    . ]",
	"[      ]",
}

// StatusCard renders a bordered card whose color follows status
func StatusCard(icon, title, subtitle string, status StepStatus, width int) string {
	var borderColor lipgloss.AdaptiveColor
	var iconStyle lipgloss.Style

	switch status {
	case StepCompleted:
		borderColor = ColorSuccess
		iconStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	case StepActive:
		borderColor = ColorPrimary
		iconStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	case StepError:
		borderColor = ColorError
		iconStyle = lipgloss.NewStyle().Foreground(ColorError)
	default:
		borderColor = ColorBorder
		iconStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 2).
		Width(width)

	content := iconStyle.Render(icon) + " " + lipgloss.NewStyle().Bold(true).Foreground(ColorText).Render(title)
	if subtitle != "" {
		content += "\n   " + lipgloss.NewStyle().Foreground(ColorSubtle).Render(subtitle)
	}

	return cardStyle.Render(content)
}

// KeyBinding is one entry of the help footer
type KeyBinding struct {
	Key  string
	Desc string
}

// KeyHelp renders keyboard shortcut help in the given order
func KeyHelp(keys []KeyBinding) string {
	if len(keys) == 0 {
		return ""
	}

	helpStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	keyStyle := lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, keyStyle.Render(k.Key)+" "+helpStyle.Render(k.Desc))
	}

	sep := lipgloss.NewStyle().Foreground(ColorBorder).Render("  |  ")
	return helpStyle.Render(strings.Join(parts, sep))
}
