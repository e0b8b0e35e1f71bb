package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"memographic/keygate"
	"memographic/media"
	"memographic/recorder"
	"memographic/session"
)

// Options configures the memo UI
type Options struct {
	// OutputDir receives downloaded infographics
	OutputDir string
	// SampleRate is used when an imported file has to be converted
	SampleRate int
	Logger     *zap.Logger
}

type keyAnswer struct {
	key string
	err error
}

type keyRequest struct {
	reply chan keyAnswer
}

// KeyPrompter lets the key gate ask for an API key through the running
// program instead of taking over the terminal
type KeyPrompter struct {
	requests chan keyRequest
}

// NewKeyPrompter creates a prompter. Pass its Prompt method to
// keygate.NewEnvHost and the prompter itself to NewModel.
func NewKeyPrompter() *KeyPrompter {
	return &KeyPrompter{requests: make(chan keyRequest)}
}

// Prompt implements keygate.Prompter. It blocks until the user submits or
// dismisses the key form, or ctx is done.
func (p *KeyPrompter) Prompt(ctx context.Context) (string, error) {
	req := keyRequest{reply: make(chan keyAnswer, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case a := <-req.reply:
		return a.key, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Messages
type (
	stateMsg      struct{}
	keyRequestMsg keyRequest

	// actionDoneMsg reports the result of a blocking machine call
	actionDoneMsg struct {
		action string
		err    error
	}

	savedMsg struct {
		path   string
		opened bool
		err    error
	}

	recordTickMsg struct {
		id int
	}
)

// Model is the Bubble Tea model for a memo session. Every phase change comes
// from the session machine; the model only renders the current state and
// turns keys into machine events.
type Model struct {
	machine  *session.Machine
	prompter *KeyPrompter
	opts     Options
	logger   *zap.Logger

	state       session.State
	updates     chan session.State
	unsubscribe func()

	// UI Components
	transcript textarea.Model
	reader     viewport.Model
	fileInput  textinput.Model
	spinner    spinner.Model
	progress   progress.Model

	// Key form, set while the key gate is waiting for an answer
	keyForm  *huh.Form
	keyReply chan keyAnswer

	editing     bool
	importing   bool
	recordStart time.Time
	tickID      int

	notice    string
	noticeErr bool
	savedPath string
	imageInfo *media.ImageInfo

	width    int
	height   int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewModel creates the UI for machine. prompter may be nil when the key gate
// is disabled.
func NewModel(machine *session.Machine, prompter *KeyPrompter, opts Options) Model {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = recorder.DefaultSampleRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ta := textarea.New()
	ta.Placeholder = "Transcript"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(70)
	ta.SetHeight(10)

	vp := viewport.New(70, 10)

	ti := textinput.New()
	ti.Placeholder = "./memo.m4a"
	ti.CharLimit = 500
	ti.Width = 50

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerFrames,
		FPS:    time.Second / 8,
	}
	s.Style = lipgloss.NewStyle().Foreground(ColorBrand)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)

	// Updates are coalesced: the model re-reads the machine on every
	// message, so a dropped notification only skips an intermediate frame.
	updates := make(chan session.State, 16)
	unsubscribe := machine.Subscribe(func(s session.State) {
		select {
		case updates <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		machine:     machine,
		prompter:    prompter,
		opts:        opts,
		logger:      logger,
		state:       machine.State(),
		updates:     updates,
		unsubscribe: unsubscribe,
		transcript:  ta,
		reader:      vp,
		fileInput:   ti,
		spinner:     s,
		progress:    p,
		width:       80,
		height:      24,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.waitForState()}
	if m.prompter != nil {
		cmds = append(cmds, m.waitForKeyRequest())
	}
	return tea.Batch(cmds...)
}

func (m Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		<-updates
		return stateMsg{}
	}
}

func (m Model) waitForKeyRequest() tea.Cmd {
	requests := m.prompter.requests
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case req := <-requests:
			return keyRequestMsg(req)
		case <-ctx.Done():
			return nil
		}
	}
}

func recordTick(id int) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return recordTickMsg{id: id}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(20, m.width-20)
		m.transcript.SetWidth(max(30, m.width-10))
		m.reader.Width = max(30, m.width-10)
		m.reader.SetContent(m.wrappedTranscript())
		if m.keyForm != nil {
			_, cmd := m.keyForm.Update(msg)
			return m, cmd
		}
		return m, nil

	case stateMsg:
		return m.syncState()

	case keyRequestMsg:
		m.keyForm = keygate.NewKeyForm()
		m.keyReply = msg.reply
		return m, tea.Batch(m.keyForm.Init(), m.waitForKeyRequest())

	case actionDoneMsg:
		return m.handleActionDone(msg), nil

	case savedMsg:
		if msg.err != nil {
			m.notice = "Could not save the image: " + msg.err.Error()
			m.noticeErr = true
			return m, nil
		}
		m.savedPath = msg.path
		m.notice = "Saved " + msg.path
		m.noticeErr = false
		if msg.opened {
			m.notice += " and opened it"
		}
		return m, nil

	case recordTickMsg:
		if msg.id != m.tickID || m.state.Phase != session.Recording {
			return m, nil
		}
		return m, recordTick(msg.id)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
	}

	if m.keyForm != nil {
		return m.updateKeyForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch {
		case m.editing:
			return m.handleEditKey(key)
		case m.importing:
			return m.handleImportKey(key)
		default:
			return m.handleKey(key)
		}
	}

	var cmd tea.Cmd
	switch {
	case m.editing:
		m.transcript, cmd = m.transcript.Update(msg)
	case m.importing:
		m.fileInput, cmd = m.fileInput.Update(msg)
	}
	return m, cmd
}

// syncState pulls the latest record from the machine
func (m Model) syncState() (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = m.machine.State()
	cmds := []tea.Cmd{m.waitForState()}

	if m.state.Phase == session.ReviewTranscript && m.state.Transcript != prev.Transcript {
		m.reader.SetContent(m.wrappedTranscript())
	}
	if m.state.Phase == prev.Phase {
		return m, tea.Batch(cmds...)
	}

	m.logger.Debug("phase changed",
		zap.Stringer("from", prev.Phase),
		zap.Stringer("to", m.state.Phase),
	)

	// A prompt outlives its request only when the request timed out
	if m.keyForm != nil && m.state.Phase != session.GeneratingImage {
		m.replyKey(keyAnswer{err: huh.ErrUserAborted})
	}
	if m.editing && m.state.Phase != session.ReviewTranscript {
		m.editing = false
		m.transcript.Blur()
	}

	switch m.state.Phase {
	case session.Idle:
		m.notice = ""
		m.imageInfo = nil
		m.savedPath = ""
	case session.Recording:
		m.notice = ""
		m.recordStart = time.Now()
		m.tickID++
		cmds = append(cmds, recordTick(m.tickID))
	case session.ReviewTranscript:
		m.transcript.SetValue(m.state.Transcript)
	case session.Completed:
		m.savedPath = ""
		m.imageInfo = nil
		if info, err := media.DescribeDataURL(m.state.ImageURL); err == nil {
			m.imageInfo = &info
		} else {
			m.logger.Warn("could not read image dimensions", zap.Error(err))
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleActionDone(msg actionDoneMsg) Model {
	if msg.err == nil {
		return m
	}
	m.logger.Debug("action finished with error", zap.String("action", msg.action), zap.Error(msg.err))

	switch msg.action {
	case "record":
		// A repeated key while the device opens
		if errors.Is(msg.err, session.ErrInvalidTransition) {
			return m
		}
		m.notice = session.UserMessage(msg.err, "Could not start recording.")
		m.noticeErr = true
	case "import":
		m.notice = "Could not read audio file: " + msg.err.Error()
		m.noticeErr = true
	}
	// Transcription and generation failures already moved the session to
	// Error, where the message is shown.
	return m
}

func (m Model) updateKeyForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.replyKey(keyAnswer{err: huh.ErrUserAborted})
		return m, nil
	}

	model, cmd := m.keyForm.Update(msg)
	if form, ok := model.(*huh.Form); ok {
		m.keyForm = form
	}

	switch m.keyForm.State {
	case huh.StateCompleted:
		m.replyKey(keyAnswer{key: m.keyForm.GetString("api_key")})
	case huh.StateAborted:
		m.replyKey(keyAnswer{err: huh.ErrUserAborted})
	}
	return m, cmd
}

// replyKey answers the pending prompt and closes the form
func (m *Model) replyKey(a keyAnswer) {
	if m.keyReply != nil {
		m.keyReply <- a
	}
	m.keyForm = nil
	m.keyReply = nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.keyForm != nil {
		m.replyKey(keyAnswer{err: huh.ErrUserAborted})
	}
	m.cancel()
	m.unsubscribe()
	if err := m.machine.Close(); err != nil {
		m.logger.Warn("failed to close session", zap.Error(err))
	}
	return m, tea.Quit
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+s":
		m.editing = false
		m.transcript.Blur()
		if err := m.machine.EditTranscript(m.transcript.Value()); err != nil {
			m.logger.Debug("edit rejected", zap.Error(err))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.transcript, cmd = m.transcript.Update(msg)
	return m, cmd
}

func (m Model) handleImportKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.importing = false
		m.fileInput.Blur()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.fileInput.Value())
		if path == "" {
			return m, nil
		}
		if !media.IsSupportedMediaFile(path) {
			m.notice = fmt.Sprintf("Unsupported file type %q. Choose an audio or video file.", filepath.Ext(path))
			m.noticeErr = true
			return m, nil
		}
		m.importing = false
		m.fileInput.Blur()
		m.fileInput.Reset()
		m.notice = ""
		return m, m.importFile(path)
	}

	var cmd tea.Cmd
	m.fileInput, cmd = m.fileInput.Update(msg)
	return m, cmd
}

// handleKey maps keys to machine events for the current phase
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" {
		return m.quit()
	}

	switch m.state.Phase {
	case session.Idle:
		switch key {
		case "r":
			m.notice = ""
			return m, m.run("record", m.machine.StartRecording)
		case "i":
			m.importing = true
			cmd := m.fileInput.Focus()
			return m, cmd
		}

	case session.Recording:
		switch key {
		case "s", " ", "enter":
			return m, m.run("stop", m.machine.StopRecording)
		case "x", "esc":
			if err := m.machine.Reset(); err != nil {
				m.logger.Warn("failed to discard recording", zap.Error(err))
			}
		}

	case session.ProcessingAudio, session.GeneratingImage:
		switch key {
		case "x", "esc":
			if err := m.machine.Abort(); err != nil {
				m.logger.Debug("abort rejected", zap.Error(err))
			}
		}

	case session.ReviewTranscript:
		switch key {
		case "e":
			m.editing = true
			m.transcript.SetValue(m.state.Transcript)
			cmd := m.transcript.Focus()
			return m, cmd
		case "enter", "g":
			return m, m.run("generate", m.machine.Generate)
		case "c":
			if err := m.machine.Cancel(); err != nil {
				m.logger.Debug("cancel rejected", zap.Error(err))
			}
		default:
			var cmd tea.Cmd
			m.reader, cmd = m.reader.Update(msg)
			return m, cmd
		}

	case session.Completed:
		switch key {
		case "d":
			return m, m.save(false)
		case "o":
			return m, m.save(true)
		case "n":
			m.machine.Reset()
		}

	case session.Error:
		switch key {
		case "v":
			if m.state.CanRevise() {
				m.machine.ReviseTranscript()
			}
		case "n", "r":
			m.machine.Reset()
		}
	}

	return m, nil
}

// run calls a blocking machine event off the UI goroutine
func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		err := fn(ctx)
		if errors.Is(err, session.ErrCancelled) {
			err = nil
		}
		return actionDoneMsg{action: action, err: err}
	}
}

func (m Model) importFile(path string) tea.Cmd {
	ctx := m.ctx
	machine := m.machine
	sampleRate := m.opts.SampleRate
	return func() tea.Msg {
		audio, err := recorder.LoadFile(ctx, path, sampleRate)
		if err != nil {
			return actionDoneMsg{action: "import", err: err}
		}
		err = machine.SubmitAudio(ctx, audio)
		if errors.Is(err, session.ErrCancelled) {
			err = nil
		}
		return actionDoneMsg{action: "transcribe", err: err}
	}
}

func (m Model) save(open bool) tea.Cmd {
	machine := m.machine
	dir := m.opts.OutputDir
	return func() tea.Msg {
		path, err := machine.Download(dir)
		if err != nil {
			return savedMsg{err: err}
		}
		if open {
			if err := media.Open(path); err != nil {
				return savedMsg{path: path, err: err}
			}
		}
		return savedMsg{path: path, opened: open}
	}
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return MutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	b.WriteString(Header())
	b.WriteString("\n")
	b.WriteString(StepIndicator(PhaseSteps(m.state), m.width))
	b.WriteString("\n")

	if m.keyForm != nil {
		b.WriteString(FocusedBoxStyle.Render(m.keyForm.View()))
		b.WriteString("\n")
		b.WriteString(KeyHelp([]KeyBinding{{"enter", "Save key"}, {"esc", "Skip"}}))
		return b.String()
	}

	switch m.state.Phase {
	case session.Idle:
		b.WriteString(m.renderIdle())
	case session.Recording:
		b.WriteString(m.renderRecording())
	case session.ProcessingAudio:
		b.WriteString(m.renderBusy("Transcribing your memo..."))
	case session.ReviewTranscript:
		b.WriteString(m.renderReview())
	case session.GeneratingImage:
		b.WriteString(m.renderBusy("Generating infographic..."))
	case session.Completed:
		b.WriteString(m.renderComplete())
	case session.Error:
		b.WriteString(m.renderError())
	}

	if m.notice != "" {
		style := InfoStyle
		if m.noticeErr {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(m.progress.ViewAs(float64(session.Progress(m.state.Phase)) / 100))
	b.WriteString("\n")
	b.WriteString(KeyHelp(m.helpKeys()))

	return b.String()
}

func (m Model) renderIdle() string {
	title := TitleStyle.Render("Ready")
	body := BodyStyle.Render("Record a voice memo and turn it into an infographic.")
	if m.importing {
		return FocusedBoxStyle.Render(
			title + "\n" + body + "\n\n" +
				SubtitleStyle.Render("Audio file") + "\n" + m.fileInput.View(),
		)
	}
	return BoxStyle.Render(title + "\n" + body)
}

func (m Model) renderRecording() string {
	badge := BadgeRecordingStyle.Render("REC")
	d, ok := m.machine.RecordingElapsed()
	if !ok {
		d = time.Since(m.recordStart)
	}
	elapsed := BodyStyle.Render(media.FormatDuration(d))
	hint := MutedStyle.Render("Speak now. Press s to stop.")
	return BoxStyle.Render(badge + " " + elapsed + "\n\n" + hint)
}

func (m Model) renderBusy(message string) string {
	return BoxStyle.Render(
		m.spinner.View() + " " + BodyStyle.Render(message),
	)
}

func (m Model) renderReview() string {
	title := TitleStyle.Render("Review transcript")
	if m.editing {
		return FocusedBoxStyle.Render(title + "\n" + m.transcript.View())
	}
	return BoxStyle.Render(title + "\n" + m.reader.View())
}

func (m Model) wrappedTranscript() string {
	return BodyStyle.Width(m.reader.Width).Render(m.state.Transcript)
}

func (m Model) renderComplete() string {
	title := SuccessStyle.Render("Infographic ready")

	var details []string
	if m.imageInfo != nil {
		details = append(details,
			fmt.Sprintf("Format:  %s", m.imageInfo.Format),
			fmt.Sprintf("Size:    %dx%d (%s)", m.imageInfo.Width, m.imageInfo.Height, m.imageInfo.Orientation()),
			fmt.Sprintf("Bytes:   %d", m.imageInfo.Bytes),
		)
	}
	if m.savedPath != "" {
		details = append(details, "Saved:   "+m.savedPath)
	} else {
		details = append(details, "Output:  "+m.opts.OutputDir)
	}

	summary := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorSuccess).
		Padding(1, 2).
		Render(strings.Join(details, "\n"))

	return BoxStyle.Render(title + "\n\n" + summary)
}

func (m Model) renderError() string {
	subtitle := ""
	if m.state.CanRevise() {
		subtitle = "Your transcript was kept. Press v to revise it."
	}
	return StatusCard("!", m.state.ErrorMessage, subtitle, StepError, max(30, m.width-10)) + "\n"
}

func (m Model) helpKeys() []KeyBinding {
	if m.editing {
		return []KeyBinding{{"ctrl+s", "Save"}, {"esc", "Done"}}
	}
	if m.importing {
		return []KeyBinding{{"enter", "Transcribe"}, {"esc", "Back"}}
	}

	var keys []KeyBinding
	switch m.state.Phase {
	case session.Idle:
		keys = append(keys, KeyBinding{"r", "Record"}, KeyBinding{"i", "Import file"})
	case session.Recording:
		keys = append(keys, KeyBinding{"s", "Stop"}, KeyBinding{"x", "Discard"})
	case session.ProcessingAudio, session.GeneratingImage:
		keys = append(keys, KeyBinding{"x", "Abort"})
	case session.ReviewTranscript:
		keys = append(keys, KeyBinding{"enter", "Generate"}, KeyBinding{"e", "Edit"}, KeyBinding{"c", "Cancel"}, KeyBinding{"↑/↓", "Scroll"})
	case session.Completed:
		keys = append(keys, KeyBinding{"d", "Download"}, KeyBinding{"o", "Download and open"}, KeyBinding{"n", "New memo"})
	case session.Error:
		if m.state.CanRevise() {
			keys = append(keys, KeyBinding{"v", "Revise"})
		}
		keys = append(keys, KeyBinding{"n", "Start over"})
	}
	return append(keys, KeyBinding{"q", "Quit"})
}

// State returns the last state the model rendered
func (m Model) State() session.State { return m.state }

// Run starts the program and blocks until the user quits
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
