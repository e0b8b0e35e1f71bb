package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"memographic/memo"
)

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	audio    *memo.Audio
	stopErr  error
	started  int
	stopped  int
	closed   int
}

func (r *fakeRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started++
	return nil
}

func (r *fakeRecorder) Stop(ctx context.Context) (*memo.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return r.audio, r.stopErr
}

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

// blockingRecorder holds Stop until release is closed
type blockingRecorder struct {
	fakeRecorder
	stopping chan struct{}
	release  chan struct{}
}

func (r *blockingRecorder) Stop(ctx context.Context) (*memo.Audio, error) {
	close(r.stopping)
	<-r.release
	return r.fakeRecorder.Stop(ctx)
}

type timedRecorder struct {
	fakeRecorder
	elapsed time.Duration
}

func (r *timedRecorder) Elapsed() time.Duration {
	return r.elapsed
}

type fakeHost struct {
	selected bool
}

func (h *fakeHost) HasSelectedAPIKey(ctx context.Context) (bool, error) {
	return h.selected, nil
}

func (h *fakeHost) OpenSelectKey(ctx context.Context) error {
	return nil
}

func testAudio() *memo.Audio {
	return memo.NewAudio([]byte("RIFF....WAVEfmt "), "audio/wav", 3*time.Second)
}

func staticTranscriber(text string, err error) (memo.Transcriber, *int) {
	calls := 0
	return memo.TranscriberFunc(func(ctx context.Context, b64, mime string) (string, error) {
		calls++
		return text, err
	}), &calls
}

func staticGenerator(url string, err error) (memo.ImageGenerator, *int) {
	calls := 0
	return memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
		calls++
		return url, err
	}), &calls
}

// recordStates subscribes to m and fails the test if any published state
// breaks the record invariants
func recordStates(t *testing.T, m *Machine) func() []State {
	t.Helper()
	var mu sync.Mutex
	var states []State
	m.Subscribe(func(s State) {
		if err := s.Validate(); err != nil {
			t.Errorf("published invalid state %+v: %v", s, err)
		}
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	return func() []State {
		mu.Lock()
		defer mu.Unlock()
		return append([]State(nil), states...)
	}
}

func waitForPhase(t *testing.T, m *Machine, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State().Phase == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, have %s", want, m.State().Phase)
}

func TestInitialState(t *testing.T) {
	m := New()
	if got := m.State(); got != (State{}) {
		t.Errorf("initial state = %+v, want zero value", got)
	}
	if m.State().Phase != Idle {
		t.Errorf("initial phase = %s, want Idle", m.State().Phase)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		phase Phase
		want  int
	}{
		{Idle, 5},
		{Recording, 25},
		{ProcessingAudio, 50},
		{ReviewTranscript, 75},
		{GeneratingImage, 90},
		{Completed, 100},
		{Error, 100},
	}

	for _, tt := range tests {
		t.Run(tt.phase.String(), func(t *testing.T) {
			if got := Progress(tt.phase); got != tt.want {
				t.Errorf("Progress(%s) = %d, want %d", tt.phase, got, tt.want)
			}
		})
	}
}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{audio: testAudio()}
	tr, _ := staticTranscriber("  Buy milk  ", nil)
	pixel := memo.EncodeDataURL("image/png", []byte("png-bytes"))

	var gotTranscript string
	gen := memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
		gotTranscript = transcript
		return pixel, nil
	})

	m := New(
		WithRecorder(rec),
		WithTranscriber(tr),
		WithImageGenerator(gen),
		WithKeyHost(&fakeHost{selected: true}),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	states := recordStates(t, m)

	if err := m.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if err := m.StopRecording(ctx); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if s := m.State(); s.Phase != ReviewTranscript || s.Transcript != "Buy milk" {
		t.Fatalf("after transcription state = %+v", s)
	}
	if rec.stopped != 1 {
		t.Errorf("recorder stopped %d times, want 1", rec.stopped)
	}

	if err := m.EditTranscript("Buy oat milk"); err != nil {
		t.Fatalf("EditTranscript() error = %v", err)
	}
	if err := m.Generate(ctx); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotTranscript != "Buy oat milk" {
		t.Errorf("generator got transcript %q, want the edited one", gotTranscript)
	}

	s := m.State()
	if s.Phase != Completed || s.ImageURL != pixel {
		t.Fatalf("final state = %+v", s)
	}

	wantPhases := []Phase{Recording, ProcessingAudio, ReviewTranscript, ReviewTranscript, GeneratingImage, Completed}
	got := states()
	if len(got) != len(wantPhases) {
		t.Fatalf("published %d states, want %d", len(got), len(wantPhases))
	}
	for i, want := range wantPhases {
		if got[i].Phase != want {
			t.Errorf("state %d phase = %s, want %s", i, got[i].Phase, want)
		}
	}

	dir := t.TempDir()
	path, err := m.Download(dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Base(path) != "memo-graphic-1700000000000.png" {
		t.Errorf("download name = %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png-bytes" {
		t.Errorf("downloaded %q, %v", data, err)
	}
	if m.State() != s {
		t.Error("Download() changed the state")
	}

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if m.State() != (State{}) {
		t.Errorf("after Reset state = %+v, want Idle default", m.State())
	}
}

func TestStartRecording_PermissionDenied(t *testing.T) {
	rec := &fakeRecorder{startErr: memo.ErrPermissionDenied}
	m := New(WithRecorder(rec))
	states := recordStates(t, m)

	err := m.StartRecording(context.Background())
	if !errors.Is(err, memo.ErrPermissionDenied) {
		t.Errorf("StartRecording() error = %v, want ErrPermissionDenied", err)
	}
	if m.State() != (State{}) {
		t.Errorf("state = %+v, want unchanged Idle", m.State())
	}
	if len(states()) != 0 {
		t.Errorf("published %d states, want none", len(states()))
	}
}

func TestStopRecording_EmptyAudio(t *testing.T) {
	tests := []struct {
		name  string
		audio *memo.Audio
	}{
		{"nil audio", nil},
		{"zero bytes", memo.NewAudio(nil, "audio/wav", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, calls := staticTranscriber("should not happen", nil)
			m := New(WithRecorder(&fakeRecorder{audio: tt.audio}), WithTranscriber(tr))

			if err := m.StartRecording(context.Background()); err != nil {
				t.Fatal(err)
			}
			err := m.StopRecording(context.Background())
			if !errors.Is(err, memo.ErrEmptyResult) {
				t.Errorf("StopRecording() error = %v, want ErrEmptyResult", err)
			}
			if *calls != 0 {
				t.Errorf("transcriber called %d times, want 0", *calls)
			}
			s := m.State()
			if s.Phase != Error || s.ErrorMessage != MsgEmptyResult {
				t.Errorf("state = %+v", s)
			}
		})
	}
}

func TestTranscriptionFailure(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		err     error
		wantMsg string
	}{
		{"provider message", "", &memo.TranscriptionError{Err: errors.New("network down")}, "network down"},
		{"bare error", "", errors.New("quota exceeded"), "quota exceeded"},
		{"no message", "", &memo.TranscriptionError{Err: errors.New("")}, MsgTranscribeFailed},
		{"empty text", "   ", nil, MsgEmptyResult},
		{"empty result error", "", memo.ErrEmptyResult, MsgEmptyResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := staticTranscriber(tt.text, tt.err)
			m := New(WithTranscriber(tr))
			recordStates(t, m)

			if err := m.SubmitAudio(context.Background(), testAudio()); err == nil {
				t.Error("SubmitAudio() expected error")
			}
			s := m.State()
			if s.Phase != Error {
				t.Fatalf("phase = %s, want Error", s.Phase)
			}
			if s.ErrorMessage != tt.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", s.ErrorMessage, tt.wantMsg)
			}
			if s.CanRevise() {
				t.Error("CanRevise() = true after a transcription failure")
			}
		})
	}
}

func TestGenerate_KeyNotSelected(t *testing.T) {
	tr, _ := staticTranscriber("Buy milk", nil)
	gen, calls := staticGenerator("data:image/png;base64,AAAA", nil)
	m := New(WithTranscriber(tr), WithImageGenerator(gen), WithKeyHost(&fakeHost{selected: false}))
	recordStates(t, m)

	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}
	err := m.Generate(context.Background())
	if !errors.Is(err, memo.ErrKeyNotSelected) {
		t.Errorf("Generate() error = %v, want ErrKeyNotSelected", err)
	}
	if *calls != 0 {
		t.Errorf("generator called %d times, want 0", *calls)
	}

	s := m.State()
	if s.Phase != Error || s.ErrorMessage != MsgKeyNotSelected {
		t.Fatalf("state = %+v", s)
	}

	if err := m.ReviseTranscript(); err != nil {
		t.Fatalf("ReviseTranscript() error = %v", err)
	}
	if s := m.State(); s.Phase != ReviewTranscript || s.Transcript != "Buy milk" {
		t.Errorf("after revise state = %+v", s)
	}
}

func TestGenerate_NoHostSkipsGate(t *testing.T) {
	tr, _ := staticTranscriber("hello", nil)
	gen, calls := staticGenerator("data:image/png;base64,AAAA", nil)
	m := New(WithTranscriber(tr), WithImageGenerator(gen))

	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}
	if err := m.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if *calls != 1 {
		t.Errorf("generator called %d times, want 1", *calls)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		err     error
		wantMsg string
	}{
		{"no image", "", memo.ErrNoImageProduced, MsgNoImage},
		{"empty url", "", nil, MsgNoImage},
		{"provider message", "", &memo.GenerationError{Err: errors.New("safety block")}, "safety block"},
		{"no message", "", &memo.GenerationError{}, MsgGenerateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := staticTranscriber("hello", nil)
			gen, _ := staticGenerator(tt.url, tt.err)
			m := New(WithTranscriber(tr), WithImageGenerator(gen))
			recordStates(t, m)

			if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
				t.Fatal(err)
			}
			if err := m.Generate(context.Background()); err == nil {
				t.Error("Generate() expected error")
			}
			s := m.State()
			if s.Phase != Error || s.ErrorMessage != tt.wantMsg {
				t.Errorf("state = %+v, want Error %q", s, tt.wantMsg)
			}
			if s.ImageURL != "" {
				t.Errorf("ImageURL = %q, want empty", s.ImageURL)
			}
		})
	}
}

func TestEditTranscript_AcceptsAnything(t *testing.T) {
	tr, _ := staticTranscriber("hello", nil)
	m := New(WithTranscriber(tr))
	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}

	for _, text := range []string{"", "   ", "a much longer\nmulti-line text"} {
		if err := m.EditTranscript(text); err != nil {
			t.Errorf("EditTranscript(%q) error = %v", text, err)
		}
		if got := m.State().Transcript; got != text {
			t.Errorf("Transcript = %q, want %q", got, text)
		}
	}
}

func TestCancel(t *testing.T) {
	tr, _ := staticTranscriber("hello", nil)
	m := New(WithTranscriber(tr))
	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}
	if err := m.Cancel(); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if m.State() != (State{}) {
		t.Errorf("after Cancel state = %+v, want Idle default", m.State())
	}
}

func TestInvalidTransitions(t *testing.T) {
	m := New(WithRecorder(&fakeRecorder{}))
	ctx := context.Background()

	checks := []struct {
		name string
		call func() error
	}{
		{"stop", func() error { return m.StopRecording(ctx) }},
		{"edit", func() error { return m.EditTranscript("x") }},
		{"generate", func() error { return m.Generate(ctx) }},
		{"cancel", m.Cancel},
		{"abort", m.Abort},
		{"revise", m.ReviseTranscript},
		{"download", func() error { _, err := m.Download(t.TempDir()); return err }},
	}

	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
			if m.State() != (State{}) {
				t.Errorf("state changed to %+v", m.State())
			}
		})
	}

	if err := m.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.StartRecording(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second StartRecording() error = %v, want ErrInvalidTransition", err)
	}
}

func TestReset_ReleasesMicrophone(t *testing.T) {
	rec := &fakeRecorder{audio: testAudio()}
	m := New(WithRecorder(rec))

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if rec.closed != 1 {
		t.Errorf("recorder closed %d times, want 1", rec.closed)
	}
	if m.State() != (State{}) {
		t.Errorf("state = %+v, want Idle default", m.State())
	}
}

func TestAbort_DuringTranscription(t *testing.T) {
	returned := make(chan struct{})
	tr := memo.TranscriberFunc(func(ctx context.Context, b64, mime string) (string, error) {
		<-ctx.Done()
		defer close(returned)
		return "late transcript", nil
	})
	m := New(WithTranscriber(tr))
	recordStates(t, m)

	errc := make(chan error, 1)
	go func() {
		errc <- m.SubmitAudio(context.Background(), testAudio())
	}()

	waitForPhase(t, m, ProcessingAudio)
	if err := m.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}

	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Errorf("SubmitAudio() error = %v, want ErrCancelled", err)
	}
	<-returned

	s := m.State()
	if s.Phase != Error || s.ErrorMessage != MsgCancelled {
		t.Errorf("state = %+v, want Error %q", s, MsgCancelled)
	}
	if s.Transcript != "" {
		t.Errorf("late transcript leaked into state: %q", s.Transcript)
	}
}

func TestReset_DiscardsLateImage(t *testing.T) {
	release := make(chan struct{})
	tr, _ := staticTranscriber("hello", nil)
	gen := memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
		<-release
		return "data:image/png;base64,AAAA", nil
	})
	m := New(WithTranscriber(tr), WithImageGenerator(gen))
	recordStates(t, m)

	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- m.Generate(context.Background())
	}()

	waitForPhase(t, m, GeneratingImage)
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Errorf("Generate() error = %v, want ErrCancelled", err)
	}
	if m.State() != (State{}) {
		t.Errorf("state = %+v, want Idle default", m.State())
	}
}

func TestGenerate_Busy(t *testing.T) {
	release := make(chan struct{})
	tr, _ := staticTranscriber("hello", nil)
	gen := memo.ImageGeneratorFunc(func(ctx context.Context, transcript string) (string, error) {
		<-release
		return "data:image/png;base64,AAAA", nil
	})
	m := New(WithTranscriber(tr), WithImageGenerator(gen))

	if err := m.SubmitAudio(context.Background(), testAudio()); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- m.Generate(context.Background())
	}()
	waitForPhase(t, m, GeneratingImage)

	if err := m.Generate(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Generate() error = %v, want ErrInvalidTransition", err)
	}

	close(release)
	if err := <-errc; err != nil {
		t.Errorf("Generate() error = %v", err)
	}
	if m.State().Phase != Completed {
		t.Errorf("phase = %s, want Completed", m.State().Phase)
	}
}

func TestTimeout(t *testing.T) {
	tr := memo.TranscriberFunc(func(ctx context.Context, b64, mime string) (string, error) {
		<-ctx.Done()
		return "", &memo.TranscriptionError{Err: ctx.Err()}
	})
	m := New(WithTranscriber(tr), WithTimeout(10*time.Millisecond))

	err := m.SubmitAudio(context.Background(), testAudio())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SubmitAudio() error = %v, want DeadlineExceeded", err)
	}
	if s := m.State(); s.Phase != Error || s.ErrorMessage != MsgTimeout {
		t.Errorf("state = %+v", s)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"nil", nil, "fallback", "fallback"},
		{"cancelled", ErrCancelled, "fallback", MsgCancelled},
		{"context cancelled", context.Canceled, "fallback", MsgCancelled},
		{"key", memo.ErrKeyNotSelected, "fallback", MsgKeyNotSelected},
		{"permission", memo.ErrPermissionDenied, "fallback", MsgPermission},
		{"wrapped no image", &memo.GenerationError{Err: memo.ErrNoImageProduced}, "fallback", MsgNoImage},
		{"generation cause", &memo.GenerationError{Provider: "gemini", Err: errors.New("bad request")}, "fallback", "bad request"},
		{"plain", errors.New("boom"), "fallback", "boom"},
		{"blank", errors.New("  "), "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err, tt.fallback); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		wantErr bool
	}{
		{"idle default", State{}, false},
		{"review", State{Phase: ReviewTranscript, Transcript: "x"}, false},
		{"completed", State{Phase: Completed, Transcript: "x", ImageURL: "data:"}, false},
		{"error", State{Phase: Error, ErrorMessage: "bad"}, false},
		{"image outside completed", State{Phase: ReviewTranscript, ImageURL: "data:"}, true},
		{"completed without image", State{Phase: Completed}, true},
		{"error without message", State{Phase: Error}, true},
		{"message outside error", State{Phase: Idle, ErrorMessage: "x"}, true},
		{"transcript while recording", State{Phase: Recording, Transcript: "x"}, true},
		{"transcript while processing", State{Phase: ProcessingAudio, Transcript: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.state.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStopRecording_AbortWhileFinalizing(t *testing.T) {
	rec := &blockingRecorder{
		fakeRecorder: fakeRecorder{audio: testAudio()},
		stopping:     make(chan struct{}),
		release:      make(chan struct{}),
	}
	tr, calls := staticTranscriber("too late", nil)
	m := New(WithRecorder(rec), WithTranscriber(tr))
	recordStates(t, m)

	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- m.StopRecording(context.Background())
	}()
	<-rec.stopping

	if s := m.State(); s.Phase != ProcessingAudio {
		t.Errorf("phase while finalizing = %s, want ProcessingAudio", s.Phase)
	}

	aborted := make(chan error, 1)
	go func() {
		aborted <- m.Abort()
	}()
	select {
	case err := <-aborted:
		if err != nil {
			t.Fatalf("Abort() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Abort() blocked behind the recorder")
	}

	close(rec.release)
	if err := <-errc; !errors.Is(err, ErrCancelled) {
		t.Errorf("StopRecording() error = %v, want ErrCancelled", err)
	}
	if *calls != 0 {
		t.Errorf("transcriber called %d times after abort", *calls)
	}
	if s := m.State(); s.Phase != Error || s.ErrorMessage != MsgCancelled {
		t.Errorf("state = %+v, want Error %q", s, MsgCancelled)
	}
}

func TestRecordingElapsed(t *testing.T) {
	rec := &timedRecorder{elapsed: 4 * time.Second}
	m := New(WithRecorder(rec))

	if _, ok := m.RecordingElapsed(); ok {
		t.Error("RecordingElapsed() should report nothing while Idle")
	}
	if err := m.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d, ok := m.RecordingElapsed(); !ok || d != 4*time.Second {
		t.Errorf("RecordingElapsed() = %v, %v, want 4s, true", d, ok)
	}

	plain := New(WithRecorder(&fakeRecorder{}))
	if err := plain.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.RecordingElapsed(); ok {
		t.Error("a recorder without Elapsed should report nothing")
	}
}

func TestDownload_ExtensionFollowsImageType(t *testing.T) {
	jpeg := memo.EncodeDataURL("image/jpeg", []byte("\xff\xd8\xff jpeg"))
	tr, _ := staticTranscriber("hello", nil)
	gen, _ := staticGenerator(jpeg, nil)
	m := New(
		WithTranscriber(tr),
		WithImageGenerator(gen),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)

	ctx := context.Background()
	if err := m.SubmitAudio(ctx, testAudio()); err != nil {
		t.Fatal(err)
	}
	if err := m.Generate(ctx); err != nil {
		t.Fatal(err)
	}

	path, err := m.Download(t.TempDir())
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Base(path) != "memo-graphic-1700000000000.jpg" {
		t.Errorf("download name = %q, want a .jpg file", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "\xff\xd8\xff jpeg" {
		t.Errorf("downloaded %q, %v", data, err)
	}
}
