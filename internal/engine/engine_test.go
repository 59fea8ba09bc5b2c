package engine

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"storyreel/internal/retry"
	"storyreel/internal/run"
	"storyreel/internal/services"
	"storyreel/internal/stage"
	"storyreel/internal/stages"
)

type memoryStore struct {
	mu        sync.Mutex
	created   []string
	snapshots []*run.State
}

func (m *memoryStore) CreateRun(_ context.Context, state *run.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, state.ID)
	return nil
}

func (m *memoryStore) SaveRun(_ context.Context, state *run.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, state.Clone())
	return nil
}

type fakeCompletion struct {
	parse      string
	storyboard string
	calls      int
}

func (f *fakeCompletion) CompleteJSON(_ context.Context, _, _ string) (string, error) {
	f.calls++
	if f.calls == 1 {
		return f.parse, nil
	}
	return f.storyboard, nil
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(_ context.Context, text, _ string, outPath string) error {
	return os.WriteFile(outPath, []byte("audio:"+text), 0o644)
}

type fakeVideo struct {
	err error
}

func (f *fakeVideo) TextToVideo(_ context.Context, prompt, outPath string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, []byte("video:"+prompt), 0o644)
}

func (f *fakeVideo) ImageToVideo(_ context.Context, prompt, _, outPath string) error {
	return f.TextToVideo(context.Background(), prompt, outPath)
}

func (f *fakeVideo) EditImage(_ context.Context, _, imageURL string) (string, error) {
	return imageURL, f.err
}

type fakeUploader struct{}

func (fakeUploader) Upload(_ context.Context, _, objectKey string) (string, string, error) {
	return "https://bucket.example/" + objectKey, "req-1", nil
}

type fakeAssembler struct{}

func (fakeAssembler) ReconcileAudio(_ context.Context, audioPath, _, _ string) string {
	return audioPath
}

func (fakeAssembler) MergeSceneAV(_ context.Context, videoPath, _, mergedPath string) error {
	data, err := os.ReadFile(videoPath)
	if err != nil {
		return err
	}
	return os.WriteFile(mergedPath, data, 0o644)
}

func (fakeAssembler) Concatenate(_ context.Context, segments []string, finalPath string) (string, error) {
	if len(segments) == 0 {
		return "", nil
	}
	return finalPath, os.WriteFile(finalPath, []byte("final"), 0o644)
}

const threeSceneStoryboard = `{
    "title": "Morning Tea",
    "copywriting": "Steam rises. The first sip lands. Silence follows.",
    "storyboard": [
        {"dialogue": "Steam rises.", "prompt": "steam over a teacup"},
        {"dialogue": "The first sip lands.", "prompt": "close-up of a sip"},
        {"dialogue": "Silence follows.", "prompt": "still kitchen at dawn"}
    ]
}`

func newTestEngine(t *testing.T, store RunStore, video *fakeVideo, storyboard string) *Engine {
	t.Helper()
	runner := retry.NewRunner(nil, retry.NewPolicy(1, time.Millisecond, time.Millisecond, 2.0), 0)
	completion := &fakeCompletion{
		parse:      `{"topic":"tea","keywords":["tea","ritual","morning"]}`,
		storyboard: storyboard,
	}
	handlers := []stage.Handler{
		stages.NewParse(completion, runner, nil),
		stages.NewStoryboard(completion, runner, nil, 10, 30),
		stages.NewGenerate(nil, fakeTTS{}, video, runner, nil, "voice"),
		stages.NewConcatenate(fakeAssembler{}, nil),
		stages.NewUpload(fakeUploader{}, nil, runner, nil),
	}
	eng, err := New(Options{
		Store:    store,
		Handlers: handlers,
		WorkDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func TestExecuteThreeSceneSuccess(t *testing.T) {
	store := &memoryStore{}
	eng := newTestEngine(t, store, &fakeVideo{}, threeSceneStoryboard)

	state, err := eng.NewRun(t.Context(), "make a tea video", "")
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	final := eng.Execute(t.Context(), state)

	if final.Status != run.StatusCompleted {
		t.Fatalf("expected completed run, got %s (%s)", final.Status, final.ErrorMessage)
	}
	for _, s := range run.Stages() {
		if got := final.StageStatusFor(s).Status; got != run.StatusCompleted {
			t.Errorf("stage %s: expected completed, got %s", s, got)
		}
	}
	if final.UploadURL == "" || final.UploadRequestID != "req-1" {
		t.Errorf("expected upload result, got %q / %q", final.UploadURL, final.UploadRequestID)
	}
	if len(final.Storyboard) != 3 {
		t.Errorf("expected 3 scenes, got %d", len(final.Storyboard))
	}
	// Workspace is removed after the run.
	if _, err := os.Stat(final.RootDir); !os.IsNotExist(err) {
		t.Errorf("expected workspace cleanup, stat err %v", err)
	}
	if len(final.FilesDeleted) == 0 {
		t.Errorf("expected cleanup to record deleted files")
	}
	if len(store.snapshots) < 10 {
		t.Errorf("expected a snapshot per transition, got %d", len(store.snapshots))
	}
}

func TestExecuteAllScenesFailFailsAtConcatenate(t *testing.T) {
	store := &memoryStore{}
	video := &fakeVideo{err: services.Wrap(services.ErrFatalRemote, "", "video task", "content rejected", nil)}
	eng := newTestEngine(t, store, video, threeSceneStoryboard)

	state, err := eng.NewRun(t.Context(), "make a tea video", "")
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	final := eng.Execute(t.Context(), state)

	if final.Status != run.StatusFailed {
		t.Fatalf("expected failed run, got %s", final.Status)
	}
	if final.FailedStage != run.StageConcatenate {
		t.Errorf("expected failure at concatenate, got %s", final.FailedStage)
	}
	if got := final.StageStatusFor(run.StageGenerate).Status; got != run.StatusCompleted {
		t.Errorf("generate should complete despite per-scene failures, got %s", got)
	}
	if got := final.StageStatusFor(run.StageUpload).Status; got != run.StatusPending {
		t.Errorf("upload should stay pending after failure, got %s", got)
	}
}

func TestExecuteMalformedStoryboardFailsEarly(t *testing.T) {
	store := &memoryStore{}
	eng := newTestEngine(t, store, &fakeVideo{}, `{"title": "T", "copywriting": "", "storyboard": []}`)

	state, err := eng.NewRun(t.Context(), "make a tea video", "")
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	final := eng.Execute(t.Context(), state)

	if final.Status != run.StatusFailed || final.FailedStage != run.StageStoryboard {
		t.Fatalf("expected storyboard failure, got %s at %s", final.Status, final.FailedStage)
	}
	if got := final.StageStatusFor(run.StageParse).Status; got != run.StatusCompleted {
		t.Errorf("parse should be completed, got %s", got)
	}
	for _, s := range []run.Stage{run.StageGenerate, run.StageConcatenate, run.StageUpload} {
		if got := final.StageStatusFor(s).Status; got != run.StatusPending {
			t.Errorf("stage %s should stay pending, got %s", s, got)
		}
	}
}

func TestExecuteCancellationBetweenStages(t *testing.T) {
	store := &memoryStore{}
	eng := newTestEngine(t, store, &fakeVideo{}, threeSceneStoryboard)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	state, err := eng.NewRun(t.Context(), "make a tea video", "")
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	final := eng.Execute(ctx, state)

	if final.Status != run.StatusFailed {
		t.Fatalf("expected failed run on cancellation, got %s", final.Status)
	}
	if final.FailedStage != run.StageParse {
		t.Errorf("expected cancellation recorded on the first stage, got %s", final.FailedStage)
	}
	parse := final.StageStatusFor(run.StageParse)
	if parse.Status != run.StatusFailed || parse.StartedAt == nil || parse.CompletedAt == nil {
		t.Errorf("cancelled stage should pass through processing before failing, got %+v", parse)
	}
}

func TestStartRunExecutesAsynchronously(t *testing.T) {
	store := &memoryStore{}
	eng := newTestEngine(t, store, &fakeVideo{}, threeSceneStoryboard)

	state, err := eng.NewRun(t.Context(), "make a tea video", "")
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	eng.StartRun(t.Context(), state)
	eng.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	last := store.snapshots[len(store.snapshots)-1]
	if last.Status != run.StatusCompleted {
		t.Errorf("expected completed terminal snapshot, got %s", last.Status)
	}
}

func TestNewRejectsMisorderedHandlers(t *testing.T) {
	runner := retry.NewRunner(nil, retry.NewPolicy(1, time.Millisecond, time.Millisecond, 2.0), 0)
	completion := &fakeCompletion{}
	handlers := []stage.Handler{
		stages.NewStoryboard(completion, runner, nil, 10, 30),
		stages.NewParse(completion, runner, nil),
		stages.NewGenerate(nil, fakeTTS{}, &fakeVideo{}, runner, nil, ""),
		stages.NewConcatenate(fakeAssembler{}, nil),
		stages.NewUpload(fakeUploader{}, nil, runner, nil),
	}
	_, err := New(Options{Store: &memoryStore{}, Handlers: handlers, WorkDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for misordered handlers")
	}
}
