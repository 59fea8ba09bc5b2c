package stages

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"storyreel/internal/retry"
	"storyreel/internal/run"
)

func singleAttemptRunner() *retry.Runner {
	return retry.NewRunner(nil, retry.NewPolicy(1, time.Millisecond, time.Millisecond, 2.0), 0)
}

type fakeCompletion struct {
	content string
	err     error
	prompts []string
}

func (f *fakeCompletion) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	return f.content, f.err
}

type fakeTTS struct {
	failScenes map[string]error
	calls      []string
	voices     []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, voice string, outPath string) error {
	f.calls = append(f.calls, text)
	f.voices = append(f.voices, voice)
	if err, ok := f.failScenes[text]; ok {
		return err
	}
	return os.WriteFile(outPath, []byte("audio:"+text), 0o644)
}

type videoCall struct {
	kind     string
	prompt   string
	imageURL string
}

type fakeVideo struct {
	calls       []videoCall
	failPrompts map[string]error
	failEdit    error
	editCount   int
}

func (f *fakeVideo) TextToVideo(_ context.Context, prompt, outPath string) error {
	f.calls = append(f.calls, videoCall{kind: "t2v", prompt: prompt})
	if err, ok := f.failPrompts[prompt]; ok {
		return err
	}
	return os.WriteFile(outPath, []byte("video:"+prompt), 0o644)
}

func (f *fakeVideo) ImageToVideo(_ context.Context, prompt, imageURL, outPath string) error {
	f.calls = append(f.calls, videoCall{kind: "i2v", prompt: prompt, imageURL: imageURL})
	if err, ok := f.failPrompts[prompt]; ok {
		return err
	}
	return os.WriteFile(outPath, []byte("video:"+prompt), 0o644)
}

func (f *fakeVideo) EditImage(_ context.Context, prompt, imageURL string) (string, error) {
	f.calls = append(f.calls, videoCall{kind: "edit", prompt: prompt, imageURL: imageURL})
	if f.failEdit != nil {
		return "", f.failEdit
	}
	f.editCount++
	return fmt.Sprintf("https://img.example/edited-%d.png", f.editCount), nil
}

type fakeUploader struct {
	url       string
	requestID string
	err       error
	gotLocal  string
	gotKey    string
}

func (f *fakeUploader) Upload(_ context.Context, localPath, objectKey string) (string, string, error) {
	f.gotLocal = localPath
	f.gotKey = objectKey
	if f.err != nil {
		return "", "", f.err
	}
	return f.url, f.requestID, nil
}

type fakeReview struct {
	acceptable bool
	reason     string
	err        error
	gotURL     string
}

func (f *fakeReview) ReviewVideo(_ context.Context, videoURL string) (bool, string, error) {
	f.gotURL = videoURL
	if f.err != nil {
		return false, "", f.err
	}
	return f.acceptable, f.reason, nil
}

type fakeAssembler struct {
	reconciled []string
	merged     []string
	mergeErr   map[string]error
	concatErr  error
	segments   []string
}

func (f *fakeAssembler) ReconcileAudio(_ context.Context, audioPath, _, adjustedPath string) string {
	f.reconciled = append(f.reconciled, audioPath)
	return adjustedPath
}

func (f *fakeAssembler) MergeSceneAV(_ context.Context, videoPath, _, mergedPath string) error {
	if err, ok := f.mergeErr[videoPath]; ok {
		return err
	}
	f.merged = append(f.merged, mergedPath)
	return nil
}

func (f *fakeAssembler) Concatenate(_ context.Context, segments []string, finalPath string) (string, error) {
	f.segments = segments
	if f.concatErr != nil {
		return "", f.concatErr
	}
	if len(segments) == 0 {
		return "", nil
	}
	return finalPath, nil
}

func newWorkspaceState(t *testing.T, scenes ...run.Scene) (*run.State, run.Workspace) {
	t.Helper()
	state := run.NewState("run-test", "a story about tea", "")
	state.Storyboard = scenes
	ws, err := run.NewWorkspace(t.TempDir(), state.ID, time.Now())
	if err != nil {
		t.Fatalf("workspace: %v", err)
	}
	state.RootDir = ws.Root
	return state, ws
}
