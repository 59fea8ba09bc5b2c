package stages

import (
	"errors"
	"strings"
	"testing"

	"storyreel/internal/run"
	"storyreel/internal/services"
)

func newStoryboardState() *run.State {
	state := run.NewState("run-1", "make a video about tea", "")
	state.Topic = "tea rituals"
	state.Keywords = []string{"tea", "ritual", "morning"}
	return state
}

func TestStoryboardParsesScenes(t *testing.T) {
	completion := &fakeCompletion{content: `{
        "title": "Morning Tea",
        "copywriting": "Steam rises. The first sip lands.",
        "storyboard": [
            {"dialogue": "Steam rises.", "prompt": "steam over a teacup at dawn"},
            {"dialogue": "The first sip lands.", "prompt": "close-up of a sip"}
        ]
    }`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if state.Title != "Morning Tea" {
		t.Errorf("unexpected title %q", state.Title)
	}
	if len(state.Storyboard) != 2 {
		t.Fatalf("expected 2 scenes, got %d", len(state.Storyboard))
	}
	if state.Storyboard[0].Prompt != "steam over a teacup at dawn" {
		t.Errorf("unexpected prompt %q", state.Storyboard[0].Prompt)
	}
}

func TestStoryboardFallsBackToCopywritingSplit(t *testing.T) {
	completion := &fakeCompletion{content: `{
        "title": "Morning Tea",
        "copywriting": "Steam rises. The first sip lands. Silence follows.",
        "storyboard": "the model returned prose here"
    }`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(state.Storyboard) != 3 {
		t.Fatalf("expected 3 fallback scenes, got %d", len(state.Storyboard))
	}
	if state.Storyboard[0].Dialogue != "Steam rises." {
		t.Errorf("unexpected first scene %q", state.Storyboard[0].Dialogue)
	}
	if state.Storyboard[0].Prompt != state.Storyboard[0].Dialogue {
		t.Errorf("fallback scene should reuse the sentence as prompt")
	}
}

func TestStoryboardFallbackCapsAtFiveScenes(t *testing.T) {
	completion := &fakeCompletion{content: `{
        "title": "T",
        "copywriting": "One. Two. Three. Four. Five. Six. Seven.",
        "storyboard": null
    }`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(state.Storyboard) != 5 {
		t.Errorf("expected fallback cap of 5 scenes, got %d", len(state.Storyboard))
	}
}

func TestStoryboardTruncatesDialogue(t *testing.T) {
	long := strings.Repeat("茶", 40)
	completion := &fakeCompletion{content: `{
        "title": "T",
        "copywriting": "c",
        "storyboard": [{"dialogue": "` + long + `", "prompt": "p"}]
    }`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); err != nil {
		t.Fatalf("execute: %v", err)
	}
	dialogue := state.Storyboard[0].Dialogue
	if got := len([]rune(dialogue)); got != 33 {
		t.Errorf("expected 30 runes plus ellipsis, got %d (%q)", got, dialogue)
	}
	if !strings.HasSuffix(dialogue, "...") {
		t.Errorf("expected ellipsis suffix, got %q", dialogue)
	}
}

func TestStoryboardCapsSceneCount(t *testing.T) {
	var scenes []string
	for i := 0; i < 12; i++ {
		scenes = append(scenes, `{"dialogue": "line", "prompt": "shot"}`)
	}
	completion := &fakeCompletion{content: `{
        "title": "T", "copywriting": "c",
        "storyboard": [` + strings.Join(scenes, ",") + `]
    }`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(state.Storyboard) != 10 {
		t.Errorf("expected scene cap of 10, got %d", len(state.Storyboard))
	}
}

func TestStoryboardNoUsableScenesIsFatal(t *testing.T) {
	completion := &fakeCompletion{content: `{"title": "T", "copywriting": "", "storyboard": []}`}
	handler := NewStoryboard(completion, singleAttemptRunner(), nil, 10, 30)
	state := newStoryboardState()

	if err := handler.Execute(t.Context(), state); !errors.Is(err, services.ErrFatalRemote) {
		t.Fatalf("expected fatal remote error, got %v", err)
	}
}

func TestStoryboardRequiresTopic(t *testing.T) {
	handler := NewStoryboard(&fakeCompletion{}, singleAttemptRunner(), nil, 10, 30)
	state := run.NewState("run-1", "input", "")

	if err := handler.Execute(t.Context(), state); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
