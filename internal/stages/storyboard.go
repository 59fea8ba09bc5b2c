package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"storyreel/internal/logging"
	"storyreel/internal/retry"
	"storyreel/internal/run"
	"storyreel/internal/services"
	"storyreel/internal/services/llm"
)

const fallbackSceneCap = 5

// Storyboard turns the parsed topic into a title, copywriting, and an
// ordered scene list.
type Storyboard struct {
	completion      TextCompletion
	runner          *retry.Runner
	logger          *slog.Logger
	maxScenes       int
	dialogueMaxRune int
}

// NewStoryboard constructs the storyboard stage handler.
func NewStoryboard(completion TextCompletion, runner *retry.Runner, logger *slog.Logger, maxScenes, dialogueMaxRunes int) *Storyboard {
	return &Storyboard{
		completion:      completion,
		runner:          runner,
		logger:          logging.NewComponentLogger(logger, "storyboard"),
		maxScenes:       maxScenes,
		dialogueMaxRune: dialogueMaxRunes,
	}
}

func (s *Storyboard) Stage() run.Stage { return run.StageStoryboard }

func (s *Storyboard) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

type storyboardPayload struct {
	Title       string          `json:"title"`
	Copywriting string          `json:"copywriting"`
	Storyboard  json.RawMessage `json:"storyboard"`
}

func (s *Storyboard) Execute(ctx context.Context, state *run.State) error {
	if strings.TrimSpace(state.Topic) == "" {
		return services.Wrap(services.ErrValidation, "storyboard", "input", "topic missing from run state", nil)
	}

	userPrompt := fmt.Sprintf("Topic: %s\nKeywords: %s\nOriginal request: %s",
		state.Topic, strings.Join(state.Keywords, ", "), state.InputText)

	var content string
	err := s.runner.Do(ctx, "generate storyboard", func(ctx context.Context) error {
		var callErr error
		content, callErr = s.completion.CompleteJSON(ctx, storyboardSystemPrompt, userPrompt)
		return callErr
	})
	if err != nil {
		return err
	}

	var payload storyboardPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return services.Wrap(services.ErrFatalRemote, "storyboard", "decode", "malformed storyboard payload", err)
	}

	payload.Title = strings.TrimSpace(payload.Title)
	payload.Copywriting = strings.TrimSpace(payload.Copywriting)

	scenes := decodeScenes(payload.Storyboard)
	if len(scenes) == 0 {
		// The model sometimes returns prose instead of a scene list. Recover
		// by splitting the copywriting into sentence scenes.
		scenes = splitCopywriting(payload.Copywriting, fallbackSceneCap)
		if len(scenes) > 0 {
			s.logger.Warn("storyboard missing from payload, split copywriting into scenes",
				logging.Int("scenes", len(scenes)))
		}
	}
	if len(scenes) == 0 {
		return services.Wrap(services.ErrFatalRemote, "storyboard", "decode", "payload carried no usable scenes", nil)
	}

	if s.maxScenes > 0 && len(scenes) > s.maxScenes {
		scenes = scenes[:s.maxScenes]
	}
	for i := range scenes {
		scenes[i].Dialogue = run.TruncateDialogue(scenes[i].Dialogue, s.dialogueMaxRune)
		scenes[i].Prompt = strings.TrimSpace(scenes[i].Prompt)
		if scenes[i].Prompt == "" {
			scenes[i].Prompt = scenes[i].Dialogue
		}
	}

	state.Title = payload.Title
	state.Copywriting = payload.Copywriting
	state.Storyboard = scenes
	s.logger.Info("storyboard ready",
		logging.String("title", payload.Title),
		logging.Int("scenes", len(scenes)),
	)
	return nil
}

func decodeScenes(raw json.RawMessage) []run.Scene {
	if len(raw) == 0 {
		return nil
	}
	var scenes []run.Scene
	if err := json.Unmarshal(raw, &scenes); err != nil {
		return nil
	}
	valid := scenes[:0]
	for _, scene := range scenes {
		scene.Dialogue = strings.TrimSpace(scene.Dialogue)
		scene.Prompt = strings.TrimSpace(scene.Prompt)
		if scene.Dialogue == "" && scene.Prompt == "" {
			continue
		}
		if scene.Dialogue == "" {
			scene.Dialogue = scene.Prompt
		}
		valid = append(valid, scene)
	}
	return valid
}

// splitCopywriting breaks narration prose into at most cap sentence scenes.
func splitCopywriting(copywriting string, sceneCap int) []run.Scene {
	trimmed := strings.TrimSpace(copywriting)
	if trimmed == "" {
		return nil
	}
	sentences := splitSentences(trimmed)
	if len(sentences) > sceneCap {
		sentences = sentences[:sceneCap]
	}
	scenes := make([]run.Scene, 0, len(sentences))
	for _, sentence := range sentences {
		scenes = append(scenes, run.Scene{Dialogue: sentence, Prompt: sentence})
	}
	return scenes
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', ';', '；':
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}
