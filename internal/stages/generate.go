package stages

import (
	"context"
	"log/slog"
	"strings"

	"storyreel/internal/logging"
	"storyreel/internal/retry"
	"storyreel/internal/run"
	"storyreel/internal/services"
	"storyreel/internal/services/llm"
)

// Generate renders narration audio and synthesized footage for every scene.
// A failed scene leaves an empty segment entry so later stages can skip it;
// the stage itself only fails when the storyboard is unusable.
type Generate struct {
	completion   TextCompletion
	tts          SpeechSynthesis
	video        VideoSynthesis
	runner       *retry.Runner
	logger       *slog.Logger
	defaultVoice string
}

// NewGenerate constructs the generate stage handler. The completion client
// picks the narration voice; nil skips selection and uses defaultVoice.
func NewGenerate(completion TextCompletion, tts SpeechSynthesis, video VideoSynthesis, runner *retry.Runner, logger *slog.Logger, defaultVoice string) *Generate {
	return &Generate{
		completion:   completion,
		tts:          tts,
		video:        video,
		runner:       runner,
		logger:       logging.NewComponentLogger(logger, "generate"),
		defaultVoice: defaultVoice,
	}
}

func (g *Generate) Stage() run.Stage { return run.StageGenerate }

func (g *Generate) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

func (g *Generate) Execute(ctx context.Context, state *run.State) error {
	if len(state.Storyboard) == 0 {
		return services.Wrap(services.ErrValidation, "generate", "input", "storyboard is empty", nil)
	}
	ws := run.OpenWorkspace(state.RootDir)
	voice := g.selectVoice(ctx, state.Storyboard)

	audioFiles := make([]string, len(state.Storyboard))
	videoSegments := make([]string, len(state.Storyboard))
	referenceImage := strings.TrimSpace(state.ReferenceImage)

	for i, scene := range state.Storyboard {
		sceneLogger := g.logger.With(logging.Int(logging.FieldScene, i))

		audioPath := ws.AudioFile(i)
		err := g.runner.Do(ctx, "synthesize narration", func(ctx context.Context) error {
			return g.tts.Synthesize(ctx, scene.Dialogue, voice, audioPath)
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			sceneLogger.Warn("narration synthesis failed, scene continues without audio",
				logging.Error(err))
			audioPath = ""
		}
		audioFiles[i] = audioPath

		videoPath := ws.VideoFile(i)
		if err := g.generateSceneVideo(ctx, i, scene, &referenceImage, videoPath, sceneLogger); err != nil {
			if ctx.Err() != nil {
				return err
			}
			sceneLogger.Warn("video synthesis failed, scene dropped from assembly",
				logging.Error(err))
			videoPath = ""
		}
		videoSegments[i] = videoPath
	}

	state.AudioFiles = audioFiles
	state.VideoSegments = videoSegments

	generated := 0
	for _, segment := range videoSegments {
		if segment != "" {
			generated++
		}
	}
	g.logger.Info("scene generation finished",
		logging.Int("scenes", len(state.Storyboard)),
		logging.Int("segments", generated),
	)
	return nil
}

// selectVoice asks the completion model to cast a narration voice for the
// whole run based on the combined dialogue. Any failure falls back to the
// configured default voice; casting never fails a run.
func (g *Generate) selectVoice(ctx context.Context, storyboard []run.Scene) string {
	if g.completion == nil {
		return g.defaultVoice
	}
	var dialogues []string
	for _, scene := range storyboard {
		if dialogue := strings.TrimSpace(scene.Dialogue); dialogue != "" {
			dialogues = append(dialogues, dialogue)
		}
	}
	if len(dialogues) == 0 {
		return g.defaultVoice
	}

	var content string
	err := g.runner.Do(ctx, "select narration voice", func(ctx context.Context) error {
		var callErr error
		content, callErr = g.completion.CompleteJSON(ctx, voiceSystemPrompt, buildVoicePrompt(strings.Join(dialogues, " ")))
		return callErr
	})
	if err != nil {
		g.logger.Warn("voice selection failed, using default voice", logging.Error(err))
		return g.defaultVoice
	}

	var payload struct {
		Voice string `json:"voice"`
	}
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		g.logger.Warn("voice selection payload unreadable, using default voice", logging.Error(err))
		return g.defaultVoice
	}
	voice := strings.TrimSpace(payload.Voice)
	if !voiceKnown(voice) {
		g.logger.Warn("selected voice not in library, using default voice",
			logging.String("voice", voice))
		return g.defaultVoice
	}
	g.logger.Info("narration voice selected", logging.String("voice", voice))
	return voice
}

// generateSceneVideo picks the synthesis route for one scene. The first
// scene anchors on the reference image directly; later scenes re-edit the
// current reference so the subject stays consistent, falling back to plain
// text-to-video when no image is available or the edit fails.
func (g *Generate) generateSceneVideo(ctx context.Context, index int, scene run.Scene, referenceImage *string, outPath string, logger *slog.Logger) error {
	if *referenceImage == "" {
		return g.runner.Do(ctx, "text to video", func(ctx context.Context) error {
			return g.video.TextToVideo(ctx, scene.Prompt, outPath)
		})
	}

	imageURL := *referenceImage
	if index > 0 {
		var edited string
		err := g.runner.Do(ctx, "edit reference image", func(ctx context.Context) error {
			var editErr error
			edited, editErr = g.video.EditImage(ctx, scene.Prompt, imageURL)
			return editErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.Warn("reference image edit failed, using text to video", logging.Error(err))
			return g.runner.Do(ctx, "text to video", func(ctx context.Context) error {
				return g.video.TextToVideo(ctx, scene.Prompt, outPath)
			})
		}
		imageURL = edited
		*referenceImage = edited
	}

	return g.runner.Do(ctx, "image to video", func(ctx context.Context) error {
		return g.video.ImageToVideo(ctx, scene.Prompt, imageURL, outPath)
	})
}
