package stages

import (
	"context"
	"log/slog"

	"storyreel/internal/logging"
	"storyreel/internal/run"
	"storyreel/internal/services"
)

// Concatenate reconciles audio against footage, muxes each scene, and joins
// the segments into the deliverable.
type Concatenate struct {
	assembler MediaAssembler
	logger    *slog.Logger
}

// NewConcatenate constructs the concatenate stage handler.
func NewConcatenate(assembler MediaAssembler, logger *slog.Logger) *Concatenate {
	return &Concatenate{
		assembler: assembler,
		logger:    logging.NewComponentLogger(logger, "concatenate"),
	}
}

func (c *Concatenate) Stage() run.Stage { return run.StageConcatenate }

func (c *Concatenate) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

func (c *Concatenate) Execute(ctx context.Context, state *run.State) error {
	if len(state.VideoSegments) == 0 {
		return services.Wrap(services.ErrValidation, "concatenate", "input", "no scene segments recorded", nil)
	}
	ws := run.OpenWorkspace(state.RootDir)

	var segments []string
	for i, videoPath := range state.VideoSegments {
		if videoPath == "" {
			c.logger.Warn("skipping scene without footage", logging.Int(logging.FieldScene, i))
			continue
		}

		audioPath := ""
		if i < len(state.AudioFiles) {
			audioPath = state.AudioFiles[i]
		}
		if audioPath == "" {
			// Scene has footage but no narration; the raw segment joins the
			// cut as-is.
			segments = append(segments, videoPath)
			continue
		}

		adjusted := c.assembler.ReconcileAudio(ctx, audioPath, videoPath, ws.AdjustedAudioFile(i))
		merged := ws.MergedFile(i)
		if err := c.assembler.MergeSceneAV(ctx, videoPath, adjusted, merged); err != nil {
			c.logger.Warn("scene merge failed, scene dropped from assembly",
				logging.Int(logging.FieldScene, i),
				logging.Error(err))
			continue
		}
		segments = append(segments, merged)
	}

	final, err := c.assembler.Concatenate(ctx, segments, ws.FinalVideo())
	if err != nil {
		return err
	}
	if final == "" {
		return services.Wrap(services.ErrValidation, "concatenate", "assemble",
			"no scene produced usable footage", nil)
	}

	state.FinalVideo = final
	c.logger.Info("final video assembled",
		logging.Int("segments", len(segments)),
		logging.String("path", final),
	)
	return nil
}
