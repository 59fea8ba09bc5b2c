package stages

import (
	"context"
	"log/slog"
	"os"
	"path"

	"storyreel/internal/logging"
	"storyreel/internal/retry"
	"storyreel/internal/run"
	"storyreel/internal/services"
)

// Upload publishes the assembled video to object storage and asks a
// multimodal reviewer for an advisory verdict on the published result.
type Upload struct {
	uploader ObjectUpload
	reviewer QualityReview
	runner   *retry.Runner
	logger   *slog.Logger
}

// NewUpload constructs the upload stage handler. A nil reviewer skips the
// quality verdict.
func NewUpload(uploader ObjectUpload, reviewer QualityReview, runner *retry.Runner, logger *slog.Logger) *Upload {
	return &Upload{
		uploader: uploader,
		reviewer: reviewer,
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "upload"),
	}
}

func (u *Upload) Stage() run.Stage { return run.StageUpload }

func (u *Upload) SetLogger(logger *slog.Logger) {
	if logger != nil {
		u.logger = logger
	}
}

func (u *Upload) Execute(ctx context.Context, state *run.State) error {
	if state.FinalVideo == "" {
		return services.Wrap(services.ErrValidation, "upload", "input", "final video missing from run state", nil)
	}
	if _, err := os.Stat(state.FinalVideo); err != nil {
		return services.Wrap(services.ErrValidation, "upload", "input", "final video not found on disk", err)
	}

	objectKey := path.Join("videos", state.ID, "final_video.mp4")
	var url, requestID string
	err := u.runner.Do(ctx, "upload final video", func(ctx context.Context) error {
		var uploadErr error
		url, requestID, uploadErr = u.uploader.Upload(ctx, state.FinalVideo, objectKey)
		return uploadErr
	})
	if err != nil {
		return err
	}

	state.UploadURL = url
	state.UploadRequestID = requestID
	u.logger.Info("final video uploaded",
		logging.String("url", url),
		logging.String("request_id", requestID),
	)

	u.reviewQuality(ctx, state)
	return nil
}

// reviewQuality records an advisory verdict on the published video. Review
// failures become an unacceptable verdict with the failure as the reason;
// the verdict never fails the run.
func (u *Upload) reviewQuality(ctx context.Context, state *run.State) {
	if u.reviewer == nil {
		return
	}
	var acceptable bool
	var reason string
	err := u.runner.Do(ctx, "review video quality", func(ctx context.Context) error {
		var reviewErr error
		acceptable, reason, reviewErr = u.reviewer.ReviewVideo(ctx, state.UploadURL)
		return reviewErr
	})
	if err != nil {
		acceptable = false
		reason = "quality review failed: " + err.Error()
	}
	state.Quality = &run.QualityReport{Acceptable: acceptable, Reason: reason}
	if acceptable {
		u.logger.Info("quality review passed", logging.String("reason", reason))
		return
	}
	u.logger.Warn("quality review flagged the video", logging.String("reason", reason))
}
