package engine

import (
	"log/slog"
	"time"

	"storyreel/internal/config"
	"storyreel/internal/media/assemble"
	"storyreel/internal/media/ffprobe"
	"storyreel/internal/ratelimit"
	"storyreel/internal/retry"
	"storyreel/internal/services"
	"storyreel/internal/services/llm"
	"storyreel/internal/services/oss"
	"storyreel/internal/services/tts"
	"storyreel/internal/services/videogen"
	"storyreel/internal/services/vision"
	"storyreel/internal/stage"
	"storyreel/internal/stages"
)

// Build assembles a ready-to-run engine from configuration: shared limiter
// and retry policy, the remote service clients, the media toolchain, and the
// five stage handlers in pipeline order.
func Build(cfg *config.Config, store RunStore, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateUpload(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "build",
			"upload stage cannot run without object storage settings", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		CallsPerSecond: cfg.RateLimit.CallsPerSecond,
		CallsPerMinute: cfg.RateLimit.CallsPerMinute,
		MinInterval:    time.Duration(cfg.RateLimit.MinIntervalMillis) * time.Millisecond,
	})
	policy := retry.NewPolicy(
		cfg.Retry.MaxAttempts,
		time.Duration(cfg.Retry.BaseDelaySeconds*float64(time.Second)),
		time.Duration(cfg.Retry.MaxDelaySeconds*float64(time.Second)),
		cfg.Retry.BackoffFactor,
	)
	runner := retry.NewRunner(limiter, policy, time.Duration(cfg.RateLimit.AcquireTimeoutSeconds)*time.Second)

	completion := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	speech := tts.NewClient(tts.Config{
		APIKey:         cfg.TTS.APIKey,
		BaseURL:        cfg.TTS.BaseURL,
		Model:          cfg.TTS.Model,
		Voice:          cfg.TTS.DefaultVoice,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	video := videogen.NewClient(videogen.Config{
		APIKey:            cfg.VideoGen.APIKey,
		BaseURL:           cfg.VideoGen.BaseURL,
		TextToVideoModel:  cfg.VideoGen.TextToVideoModel,
		ImageToVideoModel: cfg.VideoGen.ImageToVideoModel,
		ImageEditModel:    cfg.VideoGen.ImageEditModel,
		Size:              cfg.VideoGen.Size,
		Resolution:        cfg.VideoGen.Resolution,
		PollInterval:      time.Duration(cfg.VideoGen.PollIntervalSeconds) * time.Second,
		TimeoutSeconds:    cfg.VideoGen.TimeoutSeconds,
	})
	var reviewer stages.QualityReview
	if cfg.Quality.Enabled {
		reviewer = vision.NewClient(vision.Config{
			APIKey:         cfg.Quality.APIKey,
			BaseURL:        cfg.Quality.BaseURL,
			Model:          cfg.Quality.Model,
			VideoFPS:       cfg.Quality.VideoFPS,
			TimeoutSeconds: cfg.Quality.TimeoutSeconds,
		})
	}
	uploader := oss.NewClient(oss.Config{
		Endpoint:        cfg.OSS.Endpoint,
		Bucket:          cfg.OSS.Bucket,
		AccessKeyID:     cfg.OSS.AccessKeyID,
		AccessKeySecret: cfg.OSS.AccessKeySecret,
		TimeoutSeconds:  cfg.OSS.TimeoutSeconds,
	})

	probe := ffprobe.NewProbe(cfg.Media.FFprobe)
	assembler := assemble.New(cfg.Media.FFmpeg, probe.Duration, logger,
		assemble.WithAudioBitrate(cfg.Media.AudioBitrate))

	handlers := []stage.Handler{
		stages.NewParse(completion, runner, logger),
		stages.NewStoryboard(completion, runner, logger, cfg.Pipeline.MaxScenes, cfg.Pipeline.DialogueMaxRunes),
		stages.NewGenerate(completion, speech, video, runner, logger, cfg.TTS.DefaultVoice),
		stages.NewConcatenate(assembler, logger),
		stages.NewUpload(uploader, reviewer, runner, logger),
	}

	return New(Options{
		Store:       store,
		Handlers:    handlers,
		Logger:      logger,
		WorkDir:     cfg.Paths.WorkDir,
		KeepWorkDir: cfg.Pipeline.KeepWorkDir,
	})
}
