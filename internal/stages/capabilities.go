package stages

import "context"

// TextCompletion produces structured JSON from prompts.
type TextCompletion interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SpeechSynthesis renders narration audio to a local file.
type SpeechSynthesis interface {
	Synthesize(ctx context.Context, text, voice, outPath string) error
}

// VideoSynthesis produces scene footage and edited reference images.
type VideoSynthesis interface {
	TextToVideo(ctx context.Context, prompt, outPath string) error
	ImageToVideo(ctx context.Context, prompt, imageURL, outPath string) error
	EditImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// QualityReview watches a published video and returns whether it is
// acceptable plus a short reason.
type QualityReview interface {
	ReviewVideo(ctx context.Context, videoURL string) (bool, string, error)
}

// ObjectUpload stores a finished artifact and returns its public URL and the
// provider request id.
type ObjectUpload interface {
	Upload(ctx context.Context, localPath, objectKey string) (string, string, error)
}

// MediaAssembler reconciles, muxes, and joins scene media.
type MediaAssembler interface {
	ReconcileAudio(ctx context.Context, audioPath, videoPath, adjustedPath string) string
	MergeSceneAV(ctx context.Context, videoPath, audioPath, mergedPath string) error
	Concatenate(ctx context.Context, segments []string, finalPath string) (string, error)
}
