package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"storyreel/internal/fileutil"
	"storyreel/internal/logging"
	"storyreel/internal/services"
)

// durationThreshold is the audio/video length mismatch below which no
// reconciliation is attempted.
const durationThreshold = 0.1

const defaultAudioBitrate = "128k"

// Runner executes an external command and returns its combined output on
// failure. It exists so tests can intercept ffmpeg invocations.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// DurationFunc resolves a media file's duration in seconds, 0 meaning
// unknown.
type DurationFunc func(ctx context.Context, path string) float64

// Assembler drives ffmpeg to reconcile, merge, and concatenate scene media.
type Assembler struct {
	ffmpeg       string
	duration     DurationFunc
	logger       *slog.Logger
	runner       Runner
	audioBitrate string
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithRunner replaces the command runner, used by tests.
func WithRunner(r Runner) Option {
	return func(a *Assembler) { a.runner = r }
}

// WithAudioBitrate sets the bitrate used when re-encoding adjusted audio.
func WithAudioBitrate(bitrate string) Option {
	return func(a *Assembler) {
		if strings.TrimSpace(bitrate) != "" {
			a.audioBitrate = bitrate
		}
	}
}

// New constructs an Assembler around the given ffmpeg binary and duration
// probe.
func New(ffmpegBinary string, duration DurationFunc, logger *slog.Logger, opts ...Option) *Assembler {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Assembler{
		ffmpeg:       ffmpegBinary,
		duration:     duration,
		logger:       logger,
		runner:       execRunner{},
		audioBitrate: defaultAudioBitrate,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ReconcileAudio adjusts the audio track length to match the video segment,
// writing the adjusted track to adjustedPath. The returned path is the track
// the caller should merge. Adjustment failures degrade to the original audio
// rather than failing the scene.
func (a *Assembler) ReconcileAudio(ctx context.Context, audioPath, videoPath, adjustedPath string) string {
	audioDur := a.duration(ctx, audioPath)
	videoDur := a.duration(ctx, videoPath)
	if audioDur == 0 || videoDur == 0 {
		a.logger.Warn("audio reconciliation skipped, unknown duration",
			logging.String("audio", audioPath),
			logging.Float64("audio_seconds", audioDur),
			logging.Float64("video_seconds", videoDur))
		return audioPath
	}
	if math.Abs(audioDur-videoDur) < durationThreshold {
		return audioPath
	}

	var args []string
	if audioDur > videoDur {
		args = []string{
			"-y", "-i", audioPath,
			"-t", formatSeconds(videoDur),
			"-c:a", "libmp3lame", "-b:a", a.audioBitrate,
			adjustedPath,
		}
	} else {
		padding := videoDur - audioDur
		args = []string{
			"-y", "-i", audioPath,
			"-f", "lavfi", "-t", formatSeconds(padding),
			"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
			"-filter_complex", "[0:a][1:a]concat=n=2:v=0:a=1",
			"-c:a", "libmp3lame", "-b:a", a.audioBitrate,
			adjustedPath,
		}
	}

	if err := a.runner.Run(ctx, a.ffmpeg, args...); err != nil {
		a.logger.Warn("audio reconciliation failed, using original track",
			logging.String("audio", audioPath),
			logging.Error(err))
		return audioPath
	}
	return adjustedPath
}

// MergeSceneAV muxes a video segment with its audio track into mergedPath.
// When the mux fails the raw video segment is copied through so the scene
// still contributes footage.
func (a *Assembler) MergeSceneAV(ctx context.Context, videoPath, audioPath, mergedPath string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-avoid_negative_ts", "make_zero",
		mergedPath,
	}
	if err := a.runner.Run(ctx, a.ffmpeg, args...); err != nil {
		a.logger.Warn("scene mux failed, falling back to silent video",
			logging.String("video", videoPath),
			logging.Error(err))
		if copyErr := fileutil.CopyFile(videoPath, mergedPath); copyErr != nil {
			return services.Wrap(services.ErrMediaProcessing, "concatenate", "merge",
				"scene mux and raw video fallback both failed", copyErr)
		}
	}
	return nil
}

// Concatenate joins the merged segments into finalPath, trying progressively
// more expensive strategies: stream-copy via the concat demuxer, re-encode
// via the concat filter, then a verified copy of the first segment. Segments
// that do not exist on disk are skipped up front; when nothing survives the
// filter there is nothing to concatenate and the empty path is returned
// without error.
func (a *Assembler) Concatenate(ctx context.Context, segments []string, finalPath string) (string, error) {
	usable := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		info, err := os.Stat(segment)
		if err != nil || info.IsDir() {
			a.logger.Warn("segment missing on disk, skipped", logging.String("segment", segment))
			continue
		}
		usable = append(usable, segment)
	}
	if len(usable) == 0 {
		return "", nil
	}

	if err := a.concatDemuxer(ctx, usable, finalPath); err == nil {
		return finalPath, nil
	} else {
		a.logger.Warn("concat demuxer failed, re-encoding", logging.Error(err))
	}

	if err := a.concatFilter(ctx, usable, finalPath); err == nil {
		return finalPath, nil
	} else {
		a.logger.Warn("concat filter failed, copying first segment", logging.Error(err))
	}

	if err := fileutil.CopyFileVerified(usable[0], finalPath); err != nil {
		return "", services.Wrap(services.ErrAssemblyExhausted, "concatenate", "concat",
			"all concatenation strategies failed", err)
	}
	a.logger.Warn("final video contains only the first segment",
		logging.String("segment", usable[0]),
		logging.Int("dropped_segments", len(usable)-1))
	return finalPath, nil
}

func (a *Assembler) concatDemuxer(ctx context.Context, segments []string, finalPath string) error {
	listPath := filepath.Join(filepath.Dir(finalPath), "concat_list.txt")
	var list strings.Builder
	for _, segment := range segments {
		fmt.Fprintf(&list, "file '%s'\n", strings.ReplaceAll(segment, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	return a.runner.Run(ctx, a.ffmpeg,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		finalPath,
	)
}

func (a *Assembler) concatFilter(ctx context.Context, segments []string, finalPath string) error {
	args := []string{"-y"}
	var filter strings.Builder
	for i, segment := range segments {
		args = append(args, "-i", segment)
		fmt.Fprintf(&filter, "[%d:v][%d:a]", i, i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=1:a=1[outv][outa]", len(segments))

	args = append(args,
		"-filter_complex", filter.String(),
		"-map", "[outv]",
		"-map", "[outa]",
		"-c:v", "libx264",
		"-c:a", "aac",
		finalPath,
	)
	return a.runner.Run(ctx, a.ffmpeg, args...)
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.3f", seconds)
}
