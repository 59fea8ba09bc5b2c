package run

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	audioDirName  = "audio_files"
	videoDirName  = "video_files"
	mergedDirName = "video_and_audio"
)

// Workspace is the per-run directory tree. It is owned by the run that
// created it until cleanup.
type Workspace struct {
	Root string
}

// NewWorkspace creates the timestamped run directory and its audio/video
// subdirectories under baseDir.
func NewWorkspace(baseDir, runID string, at time.Time) (Workspace, error) {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	root := filepath.Join(baseDir, fmt.Sprintf("%s_%s", at.UTC().Format("20060102_150405"), short))
	ws := Workspace{Root: root}
	for _, dir := range []string{root, ws.AudioDir(), ws.VideoDir(), ws.MergedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Workspace{}, fmt.Errorf("create run directory %s: %w", dir, err)
		}
	}
	return ws, nil
}

// OpenWorkspace wraps an existing run root without creating anything.
func OpenWorkspace(root string) Workspace {
	return Workspace{Root: root}
}

func (w Workspace) AudioDir() string { return filepath.Join(w.Root, audioDirName) }

func (w Workspace) VideoDir() string { return filepath.Join(w.Root, videoDirName) }

func (w Workspace) MergedDir() string { return filepath.Join(w.Root, mergedDirName) }

// AudioFile returns the narration path for a scene index.
func (w Workspace) AudioFile(scene int) string {
	return filepath.Join(w.AudioDir(), fmt.Sprintf("%d.mp3", scene))
}

// VideoFile returns the raw synthesized segment path for a scene index.
func (w Workspace) VideoFile(scene int) string {
	return filepath.Join(w.VideoDir(), fmt.Sprintf("%d.mp4", scene))
}

// AdjustedAudioFile returns the reconciled narration path for a scene index.
func (w Workspace) AdjustedAudioFile(scene int) string {
	return filepath.Join(w.MergedDir(), fmt.Sprintf("adjusted_%d.mp3", scene))
}

// MergedFile returns the muxed scene segment path for a scene index.
func (w Workspace) MergedFile(scene int) string {
	return filepath.Join(w.MergedDir(), fmt.Sprintf("%d.mp4", scene))
}

// FinalVideo returns the assembled deliverable path.
func (w Workspace) FinalVideo() string {
	return filepath.Join(w.Root, "final_video.mp4")
}

// CleanupReport records what a workspace cleanup touched. Errors are
// collected, not fatal.
type CleanupReport struct {
	FilesDeleted []string
	DirsDeleted  []string
	Errors       []string
}

// Cleanup removes the run tree bottom-up, reporting every deletion and every
// failure without aborting early.
func (w Workspace) Cleanup() CleanupReport {
	var report CleanupReport
	if w.Root == "" {
		return report
	}
	if _, err := os.Stat(w.Root); err != nil {
		if os.IsNotExist(err) {
			return report
		}
		report.Errors = append(report.Errors, fmt.Sprintf("stat %s: %v", w.Root, err))
		return report
	}

	walkErr := filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("walk %s: %v", path, err))
			return nil
		}
		if !info.IsDir() {
			if err := os.Remove(path); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("remove %s: %v", path, err))
			} else {
				report.FilesDeleted = append(report.FilesDeleted, path)
			}
		}
		return nil
	})
	if walkErr != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("walk %s: %v", w.Root, walkErr))
	}

	// Directories go last so children are gone first.
	var dirs []string
	_ = filepath.Walk(w.Root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remove dir %s: %v", dirs[i], err))
		} else {
			report.DirsDeleted = append(report.DirsDeleted, dirs[i])
		}
	}
	return report
}
