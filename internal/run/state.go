package run

import (
	"strings"
	"time"
)

// Stage identifies one ordered step of a pipeline run.
type Stage string

const (
	StageParse       Stage = "parse"
	StageStoryboard  Stage = "storyboard"
	StageGenerate    Stage = "generate"
	StageConcatenate Stage = "concatenate"
	StageUpload      Stage = "upload"
)

// Stages returns the fixed execution order.
func Stages() []Stage {
	return []Stage{StageParse, StageStoryboard, StageGenerate, StageConcatenate, StageUpload}
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range Stages() {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// Status represents the lifecycle of a stage or a whole run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// StageStatus tracks timing and outcome for one stage of a run.
type StageStatus struct {
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// QualityReport is the advisory verdict a multimodal reviewer gave the
// published video. It is recorded for operators and never gates a run.
type QualityReport struct {
	Acceptable bool   `json:"acceptable"`
	Reason     string `json:"reason"`
}

// Scene is one storyboard entry: a narration line and the visual prompt used
// for video synthesis. Order within the storyboard is significant and fixed
// at creation.
type Scene struct {
	Dialogue string `json:"dialogue"`
	Prompt   string `json:"prompt"`
}

// State is the mutable record threaded through a whole pipeline run. It is
// owned exclusively by the worker executing that run; other goroutines see
// only persisted snapshots.
type State struct {
	ID             string
	InputText      string
	ReferenceImage string

	Topic       string
	Keywords    []string
	Title       string
	Copywriting string
	Storyboard  []Scene

	// AudioFiles and VideoSegments are ordered by scene index. An empty
	// VideoSegments entry marks a per-scene generation failure.
	AudioFiles    []string
	VideoSegments []string
	FinalVideo    string

	UploadURL       string
	UploadRequestID string

	// Quality is nil until a review of the published video ran.
	Quality *QualityReport

	StageStatuses map[Stage]StageStatus
	Status        Status
	FailedStage   Stage
	ErrorMessage  string

	RootDir   string
	CreatedAt time.Time
	UpdatedAt time.Time

	FilesDeleted  []string
	DirsDeleted   []string
	CleanupErrors []string
}

// NewState initializes a run in its pending state.
func NewState(id, inputText, referenceImage string) *State {
	now := time.Now().UTC()
	statuses := make(map[Stage]StageStatus, len(Stages()))
	for _, stage := range Stages() {
		statuses[stage] = StageStatus{Status: StatusPending}
	}
	return &State{
		ID:             id,
		InputText:      inputText,
		ReferenceImage: referenceImage,
		StageStatuses:  statuses,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// StageStatusFor returns the recorded status for a stage, defaulting to
// pending for unknown stages.
func (s *State) StageStatusFor(stage Stage) StageStatus {
	if s.StageStatuses == nil {
		return StageStatus{Status: StatusPending}
	}
	if status, ok := s.StageStatuses[stage]; ok {
		return status
	}
	return StageStatus{Status: StatusPending}
}

// BeginStage marks a stage as processing and stamps its start time.
func (s *State) BeginStage(stage Stage, at time.Time) {
	at = at.UTC()
	status := s.StageStatusFor(stage)
	status.Status = StatusProcessing
	status.StartedAt = &at
	status.CompletedAt = nil
	s.setStageStatus(stage, status)
	s.Status = StatusProcessing
	s.UpdatedAt = at
}

// CompleteStage marks a stage as completed and stamps its completion time.
func (s *State) CompleteStage(stage Stage, at time.Time) {
	at = at.UTC()
	status := s.StageStatusFor(stage)
	status.Status = StatusCompleted
	status.CompletedAt = &at
	s.setStageStatus(stage, status)
	s.UpdatedAt = at
}

// FailStage marks a stage as failed and records the failure as the run's
// terminal error.
func (s *State) FailStage(stage Stage, at time.Time, message string) {
	at = at.UTC()
	status := s.StageStatusFor(stage)
	status.Status = StatusFailed
	status.CompletedAt = &at
	s.setStageStatus(stage, status)
	s.Status = StatusFailed
	s.FailedStage = stage
	s.ErrorMessage = message
	s.UpdatedAt = at
}

// Finalize settles the overall status: completed only when every stage
// completed; a failed run keeps its failure.
func (s *State) Finalize(at time.Time) {
	if s.Status == StatusFailed {
		s.UpdatedAt = at.UTC()
		return
	}
	for _, stage := range Stages() {
		if s.StageStatusFor(stage).Status != StatusCompleted {
			s.Status = StatusProcessing
			s.UpdatedAt = at.UTC()
			return
		}
	}
	s.Status = StatusCompleted
	s.UpdatedAt = at.UTC()
}

func (s *State) setStageStatus(stage Stage, status StageStatus) {
	if s.StageStatuses == nil {
		s.StageStatuses = make(map[Stage]StageStatus, len(Stages()))
	}
	s.StageStatuses[stage] = status
}

// CurrentStage returns the first stage that has not completed, or "" when
// every stage is done.
func (s *State) CurrentStage() Stage {
	for _, stage := range Stages() {
		if s.StageStatusFor(stage).Status != StatusCompleted {
			return stage
		}
	}
	return ""
}

// Clone returns a deep copy suitable for handing to observers without
// exposing the worker-owned state to concurrent mutation.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Keywords = append([]string(nil), s.Keywords...)
	cp.Storyboard = append([]Scene(nil), s.Storyboard...)
	cp.AudioFiles = append([]string(nil), s.AudioFiles...)
	cp.VideoSegments = append([]string(nil), s.VideoSegments...)
	cp.FilesDeleted = append([]string(nil), s.FilesDeleted...)
	cp.DirsDeleted = append([]string(nil), s.DirsDeleted...)
	cp.CleanupErrors = append([]string(nil), s.CleanupErrors...)
	if s.Quality != nil {
		quality := *s.Quality
		cp.Quality = &quality
	}
	cp.StageStatuses = make(map[Stage]StageStatus, len(s.StageStatuses))
	for stage, status := range s.StageStatuses {
		cp.StageStatuses[stage] = status
	}
	return &cp
}

// TruncateDialogue bounds a narration line to maxRunes, appending an
// ellipsis when truncation happened.
func TruncateDialogue(dialogue string, maxRunes int) string {
	trimmed := strings.TrimSpace(dialogue)
	if maxRunes <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) <= maxRunes {
		return trimmed
	}
	return string(runes[:maxRunes]) + "..."
}
