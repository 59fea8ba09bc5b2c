package stage

import (
	"context"
	"log/slog"

	"storyreel/internal/run"
)

// Handler describes the contract the pipeline engine needs from each stage.
type Handler interface {
	Stage() run.Stage
	Execute(context.Context, *run.State) error
}

// HealthChecker is implemented by handlers that can report readiness before
// the pipeline starts.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a contextual logger for
// the duration of a stage execution.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Persister saves run state snapshots as the pipeline progresses.
type Persister interface {
	SaveRun(context.Context, *run.State) error
}
