package stage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storyreel/internal/logging"
	"storyreel/internal/run"
)

// Options controls stage execution and run persistence behavior.
type Options struct {
	Logger  *slog.Logger
	Store   Persister
	Handler Handler
	State   *run.State

	// Clock is overridable in tests; nil means time.Now.
	Clock func() time.Time
}

// Run executes a stage and applies the run state transition semantics shared
// by every pipeline step: processing is recorded and persisted before the
// handler runs, and the outcome is recorded and persisted after.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable")
	}
	if opts.Store == nil {
		return fmt.Errorf("run store is required")
	}
	if opts.State == nil {
		return fmt.Errorf("run state is required")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	stageName := opts.Handler.Stage()
	stageCtx := logging.WithStage(ctx, string(stageName))
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String(logging.FieldRunID, opts.State.ID),
	)

	started := now()
	opts.State.BeginStage(stageName, started)
	if err := opts.Store.SaveRun(stageCtx, opts.State); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := opts.Handler.Execute(stageCtx, opts.State); err != nil {
		opts.State.FailStage(stageName, now(), err.Error())
		stageLogger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Duration("elapsed", now().Sub(started)),
			logging.Error(err),
		)
		if saveErr := opts.Store.SaveRun(stageCtx, opts.State); saveErr != nil {
			stageLogger.Error("failed to persist stage failure", logging.Error(saveErr))
		}
		return err
	}

	completed := now()
	opts.State.CompleteStage(stageName, completed)
	if err := opts.Store.SaveRun(stageCtx, opts.State); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", completed.Sub(started)),
	)
	return nil
}
