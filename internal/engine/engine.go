package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"storyreel/internal/logging"
	"storyreel/internal/run"
	"storyreel/internal/stage"
)

// RunStore is the persistence surface the engine needs.
type RunStore interface {
	CreateRun(context.Context, *run.State) error
	SaveRun(context.Context, *run.State) error
}

// Options wires an Engine.
type Options struct {
	Store    RunStore
	Handlers []stage.Handler
	Logger   *slog.Logger
	WorkDir  string

	// KeepWorkDir leaves the run tree on disk after the pipeline finishes.
	KeepWorkDir bool

	// Clock is overridable in tests; nil means time.Now.
	Clock func() time.Time
}

// Engine drives runs through the fixed stage order. Each run's state is
// owned by the goroutine executing it; observers only ever see persisted
// snapshots.
type Engine struct {
	store       RunStore
	handlers    []stage.Handler
	logger      *slog.Logger
	workDir     string
	keepWorkDir bool
	clock       func() time.Time

	wg sync.WaitGroup
}

// New constructs an Engine. Handlers must cover the full stage order.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: run store is required")
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("engine: work directory is required")
	}
	ordered := run.Stages()
	if len(opts.Handlers) != len(ordered) {
		return nil, fmt.Errorf("engine: expected %d stage handlers, got %d", len(ordered), len(opts.Handlers))
	}
	for i, handler := range opts.Handlers {
		if handler == nil {
			return nil, fmt.Errorf("engine: nil handler at position %d", i)
		}
		if handler.Stage() != ordered[i] {
			return nil, fmt.Errorf("engine: handler %d covers %s, expected %s", i, handler.Stage(), ordered[i])
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		store:       opts.Store,
		handlers:    opts.Handlers,
		logger:      logging.NewComponentLogger(logger, "engine"),
		workDir:     opts.WorkDir,
		keepWorkDir: opts.KeepWorkDir,
		clock:       clock,
	}, nil
}

// NewRun registers a pending run and creates its workspace.
func (e *Engine) NewRun(ctx context.Context, inputText, referenceImage string) (*run.State, error) {
	state := run.NewState(uuid.NewString(), inputText, referenceImage)
	ws, err := run.NewWorkspace(e.workDir, state.ID, e.clock())
	if err != nil {
		return nil, fmt.Errorf("engine: create workspace: %w", err)
	}
	state.RootDir = ws.Root
	if err := e.store.CreateRun(ctx, state); err != nil {
		ws.Cleanup()
		return nil, fmt.Errorf("engine: register run: %w", err)
	}
	return state, nil
}

// Execute drives a run through every stage and returns the terminal state.
// The pipeline stops at the first failed stage; cleanup always runs.
func (e *Engine) Execute(ctx context.Context, state *run.State) *run.State {
	runCtx := logging.WithRunID(ctx, state.ID)
	logger := e.logger.With(logging.String(logging.FieldRunID, state.ID))
	logger.Info("run started", logging.String(logging.FieldEventType, "run_start"))

	for _, handler := range e.handlers {
		if err := runCtx.Err(); err != nil {
			state.BeginStage(handler.Stage(), e.clock())
			state.FailStage(handler.Stage(), e.clock(), "run canceled: "+err.Error())
			if saveErr := e.store.SaveRun(runCtx, state); saveErr != nil {
				logger.Error("failed to persist cancellation", logging.Error(saveErr))
			}
			break
		}

		err := stage.Run(runCtx, stage.Options{
			Logger:  logger,
			Store:   e.store,
			Handler: handler,
			State:   state,
			Clock:   e.clock,
		})
		if err != nil {
			break
		}
	}

	e.cleanup(state, logger)
	state.Finalize(e.clock())
	if err := e.store.SaveRun(runCtx, state); err != nil {
		logger.Error("failed to persist terminal state", logging.Error(err))
	}

	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finish"),
		logging.String("status", string(state.Status)),
		logging.String("failed_stage", string(state.FailedStage)),
	)
	return state
}

// StartRun launches Execute on its own goroutine.
func (e *Engine) StartRun(ctx context.Context, state *run.State) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Execute(ctx, state)
	}()
}

// Wait blocks until every started run has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) cleanup(state *run.State, logger *slog.Logger) {
	if e.keepWorkDir || state.RootDir == "" {
		return
	}
	report := run.OpenWorkspace(state.RootDir).Cleanup()
	state.FilesDeleted = report.FilesDeleted
	state.DirsDeleted = report.DirsDeleted
	state.CleanupErrors = report.Errors
	for _, problem := range report.Errors {
		logger.Warn("cleanup problem", logging.String("detail", problem))
	}
}
