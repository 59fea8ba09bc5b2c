package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"storyreel/internal/config"
	"storyreel/internal/engine"
	"storyreel/internal/logging"
	"storyreel/internal/store"
)

// Daemon hosts the pipeline engine behind an HTTP API and enforces
// single-instance execution with a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	engine *engine.Engine

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	APIBind      string
	RunDBPath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || eng == nil {
		return nil, errors.New("daemon requires config, store, and engine")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "storyreeld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		engine:   eng,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, d.logger)
	return d, nil
}

// Start acquires the daemon lock and brings up the API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another storyreel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("api_bind", d.api.addr()),
		logging.String("lock_file", d.lockPath),
	)
	return nil
}

// Stop shuts the API down, waits for in-flight runs, and releases the lock.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}
	d.running.Store(false)

	var problems []error
	if err := d.api.stop(ctx); err != nil {
		problems = append(problems, err)
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.engine.Wait()
	if err := d.lock.Unlock(); err != nil {
		problems = append(problems, fmt.Errorf("release lock: %w", err))
	}
	d.logger.Info("daemon stopped")
	return errors.Join(problems...)
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		APIBind:      d.api.addr(),
		RunDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
