// Package daemon assembles the pipeline's component graph and enforces
// single-instance execution around it.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"biru/internal/analysis"
	"biru/internal/api"
	"biru/internal/config"
	"biru/internal/dispatch"
	"biru/internal/ipc"
	"biru/internal/logging"
	"biru/internal/memory"
	"biru/internal/notifications"
	"biru/internal/planner"
	"biru/internal/render"
	"biru/internal/store"
	"biru/internal/workflow"
)

// Daemon owns the store, the workflow loops, and the IPC surface.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *workflow.Manager
	server  *ipc.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New opens the store and wires every component. The caller owns the
// returned daemon and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	model, err := memory.NewModel(st, cfg.Memory.SmoothingAlpha)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init memory model: %w", err)
	}

	queue := dispatch.NewQueue()
	coordinator := dispatch.NewCoordinator(queue, logger)
	notifier := notifications.NewService(cfg, logger)

	plan := planner.New(cfg, st, model, logger)
	publisher := workflow.NewPublisher(cfg, st, coordinator, notifier, logger)
	assetStage := analysis.NewStage(cfg, st, logger)
	clipStage := render.NewStage(cfg, st, coordinator, logger)
	manager := workflow.NewManager(cfg, st, assetStage, clipStage, plan, publisher, notifier, logger)

	service := api.NewService(cfg, st, plan, model, notifier, logger)
	server, err := ipc.NewServer(cfg.SocketPath(), service, manager, st, queue, coordinator, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init ipc server: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "birud.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		manager:  manager,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, launches the workflow loops, and
// begins serving IPC.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return fmt.Errorf("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another daemon instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.server.Start(); err != nil {
		d.manager.Stop()
		cancel()
		d.lock.Unlock()
		return fmt.Errorf("start ipc server: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.cfg.DatabasePath()))
	return nil
}

// Stop shuts down IPC first so no new work arrives, then drains the
// workflow loops and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.server.Stop()
	d.manager.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}
