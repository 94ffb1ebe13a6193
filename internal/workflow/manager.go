// Package workflow runs the pipeline: it claims pending entities, drives
// them through their stages, supervises heartbeats, and owns every status
// transition.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"biru/internal/config"
	"biru/internal/logging"
	"biru/internal/notifications"
	"biru/internal/planner"
	"biru/internal/services"
	"biru/internal/stage"
	"biru/internal/store"
)

// Manager coordinates the analysis lane (assets), the production lane
// (clips), the scheduling pass, and the publishing pass.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	assetHandler stage.AssetHandler
	clipHandler  stage.ClipHandler
	planner      *planner.Planner
	publisher    *Publisher
	notifier     notifications.Service
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager wires the workflow from its collaborators.
func NewManager(
	cfg *config.Config,
	st *store.Store,
	assetHandler stage.AssetHandler,
	clipHandler stage.ClipHandler,
	p *planner.Planner,
	publisher *Publisher,
	notifier notifications.Service,
	logger *slog.Logger,
) *Manager {
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		assetHandler: assetHandler,
		clipHandler:  clipHandler,
		planner:      p,
		publisher:    publisher,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
	}
}

// Start launches the workflow loops. It returns immediately; Stop blocks
// until the loops drain.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return services.Wrap(services.ErrValidation, "workflow", "start", "already running", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(runCtx)
	m.logger.Info("workflow started")
	return nil
}

// Stop cancels the loops and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.logger.Info("workflow stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); m.assetLane(ctx) }()
	go func() { defer wg.Done(); m.clipLane(ctx) }()
	go func() { defer wg.Done(); m.monitorHeartbeats(ctx) }()
	go func() { defer wg.Done(); m.calendarLoop(ctx) }()
	wg.Wait()
}

// assetLane claims one PENDING asset at a time, so per-asset work is
// serialized while the clip lane runs in parallel.
func (m *Manager) assetLane(ctx context.Context) {
	poll := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	for {
		worked, err := m.processNextAsset(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("asset lane", logging.Error(err))
		}
		if !worked {
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) clipLane(ctx context.Context) {
	poll := time.Duration(m.cfg.Workflow.QueuePollInterval) * time.Second
	for {
		worked, err := m.processNextClip(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("clip lane", logging.Error(err))
		}
		if !worked {
			select {
			case <-ctx.Done():
				return
			case <-time.After(poll):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) processNextAsset(ctx context.Context) (bool, error) {
	asset, err := m.store.NextAsset(ctx, store.StatusPending)
	if err != nil || asset == nil {
		return false, err
	}

	// Optimistic claim: losing the race just means another pass got here
	// first.
	if err := m.store.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}
	asset.Status = store.StatusProcessing

	logger := m.logger.With(logging.Int64(logging.FieldAssetID, asset.ID))
	logger.Info("asset claimed", logging.String("title", asset.Title))

	if err := m.assetHandler.Prepare(ctx, asset); err != nil {
		m.settleAsset(ctx, asset, err, logger)
		return true, nil
	}

	stopBeat := m.heartbeat(ctx, func(c context.Context) error {
		return m.store.TouchAssetHeartbeat(c, asset.ID)
	})
	execErr := m.assetHandler.Execute(ctx, asset)
	stopBeat()

	if execErr != nil {
		m.settleAsset(ctx, asset, execErr, logger)
		return true, nil
	}
	if err := m.store.TransitionAsset(ctx, asset.ID, store.StatusProcessing, store.StatusReady); err != nil {
		return true, err
	}
	logger.Info("asset ready")

	clips, err := m.store.ClipsByAsset(ctx, asset.ID)
	if err == nil {
		m.notifier.ClipsSelected(ctx, asset.Title, len(clips))
	}
	return true, nil
}

func (m *Manager) processNextClip(ctx context.Context) (bool, error) {
	clip, err := m.store.NextClip(ctx, store.StatusPending)
	if err != nil || clip == nil {
		return false, err
	}

	if err := m.store.TransitionClip(ctx, clip.ID, store.StatusPending, store.StatusProcessing); err != nil {
		if errors.Is(err, services.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}
	clip.Status = store.StatusProcessing

	logger := m.logger.With(logging.Int64(logging.FieldClipID, clip.ID))
	logger.Info("clip claimed")

	if err := m.clipHandler.Prepare(ctx, clip); err != nil {
		m.settleClip(ctx, clip, err, logger)
		return true, nil
	}

	stopBeat := m.heartbeat(ctx, func(c context.Context) error {
		return m.store.TouchClipHeartbeat(c, clip.ID)
	})
	execErr := m.clipHandler.Execute(ctx, clip)
	stopBeat()

	if execErr != nil {
		m.settleClip(ctx, clip, execErr, logger)
		return true, nil
	}
	if err := m.store.TransitionClip(ctx, clip.ID, store.StatusProcessing, store.StatusReady); err != nil {
		return true, err
	}
	logger.Info("clip ready")
	return true, nil
}

// settleAsset applies the failure policy to an asset whose pass errored.
func (m *Manager) settleAsset(ctx context.Context, asset *store.Asset, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, context.Canceled):
		// Shutdown mid-pass: leave PROCESSING, the stale-heartbeat monitor
		// reclaims it on the next start.

	case errors.Is(err, services.ErrInsufficientSegments):
		// Held for re-analysis: keep PROCESSING so the asset is visibly
		// stuck rather than silently requeued; the monitor re-pends it once
		// the heartbeat goes stale.
		asset.SetProgress("Held", err.Error(), 0)
		if updateErr := m.store.UpdateAsset(ctx, asset); updateErr != nil {
			logger.Error("record held asset", logging.Error(updateErr))
		}
		logger.Warn("asset held for re-analysis", logging.Error(err))

	case services.Retryable(err):
		asset.Attempts++
		if asset.Attempts >= m.cfg.Workflow.DispatchMaxAttempts {
			m.failAsset(ctx, asset, err, logger)
			return
		}
		if updateErr := m.store.UpdateAsset(ctx, asset); updateErr != nil {
			logger.Error("record attempt", logging.Error(updateErr))
		}
		if requeueErr := m.store.RequeueAsset(ctx, asset.ID, err.Error()); requeueErr != nil {
			logger.Error("requeue asset", logging.Error(requeueErr))
			return
		}
		logger.Warn("asset requeued",
			logging.Int("attempt", asset.Attempts),
			logging.Error(err))

	default:
		m.failAsset(ctx, asset, err, logger)
	}
}

func (m *Manager) failAsset(ctx context.Context, asset *store.Asset, err error, logger *slog.Logger) {
	asset.SetFailed(err.Error())
	if updateErr := m.store.UpdateAsset(ctx, asset); updateErr != nil {
		logger.Error("record failure", logging.Error(updateErr))
	}
	if transErr := m.store.TransitionAsset(ctx, asset.ID, store.StatusProcessing, store.StatusFailed); transErr != nil {
		logger.Error("mark asset failed", logging.Error(transErr))
	}
	logger.Error("asset failed", logging.Alert("failure"), logging.Error(err))
	m.notifier.Error(ctx, "asset "+asset.Title, err)
}

func (m *Manager) settleClip(ctx context.Context, clip *store.Clip, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, context.Canceled):

	case services.Retryable(err):
		clip.Attempts++
		if clip.Attempts >= m.cfg.Workflow.DispatchMaxAttempts {
			m.failClip(ctx, clip, err, logger)
			return
		}
		if updateErr := m.store.UpdateClip(ctx, clip); updateErr != nil {
			logger.Error("record attempt", logging.Error(updateErr))
		}
		if requeueErr := m.store.RequeueClip(ctx, clip.ID, err.Error()); requeueErr != nil {
			logger.Error("requeue clip", logging.Error(requeueErr))
			return
		}
		logger.Warn("clip requeued",
			logging.Int("attempt", clip.Attempts),
			logging.Error(err))

	default:
		m.failClip(ctx, clip, err, logger)
	}
}

func (m *Manager) failClip(ctx context.Context, clip *store.Clip, err error, logger *slog.Logger) {
	clip.ErrorMessage = err.Error()
	if updateErr := m.store.UpdateClip(ctx, clip); updateErr != nil {
		logger.Error("record failure", logging.Error(updateErr))
	}
	if transErr := m.store.TransitionClip(ctx, clip.ID, store.StatusProcessing, store.StatusFailed); transErr != nil {
		logger.Error("mark clip failed", logging.Error(transErr))
	}
	logger.Error("clip failed", logging.Alert("failure"), logging.Error(err))
	m.notifier.Error(ctx, "clip render", err)
}

// heartbeat stamps liveness until the returned stop function runs.
func (m *Manager) heartbeat(ctx context.Context, touch func(context.Context) error) func() {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	beatCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		// Stamp once immediately so a freshly claimed entity is never
		// mistaken for stale.
		if err := touch(beatCtx); err != nil && beatCtx.Err() == nil {
			m.logger.Warn("heartbeat", logging.Error(err))
		}
		for {
			select {
			case <-beatCtx.Done():
				return
			case <-ticker.C:
				if err := touch(beatCtx); err != nil && beatCtx.Err() == nil {
					m.logger.Warn("heartbeat", logging.Error(err))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// monitorHeartbeats periodically re-pends PROCESSING entities whose
// heartbeat went stale, covering crashed passes and held assets alike.
func (m *Manager) monitorHeartbeats(ctx context.Context) {
	interval := time.Duration(m.cfg.Workflow.HeartbeatInterval) * time.Second
	timeout := time.Duration(m.cfg.Workflow.HeartbeatTimeout) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := m.store.ReclaimStale(ctx, time.Now().Add(-timeout))
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("reclaim stale", logging.Error(err))
				}
				continue
			}
			if count > 0 {
				m.logger.Warn("reclaimed stale entities", logging.Int("count", count))
			}
		}
	}
}

// calendarLoop alternates the scheduling pass and the publishing pass.
func (m *Manager) calendarLoop(ctx context.Context) {
	interval := time.Duration(m.cfg.Workflow.SchedulePassInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := m.planner.Pass(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.logger.Error("scheduling pass", logging.Error(err))
				}
				continue
			}
			if result.Scheduled > 0 || result.Deferred > 0 {
				m.logger.Info("scheduling pass",
					logging.Int("scheduled", result.Scheduled),
					logging.Int("deferred", result.Deferred))
			}
			if m.publisher != nil {
				if err := m.publisher.Pass(ctx); err != nil && ctx.Err() == nil {
					m.logger.Error("publishing pass", logging.Error(err))
				}
			}
		}
	}
}
