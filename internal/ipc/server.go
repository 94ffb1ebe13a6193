package ipc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"biru/internal/api"
	"biru/internal/brain"
	"biru/internal/commands"
	"biru/internal/dispatch"
	"biru/internal/logging"
	"biru/internal/store"
	"biru/internal/workflow"
)

// Version reported over Ping.
const Version = "0.3.0"

const requestTimeout = 30 * time.Second

// Daemon is the RPC receiver. Method signatures follow net/rpc conventions.
type Daemon struct {
	service     *api.Service
	manager     *workflow.Manager
	store       *store.Store
	queue       *dispatch.Queue
	coordinator *dispatch.Coordinator
	started     time.Time
}

// Server accepts JSON-RPC connections on a unix socket.
type Server struct {
	socketPath string
	rpcServer  *rpc.Server
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer registers the daemon surface and prepares a server for the
// given socket path.
func NewServer(
	socketPath string,
	service *api.Service,
	manager *workflow.Manager,
	st *store.Store,
	queue *dispatch.Queue,
	coordinator *dispatch.Coordinator,
	logger *slog.Logger,
) (*Server, error) {
	daemon := &Daemon{
		service:     service,
		manager:     manager,
		store:       st,
		queue:       queue,
		coordinator: coordinator,
		started:     time.Now(),
	}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, daemon); err != nil {
		return nil, err
	}
	return &Server{
		socketPath: socketPath,
		rpcServer:  rpcServer,
		logger:     logging.NewComponentLogger(logger, "ipc"),
	}, nil
}

// Start listens on the socket and serves connections until Stop.
func (s *Server) Start() error {
	// A previous unclean shutdown can leave the socket file behind.
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.closed = false
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener)
	s.logger.Info("ipc listening", logging.String("socket", s.socketPath))
	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			s.logger.Warn("accept", logging.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
		}()
	}
}

func rpcContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// Ping answers liveness probes.
func (d *Daemon) Ping(args *Empty, reply *PingReply) error {
	reply.Version = Version
	reply.UptimeSec = int64(time.Since(d.started).Seconds())
	return nil
}

// Status reports pipeline health and queue depths.
func (d *Daemon) Status(args *Empty, reply *StatusReply) error {
	ctx, cancel := rpcContext()
	defer cancel()

	health, err := d.manager.Health(ctx)
	if err != nil {
		return err
	}
	reply.Ready = health.Ready
	reply.Assets = health.Summary.Assets
	reply.Clips = health.Summary.Clips
	reply.Posts = health.Summary.Posts
	reply.Metrics = health.Summary.Metrics
	reply.QueuedWork = d.queue.Len()
	reply.Stages = make(map[string]string, len(health.Stages))
	for _, check := range health.Stages {
		detail := "ok"
		if !check.Ready {
			detail = check.Detail
		}
		reply.Stages[check.Name] = detail
	}
	return nil
}

// Ingest queues a new source for analysis.
func (d *Daemon) Ingest(args *IngestArgs, reply *IngestReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	view, err := d.service.Ingest(ctx, args.Title, args.Source, args.SourceType, args.ContentType)
	if err != nil {
		return err
	}
	reply.Asset = view
	return nil
}

// ListTopClips returns the best clips for an asset.
func (d *Daemon) ListTopClips(args *TopClipsArgs, reply *TopClipsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	clips, err := d.service.ListTopClips(ctx, args.AssetID, args.Count)
	if err != nil {
		return err
	}
	reply.Clips = clips
	return nil
}

// ScheduleNow books the next open slot for a clip.
func (d *Daemon) ScheduleNow(args *ScheduleNowArgs, reply *ScheduleNowReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	post, err := d.service.ScheduleNow(ctx, args.ClipID, args.Platform)
	if err != nil {
		return err
	}
	reply.Post = post
	return nil
}

// GetStatus reports one entity's lifecycle status.
func (d *Daemon) GetStatus(args *GetStatusArgs, reply *GetStatusReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	status, err := d.service.GetStatus(ctx, args.EntityType, args.EntityID)
	if err != nil {
		return err
	}
	reply.Status = status
	return nil
}

// RecordMetric appends a performance observation.
func (d *Daemon) RecordMetric(args *RecordMetricArgs, reply *RecordMetricReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	metric, err := d.service.RecordMetric(ctx, args.PostID, args.MetricType, args.Value)
	if err != nil {
		return err
	}
	reply.Metric = metric
	return nil
}

// ListMetrics returns every observation recorded for a post.
func (d *Daemon) ListMetrics(args *ListMetricsArgs, reply *ListMetricsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	metrics, err := d.store.MetricsForPost(ctx, args.PostID)
	if err != nil {
		return err
	}
	for _, metric := range metrics {
		reply.Metrics = append(reply.Metrics, MetricRow{
			ID:         metric.ID,
			MetricType: metric.MetricType,
			Value:      metric.Value,
			ObservedAt: metric.ObservedAt.Format(time.RFC3339),
		})
	}
	return nil
}

// Tell runs one chat-style command through the intent classifier.
func (d *Daemon) Tell(args *TellArgs, reply *TellReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	response, err := commands.Tell(ctx, d.service, args.Message)
	if err != nil {
		return err
	}
	reply.Reply = response
	return nil
}

// ListAssets returns assets filtered by status.
func (d *Daemon) ListAssets(args *ListAssetsArgs, reply *ListAssetsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	assets, err := d.store.ListAssets(ctx, args.Statuses...)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		reply.Assets = append(reply.Assets, api.AssetView{
			ID:              asset.ID,
			Title:           asset.Title,
			Source:          asset.Source,
			DurationSeconds: asset.DurationSeconds,
			Status:          string(asset.Status),
			ProgressStage:   asset.ProgressStage,
			ProgressPercent: asset.ProgressPercent,
			Error:           asset.ErrorMessage,
			CreatedAt:       asset.CreatedAt,
		})
	}
	return nil
}

// ListPosts returns the calendar filtered by status.
func (d *Daemon) ListPosts(args *ListPostsArgs, reply *ListPostsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	posts, err := d.store.ListPosts(ctx, args.Statuses...)
	if err != nil {
		return err
	}
	for _, post := range posts {
		reply.Posts = append(reply.Posts, api.PostView{
			ID:          post.ID,
			ClipID:      post.ClipID,
			Platform:    post.Platform,
			SlotKey:     post.SlotKey,
			ScheduledAt: post.ScheduledAt,
			PostedAt:    post.PostedAt,
			Status:      string(post.Status),
		})
	}
	return nil
}

// ListDecisions returns the scheduling audit trail, each entry re-verified
// against its recorded inputs.
func (d *Daemon) ListDecisions(args *ListDecisionsArgs, reply *ListDecisionsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	decisions, err := d.store.ListDecisions(ctx, args.Limit)
	if err != nil {
		return err
	}
	for _, decision := range decisions {
		reply.Decisions = append(reply.Decisions, DecisionView{
			ID:         decision.ID,
			PostID:     decision.PostID,
			Platform:   decision.Platform,
			ChosenSlot: decision.ChosenSlot,
			Rationale:  decision.Rationale,
			CreatedAt:  decision.CreatedAt.Format(time.RFC3339),
			Verified:   brain.Replay(decision.InputsJSON, decision.ChosenSlot) == nil,
		})
	}
	return nil
}

// ListWeights returns the learned priors.
func (d *Daemon) ListWeights(args *Empty, reply *ListWeightsReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	weights, err := d.store.ListWeights(ctx)
	if err != nil {
		return err
	}
	for _, weight := range weights {
		reply.Weights = append(reply.Weights, WeightView{
			Category:       weight.Category,
			TimeSlot:       weight.TimeSlot,
			DurationBucket: weight.DurationBucket,
			Weight:         weight.Weight,
			SampleCount:    weight.SampleCount,
		})
	}
	return nil
}

// RetryFailed requeues failed assets and clips.
func (d *Daemon) RetryFailed(args *Empty, reply *RetryReply) error {
	ctx, cancel := rpcContext()
	defer cancel()
	count, err := d.service.RetryFailed(ctx)
	if err != nil {
		return err
	}
	reply.Requeued = count
	return nil
}

// ResetAsset discards an asset's clips and reruns analysis.
func (d *Daemon) ResetAsset(args *ResetAssetArgs, reply *Empty) error {
	ctx, cancel := rpcContext()
	defer cancel()
	return d.service.ResetAsset(ctx, args.AssetID)
}

// PullWork hands the next queued work item to an external worker.
func (d *Daemon) PullWork(args *Empty, reply *PullWorkReply) error {
	item, ok := d.queue.Pull()
	reply.Item = item
	reply.OK = ok
	return nil
}

// ReportCompletion applies a worker callback. The in-flight waiter gets it
// first; late callbacks after a restart fall through to the idempotent
// state-machine path.
func (d *Daemon) ReportCompletion(args *ReportCompletionArgs, reply *Empty) error {
	if d.coordinator.Complete(args.Completion) {
		return nil
	}
	if args.EntityType == "" || args.EntityID == 0 {
		return nil
	}
	ctx, cancel := rpcContext()
	defer cancel()
	outcome := dispatch.Outcome(args.Completion.Outcome)
	return d.manager.ReportCompletion(ctx, args.EntityType, args.EntityID, outcome)
}
