package ipc_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"biru/internal/api"
	"biru/internal/dispatch"
	"biru/internal/ipc"
	"biru/internal/logging"
	"biru/internal/memory"
	"biru/internal/planner"
	"biru/internal/stage"
	"biru/internal/store"
	"biru/internal/testsupport"
	"biru/internal/workflow"
)

type noopAssetStage struct{}

func (noopAssetStage) Name() string                                { return "noop-asset" }
func (noopAssetStage) Prepare(context.Context, *store.Asset) error { return nil }
func (noopAssetStage) Execute(context.Context, *store.Asset) error { return nil }
func (noopAssetStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("noop-asset")
}

type noopClipStage struct{}

func (noopClipStage) Name() string                               { return "noop-clip" }
func (noopClipStage) Prepare(context.Context, *store.Clip) error { return nil }
func (noopClipStage) Execute(context.Context, *store.Clip) error { return nil }
func (noopClipStage) HealthCheck(context.Context) stage.Health   { return stage.Healthy("noop-clip") }

func TestServerClientRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	model, err := memory.NewModel(st, cfg.Memory.SmoothingAlpha)
	if err != nil {
		t.Fatalf("memory.NewModel: %v", err)
	}
	queue := dispatch.NewQueue()
	coordinator := dispatch.NewCoordinator(queue, logger)
	plan := planner.New(cfg, st, model, logger)
	publisher := workflow.NewPublisher(cfg, st, coordinator, nil, logger)
	manager := workflow.NewManager(cfg, st, noopAssetStage{}, noopClipStage{}, plan, publisher, nil, logger)
	service := api.NewService(cfg, st, plan, model, nil, logger)

	srv, err := ipc.NewServer(cfg.SocketPath(), service, manager, st, queue, coordinator, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping: %v", err)
		}
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)

	time.Sleep(20 * time.Millisecond)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ping.Version == "" {
		t.Fatal("expected version in ping reply")
	}

	asset, err := client.Ingest("Launch Episode", "/media/launch.mkv", "file", "podcast")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if asset.Status != string(store.StatusPending) {
		t.Fatalf("expected PENDING asset, got %s", asset.Status)
	}

	status, err := client.GetStatus(store.EntityAsset, asset.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != store.StatusPending {
		t.Fatalf("expected PENDING status, got %s", status.Status)
	}

	assets, err := client.ListAssets(store.StatusPending)
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(assets) != 1 || assets[0].ID != asset.ID {
		t.Fatalf("expected one pending asset, got %v", assets)
	}

	reply, err := client.Tell("status asset 1")
	if err != nil {
		t.Fatalf("Tell: %v", err)
	}
	if reply == "" {
		t.Fatal("expected non-empty chat reply")
	}

	if _, ok, err := client.PullWork(); err != nil {
		t.Fatalf("PullWork: %v", err)
	} else if ok {
		t.Fatal("expected empty work queue")
	}

	health, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !health.Ready {
		t.Fatal("expected ready daemon")
	}
	if health.Assets[store.StatusPending] != 1 {
		t.Fatalf("expected one pending asset in summary, got %v", health.Assets)
	}
}

func TestReportCompletionFallsBackToManager(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	model, err := memory.NewModel(st, cfg.Memory.SmoothingAlpha)
	if err != nil {
		t.Fatalf("memory.NewModel: %v", err)
	}
	queue := dispatch.NewQueue()
	coordinator := dispatch.NewCoordinator(queue, logger)
	plan := planner.New(cfg, st, model, logger)
	publisher := workflow.NewPublisher(cfg, st, coordinator, nil, logger)
	manager := workflow.NewManager(cfg, st, noopAssetStage{}, noopClipStage{}, plan, publisher, nil, logger)
	service := api.NewService(cfg, st, plan, model, nil, logger)

	srv, err := ipc.NewServer(cfg.SocketPath(), service, manager, st, queue, coordinator, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	if err := srv.Start(); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping: %v", err)
		}
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	asset, err := st.NewAsset(ctx, "Late Callback", "/media/late.mkv", "file", "podcast")
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	if err := st.TransitionAsset(ctx, asset.ID, store.StatusPending, store.StatusProcessing); err != nil {
		t.Fatalf("claim asset: %v", err)
	}

	// No waiter is registered for this correlation id, so the server
	// must route the callback through the state machine.
	completion := dispatch.Completion{CorrelationID: "stale-id", Outcome: dispatch.OutcomeSuccess}
	if err := client.ReportCompletion(completion, store.EntityAsset, asset.ID); err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}

	updated, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if updated.Status != store.StatusReady {
		t.Fatalf("expected READY after late completion, got %s", updated.Status)
	}
}
