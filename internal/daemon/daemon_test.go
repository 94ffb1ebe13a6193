package daemon_test

import (
	"context"
	"strings"
	"testing"

	"biru/internal/daemon"
	"biru/internal/ipc"
	"biru/internal/logging"
	"biru/internal/testsupport"
)

func TestDaemonLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logger := logging.NewNop()

	d, err := daemon.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping: %v", err)
		}
		t.Fatalf("start daemon: %v", err)
	}

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	ping, err := client.Ping()
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ping.Version == "" {
		t.Fatal("expected version in ping reply")
	}
	client.Close()

	d.Stop()

	if _, err := ipc.Dial(cfg.SocketPath()); err == nil {
		t.Fatal("expected dial to fail after stop")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logger := logging.NewNop()

	first, err := daemon.New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping: %v", err)
		}
		t.Fatalf("start first daemon: %v", err)
	}

	second, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	t.Cleanup(func() { second.Close() })

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail on the lock")
	}
}
