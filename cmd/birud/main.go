// Command birud runs the clip pipeline daemon.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"biru/internal/config"
	"biru/internal/daemon"
	"biru/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/biru/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, path, exists, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	if !exists {
		logger.Info("no config file found, using defaults", logging.String("path", path))
	}

	d, err := daemon.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("shutting down")
}
