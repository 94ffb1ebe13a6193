// Package notifications pushes pipeline events to the creator's phone via
// ntfy. An unset topic disables delivery without changing call sites.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"biru/internal/config"
	"biru/internal/logging"
)

// Service delivers pipeline events. Implementations must be safe for
// concurrent use.
type Service interface {
	AssetIngested(ctx context.Context, title string)
	ClipsSelected(ctx context.Context, assetTitle string, count int)
	PostScheduled(ctx context.Context, platform, slot string)
	Posted(ctx context.Context, platform, slot string)
	Error(ctx context.Context, subject string, err error)
}

// NewService builds a notifier from config. With no topic configured the
// returned service drops everything.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return Noop{}
	}
	return &ntfyService{
		cfg:    cfg,
		url:    "https://ntfy.sh/" + topic,
		logger: logging.NewComponentLogger(logger, "notifications"),
		client: &http.Client{Timeout: time.Duration(cfg.Notifications.RequestTimeout) * time.Second},
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) AssetIngested(context.Context, string)         {}
func (Noop) ClipsSelected(context.Context, string, int)    {}
func (Noop) PostScheduled(context.Context, string, string) {}
func (Noop) Posted(context.Context, string, string)        {}
func (Noop) Error(context.Context, string, error)          {}

type ntfyService struct {
	cfg    *config.Config
	url    string
	logger *slog.Logger
	client *http.Client
}

func (s *ntfyService) AssetIngested(ctx context.Context, title string) {
	if !s.cfg.Notifications.Ingest {
		return
	}
	s.send(ctx, "New upload", fmt.Sprintf("%s is queued for analysis", title), "inbox_tray")
}

func (s *ntfyService) ClipsSelected(ctx context.Context, assetTitle string, count int) {
	if !s.cfg.Notifications.Selection {
		return
	}
	s.send(ctx, "Clips ready", fmt.Sprintf("%d clips selected from %s", count, assetTitle), "scissors")
}

func (s *ntfyService) PostScheduled(ctx context.Context, platform, slot string) {
	if !s.cfg.Notifications.Schedule {
		return
	}
	s.send(ctx, "Post scheduled", fmt.Sprintf("%s slot %s booked", platform, slot), "calendar")
}

func (s *ntfyService) Posted(ctx context.Context, platform, slot string) {
	if !s.cfg.Notifications.Posting {
		return
	}
	s.send(ctx, "Posted", fmt.Sprintf("%s slot %s went live", platform, slot), "rocket")
}

func (s *ntfyService) Error(ctx context.Context, subject string, err error) {
	if !s.cfg.Notifications.Errors {
		return
	}
	s.send(ctx, "Pipeline error", fmt.Sprintf("%s: %v", subject, err), "rotating_light")
}

func (s *ntfyService) send(ctx context.Context, title, message, tags string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(message))
	if err != nil {
		s.logger.Warn("build notification request", logging.Error(err))
		return
	}
	req.Header.Set("Title", title)
	req.Header.Set("Tags", tags)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("deliver notification", logging.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("notification rejected",
			logging.Int("status", resp.StatusCode),
			logging.String("title", title))
	}
}
