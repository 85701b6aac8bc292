package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"roadwatch/internal/config"
	"roadwatch/internal/domain"
	"roadwatch/pkg/e"
)

type EventSource interface {
	Pop(ctx context.Context, timeout time.Duration) (domain.LifecycleEvent, error)
}

// EventSender drains the lifecycle event queue into the configured webhook.
type EventSender struct {
	logger     *slog.Logger
	cfg        config.WebhookConfig
	queue      EventSource
	http       *http.Client
	maxRetries int
	backoff    time.Duration
}

func NewEventSender(logger *slog.Logger, cfg config.WebhookConfig, q EventSource) *EventSender {
	return &EventSender{
		logger:     logger,
		cfg:        cfg,
		queue:      q,
		http:       &http.Client{Timeout: 5 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
	}
}

func (s *EventSender) Run(ctx context.Context) {
	s.logger.Info("event sender started", slog.String("url", s.cfg.URL))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("event sender stopped", slog.String("reason", ctx.Err().Error()))
			return
		default:
		}

		ev, err := s.queue.Pop(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, e.ErrEventQueueEmpty) || ctx.Err() != nil {
				continue
			}
			s.logger.Error("event queue pop failed", slog.Any("error", err))
			sleepCtx(ctx, 500*time.Millisecond)
			continue
		}

		if err := s.Send(ctx, ev); err != nil {
			s.logger.Error("event dropped",
				slog.String("kind", string(ev.Kind)),
				slog.String("incident_id", ev.IncidentID.String()),
				slog.Any("error", err),
			)
		}
	}
}

// Send posts one event, retrying non-2xx answers and transport errors.
func (s *EventSender) Send(ctx context.Context, ev domain.LifecycleEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var reason string
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return nil
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		if err != nil {
			reason = err.Error()
		} else {
			reason = resp.Status
		}

		s.logger.Warn("webhook failed",
			slog.Int("attempt", attempt),
			slog.String("url", s.cfg.URL),
			slog.String("reason", reason),
		)

		if attempt < s.maxRetries {
			sleepCtx(ctx, time.Duration(attempt)*s.backoff)
		}
	}
	return fmt.Errorf("webhook gave up after %d attempts: %s", s.maxRetries, reason)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
