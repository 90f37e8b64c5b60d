package notifications

import (
	"context"
	"time"

	"github.com/castrolabs/osbot/internal/automation"
	"github.com/castrolabs/osbot/internal/observability/metrics"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// Sweeper delivers due notifications on a fixed interval, applying the
// retry and recurrence bookkeeping.
type Sweeper struct {
	repo       Repository
	gateway    whatsapp.Gateway
	logger     *logging.Logger
	metrics    *metrics.BotMetrics
	interval   time.Duration
	batchSize  int
	retryDelay time.Duration
	now        func() time.Time
}

// NewSweeper wires the notification table to the messaging gateway.
func NewSweeper(repo Repository, gateway whatsapp.Gateway, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		repo:       repo,
		gateway:    gateway,
		logger:     logger,
		interval:   30 * time.Second,
		batchSize:  50,
		retryDelay: 5 * time.Minute,
		now:        time.Now,
	}
}

func (s *Sweeper) WithInterval(d time.Duration) *Sweeper {
	if d > 0 {
		s.interval = d
	}
	return s
}

func (s *Sweeper) WithBatchSize(n int) *Sweeper {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

func (s *Sweeper) WithRetryDelay(d time.Duration) *Sweeper {
	if d > 0 {
		s.retryDelay = d
	}
	return s
}

func (s *Sweeper) WithMetrics(m *metrics.BotMetrics) *Sweeper {
	s.metrics = m
	return s
}

// WithClock overrides the time source, for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of due notifications.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.repo == nil || s.gateway == nil {
		return
	}
	due, err := s.repo.Due(ctx, s.now().UTC(), s.batchSize)
	if err != nil {
		s.logger.Error("notification sweep fetch failed", "error", err)
		return
	}
	for _, n := range due {
		if err := s.deliver(ctx, n); err != nil {
			s.logger.Warn("notification delivery failed", "error", err,
				"notification_id", n.ID, "retry_count", n.RetryCount)
			s.recordFailure(ctx, n)
			continue
		}
		s.recordSuccess(ctx, n)
	}
}

func (s *Sweeper) deliver(ctx context.Context, n *Notification) error {
	body := n.Body
	if n.FromAutomation {
		body = automation.Render(body, n.EventData)
	}
	if n.Title != "" {
		body = "*" + n.Title + "*\n\n" + body
	}
	if err := s.gateway.SendText(ctx, n.TargetPhone, body); err != nil {
		return err
	}
	if n.PDFPath != "" {
		if err := s.gateway.SendMedia(ctx, n.TargetPhone, n.PDFPath, n.Title); err != nil {
			return err
		}
	}
	if n.AttachmentURL != "" {
		if err := s.gateway.SendMedia(ctx, n.TargetPhone, n.AttachmentURL, n.Title); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) recordSuccess(ctx context.Context, n *Notification) {
	if n.Recurring() {
		next := s.now().UTC().AddDate(0, 0, n.RepeatDays)
		if err := s.repo.Rearm(ctx, n.ID, next); err != nil {
			s.logger.Error("notification re-arm failed", "error", err, "notification_id", n.ID)
			return
		}
		s.metrics.ObserveSweep("rearmed")
		s.logger.Info("notification sent and re-armed", "notification_id", n.ID, "next_send_at", next)
		return
	}
	if err := s.repo.MarkSent(ctx, n.ID); err != nil {
		s.logger.Error("notification mark sent failed", "error", err, "notification_id", n.ID)
		return
	}
	s.metrics.ObserveSweep("sent")
	s.logger.Info("notification sent", "notification_id", n.ID, "target", n.TargetPhone)
}

func (s *Sweeper) recordFailure(ctx context.Context, n *Notification) {
	if n.RetryCount+1 >= MaxRetries {
		if err := s.repo.MarkError(ctx, n.ID); err != nil {
			s.logger.Error("notification mark error failed", "error", err, "notification_id", n.ID)
		}
		s.metrics.ObserveSweep("error")
		return
	}
	next := s.now().UTC().Add(s.retryDelay)
	if err := s.repo.Reschedule(ctx, n.ID, next); err != nil {
		s.logger.Error("notification reschedule failed", "error", err, "notification_id", n.ID)
		return
	}
	s.metrics.ObserveSweep("retried")
}
