package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/pkg/logging"
)

// NotificationScheduler queues a notification on behalf of a trigger.
// The body keeps its {{var}} placeholders; the sweeper renders them
// against the stored event data at send time.
type NotificationScheduler interface {
	ScheduleFromAutomation(ctx context.Context, userID uuid.UUID, phone, name, title, body string, sendAt time.Time, eventData map[string]any) error
}

// TextSender delivers an immediate WhatsApp message.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// Evaluator runs matching triggers against incoming domain events.
type Evaluator struct {
	repo      Repository
	scheduler NotificationScheduler
	sender    TextSender
	logger    *logging.Logger
	now       func() time.Time
}

// NewEvaluator wires the trigger table to its action targets.
func NewEvaluator(repo Repository, scheduler NotificationScheduler, sender TextSender, logger *logging.Logger) *Evaluator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{repo: repo, scheduler: scheduler, sender: sender, logger: logger, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	e.now = now
	return e
}

// Fire evaluates every enabled trigger for the event type and runs the
// matching ones. Action failures are logged, not propagated: one broken
// trigger must not block the event source.
func (e *Evaluator) Fire(ctx context.Context, eventType string, payload map[string]any) {
	if e.repo == nil {
		return
	}
	triggers, err := e.repo.ListByEvent(ctx, eventType)
	if err != nil {
		e.logger.Error("automation list failed", "error", err, "event_type", eventType)
		return
	}
	for _, trigger := range triggers {
		if !trigger.Matches(eventType, payload) {
			continue
		}
		if err := e.run(ctx, trigger, payload); err != nil {
			e.logger.Error("automation action failed", "error", err, "trigger_id", trigger.ID, "action", trigger.Action)
			continue
		}
		if err := e.repo.RecordRun(ctx, trigger.ID, e.now().UTC()); err != nil {
			e.logger.Error("automation run bookkeeping failed", "error", err, "trigger_id", trigger.ID)
		}
	}
}

func (e *Evaluator) run(ctx context.Context, trigger *Trigger, payload map[string]any) error {
	params := trigger.ActionParams
	str := func(key string) string {
		v, _ := params[key].(string)
		return v
	}

	switch trigger.Action {
	case ActionSendMessage:
		if e.sender == nil {
			return fmt.Errorf("automation: no sender configured")
		}
		to := Render(str("target_phone"), payload)
		body := Render(str("body"), payload)
		if to == "" || body == "" {
			return fmt.Errorf("automation: send_message needs target_phone and body")
		}
		return e.sender.SendText(ctx, to, body)

	case ActionScheduleNotification:
		if e.scheduler == nil {
			return fmt.Errorf("automation: no scheduler configured")
		}
		to := Render(str("target_phone"), payload)
		if to == "" || str("body") == "" {
			return fmt.Errorf("automation: schedule_notification needs target_phone and body")
		}
		delay := time.Hour
		if minutes, ok := params["delay_minutes"].(float64); ok && minutes > 0 {
			delay = time.Duration(minutes) * time.Minute
		}
		return e.scheduler.ScheduleFromAutomation(ctx,
			trigger.UserID, to, Render(str("target_name"), payload),
			str("title"), str("body"), e.now().UTC().Add(delay), payload,
		)

	default:
		return fmt.Errorf("automation: unknown action %q", trigger.Action)
	}
}
