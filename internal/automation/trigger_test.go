package automation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTriggerMatchesExactConditions(t *testing.T) {
	trigger := &Trigger{
		EventType:  "order.status_changed",
		Conditions: map[string]any{"status": "done"},
		Enabled:    true,
	}

	if !trigger.Matches("order.status_changed", map[string]any{"status": "done", "order_number": "OS-1"}) {
		t.Fatal("expected match on equal condition")
	}
	if trigger.Matches("order.status_changed", map[string]any{"status": "open"}) {
		t.Fatal("expected mismatch on different value")
	}
	if trigger.Matches("order.created", map[string]any{"status": "done"}) {
		t.Fatal("expected mismatch on different event type")
	}

	trigger.Enabled = false
	if trigger.Matches("order.status_changed", map[string]any{"status": "done"}) {
		t.Fatal("expected disabled trigger to never match")
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	payload := map[string]any{"client_name": "João", "order_number": "OS-20260830-000001"}

	got := Render("OS {{order_number}} do {{ client_name }} pronta. {{missing}}", payload)
	want := "OS OS-20260830-000001 do João pronta. {{missing}}"
	if got != want {
		t.Fatalf("unexpected render:\n got %q\nwant %q", got, want)
	}

	if Render("sem var", payload) != "sem var" {
		t.Fatal("expected template without placeholders unchanged")
	}
}

type recordedSchedule struct {
	userID uuid.UUID
	phone  string
	body   string
	sendAt time.Time
	data   map[string]any
}

type fakeScheduler struct {
	calls []recordedSchedule
}

func (f *fakeScheduler) ScheduleFromAutomation(ctx context.Context, userID uuid.UUID, phone, name, title, body string, sendAt time.Time, eventData map[string]any) error {
	f.calls = append(f.calls, recordedSchedule{userID: userID, phone: phone, body: body, sendAt: sendAt, data: eventData})
	return nil
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendText(ctx context.Context, to, text string) error {
	f.sent = append(f.sent, to+": "+text)
	return nil
}

func TestEvaluatorFiresMatchingTriggers(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	repo.Create(context.Background(), &Trigger{
		UserID:     userID,
		EventType:  "order.status_changed",
		Conditions: map[string]any{"status": "done"},
		Action:     ActionScheduleNotification,
		ActionParams: map[string]any{
			"target_phone":  "{{client_phone}}",
			"body":          "Sua OS {{order_number}} está pronta!",
			"delay_minutes": float64(30),
		},
		Enabled: true,
	})
	created, _ := repo.Create(context.Background(), &Trigger{
		UserID:       userID,
		EventType:    "order.status_changed",
		Conditions:   map[string]any{"status": "cancelled"},
		Action:       ActionSendMessage,
		ActionParams: map[string]any{"target_phone": "x", "body": "y"},
		Enabled:      true,
	})

	scheduler := &fakeScheduler{}
	sender := &fakeSender{}
	eval := NewEvaluator(repo, scheduler, sender, nil).WithClock(func() time.Time { return now })

	eval.Fire(context.Background(), "order.status_changed", map[string]any{
		"status":       "done",
		"client_phone": "5511999990000",
		"order_number": "OS-20260830-000001",
	})

	if len(scheduler.calls) != 1 {
		t.Fatalf("expected one scheduled notification, got %d", len(scheduler.calls))
	}
	call := scheduler.calls[0]
	if call.phone != "5511999990000" {
		t.Fatalf("expected rendered phone, got %q", call.phone)
	}
	// body placeholders stay raw; the sweeper renders them at send time
	if call.body != "Sua OS {{order_number}} está pronta!" {
		t.Fatalf("expected raw body, got %q", call.body)
	}
	if !call.sendAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("unexpected send_at: %v", call.sendAt)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("cancelled-state trigger must not fire: %v", sender.sent)
	}

	triggers, _ := repo.ListByEvent(context.Background(), "order.status_changed")
	for _, tr := range triggers {
		if tr.ID == created.ID && tr.Runs != 0 {
			t.Fatal("non-matching trigger must not record a run")
		}
	}
}
