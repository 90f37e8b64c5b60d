package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeGateway struct {
	texts    []string
	media    []string
	failNext int
}

func (g *fakeGateway) SendText(ctx context.Context, to, text string) error {
	if g.failNext > 0 {
		g.failNext--
		return errors.New("provider unreachable")
	}
	g.texts = append(g.texts, to+": "+text)
	return nil
}

func (g *fakeGateway) SendMedia(ctx context.Context, to, fileRef, caption string) error {
	g.media = append(g.media, to+": "+fileRef)
	return nil
}

func (g *fakeGateway) DownloadMedia(ctx context.Context, messageID string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestSweepDeliversDueNotifications(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(func() time.Time { return now })
	gateway := &fakeGateway{}
	sweeper := NewSweeper(repo, gateway, nil).WithClock(func() time.Time { return now })

	due, _ := repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511999990000",
		Title:       "Lembrete",
		Body:        "Buscar equipamento",
		SendAt:      now.Add(-time.Minute),
	})
	notYet, _ := repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511999990000",
		Body:        "ainda não",
		SendAt:      now.Add(time.Hour),
	})

	sweeper.Sweep(context.Background())

	sent, _ := repo.GetByID(context.Background(), due.ID)
	if sent.Status != StatusSent {
		t.Fatalf("expected sent, got %s", sent.Status)
	}
	pending, _ := repo.GetByID(context.Background(), notYet.ID)
	if pending.Status != StatusPending {
		t.Fatalf("future notification must stay pending, got %s", pending.Status)
	}
	if len(gateway.texts) != 1 || !strings.Contains(gateway.texts[0], "*Lembrete*") {
		t.Fatalf("unexpected sends: %v", gateway.texts)
	}
}

func TestSweepRetryThenTerminalError(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(func() time.Time { return now })
	gateway := &fakeGateway{failNext: 10}
	sweeper := NewSweeper(repo, gateway, nil).WithClock(func() time.Time { return now })

	n, _ := repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511999990000",
		Body:        "entrega",
		SendAt:      now.Add(-time.Minute),
	})

	sweeper.Sweep(context.Background())
	after1, _ := repo.GetByID(context.Background(), n.ID)
	if after1.Status != StatusPending || after1.RetryCount != 1 {
		t.Fatalf("expected pending retry 1, got %s/%d", after1.Status, after1.RetryCount)
	}
	if !after1.SendAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("expected send_at pushed 5m, got %v", after1.SendAt)
	}

	// make the rescheduled row due again and fail twice more
	for i := 0; i < 2; i++ {
		now = now.Add(6 * time.Minute)
		sweeper.Sweep(context.Background())
	}

	terminal, _ := repo.GetByID(context.Background(), n.ID)
	if terminal.Status != StatusError {
		t.Fatalf("expected terminal error after %d failures, got %s", MaxRetries, terminal.Status)
	}

	// terminal rows are never picked up again
	now = now.Add(time.Hour)
	countBefore := len(gateway.texts)
	sweeper.Sweep(context.Background())
	if len(gateway.texts) != countBefore {
		t.Fatal("error notification must not be retried")
	}
}

func TestSweepRearmsRecurring(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(func() time.Time { return now })
	gateway := &fakeGateway{}
	sweeper := NewSweeper(repo, gateway, nil).WithClock(func() time.Time { return now })

	n, _ := repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511999990000",
		Body:        "cobrança semanal",
		SendAt:      now.Add(-time.Minute),
		RepeatDays:  7,
	})

	sweeper.Sweep(context.Background())

	rearmed, _ := repo.GetByID(context.Background(), n.ID)
	if rearmed.Status != StatusPending || rearmed.RetryCount != 0 {
		t.Fatalf("expected re-armed pending, got %s/%d", rearmed.Status, rearmed.RetryCount)
	}
	if !rearmed.SendAt.Equal(now.AddDate(0, 0, 7)) {
		t.Fatalf("expected send_at +7d, got %v", rearmed.SendAt)
	}
}

func TestSweepRendersAutomationBodies(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(func() time.Time { return now })
	gateway := &fakeGateway{}
	sweeper := NewSweeper(repo, gateway, nil).WithClock(func() time.Time { return now })

	scheduler := NewAutomationScheduler(repo)
	err := scheduler.ScheduleFromAutomation(context.Background(), uuid.New(),
		"5511999990000", "João", "", "Sua OS {{order_number}} está pronta!",
		now.Add(-time.Second), map[string]any{"order_number": "OS-20260830-000001"})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	// a manual schedule with the same placeholder must NOT be rendered
	repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511988887777",
		Body:        "manual {{order_number}}",
		SendAt:      now.Add(-time.Second),
	})

	sweeper.Sweep(context.Background())

	if len(gateway.texts) != 2 {
		t.Fatalf("expected two sends, got %v", gateway.texts)
	}
	joined := strings.Join(gateway.texts, "\n")
	if !strings.Contains(joined, "Sua OS OS-20260830-000001 está pronta!") {
		t.Fatalf("automation body not rendered: %v", gateway.texts)
	}
	if !strings.Contains(joined, "manual {{order_number}}") {
		t.Fatalf("manual body must keep placeholders: %v", gateway.texts)
	}
}

func TestSweepSendsAttachments(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(func() time.Time { return now })
	gateway := &fakeGateway{}
	sweeper := NewSweeper(repo, gateway, nil).WithClock(func() time.Time { return now })

	repo.Schedule(context.Background(), &ScheduleInput{
		TargetPhone: "5511999990000",
		Body:        "segue a OS",
		SendAt:      now.Add(-time.Second),
		PDFPath:     "/tmp/os.pdf",
	})

	sweeper.Sweep(context.Background())

	if len(gateway.media) != 1 || !strings.Contains(gateway.media[0], "/tmp/os.pdf") {
		t.Fatalf("expected pdf attachment sent: %v", gateway.media)
	}
}

func TestCancelOnlyPending(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	n, _ := repo.Schedule(context.Background(), &ScheduleInput{
		UserID:      userID,
		TargetPhone: "5511999990000",
		Body:        "x",
		SendAt:      time.Now(),
	})

	if _, err := repo.Cancel(context.Background(), userID, n.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := repo.Cancel(context.Background(), userID, n.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected not cancellable, got %v", err)
	}
	if _, err := repo.Cancel(context.Background(), userID, uuid.New()); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
