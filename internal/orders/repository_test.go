package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateGeneratesSequentialNumbers(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository().WithClock(fixedClock(now))
	userID := uuid.New()

	first, err := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "João", TotalAmount: 150})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "Maria"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if first.OrderNumber != "OS-20260830-000001" {
		t.Fatalf("unexpected first number: %s", first.OrderNumber)
	}
	if second.OrderNumber != "OS-20260830-000002" {
		t.Fatalf("unexpected second number: %s", second.OrderNumber)
	}
	if first.Status != StatusOpen || first.Priority != PriorityNormal {
		t.Fatalf("unexpected defaults: %s/%s", first.Status, first.Priority)
	}
}

func TestCreateValidation(t *testing.T) {
	repo := NewInMemoryRepository()
	cases := []struct {
		name string
		in   CreateOrderInput
		want error
	}{
		{"missing client", CreateOrderInput{}, ErrClientNameRequired},
		{"bad priority", CreateOrderInput{ClientName: "x", Priority: "asap"}, ErrInvalidPriority},
		{"negative amount", CreateOrderInput{ClientName: "x", TotalAmount: -1}, ErrNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.Create(context.Background(), uuid.New(), &tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateStatusSetsCompletion(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	order, err := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "João"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	done, err := repo.UpdateStatus(context.Background(), userID, order.OrderNumber, StatusDone)
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at on done")
	}

	reopened, err := repo.UpdateStatus(context.Background(), userID, order.OrderNumber, StatusInProgress)
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatal("expected completed_at cleared when reopened")
	}

	if _, err := repo.UpdateStatus(context.Background(), userID, order.OrderNumber, "shipped"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := repo.UpdateStatus(context.Background(), uuid.New(), order.OrderNumber, StatusDone); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := now
	repo := NewInMemoryRepository().WithClock(func() time.Time { return clock })
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		clock = now.Add(time.Duration(i) * time.Minute)
		if _, err := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: fmt.Sprintf("c%d", i)}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	clock = now

	page, err := repo.List(context.Background(), ListFilter{UserID: userID, Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	// newest first, offset skips the most recent
	if page[0].ClientName != "c3" || page[1].ClientName != "c2" {
		t.Fatalf("unexpected page order: %s, %s", page[0].ClientName, page[1].ClientName)
	}

	byStatus, err := repo.List(context.Background(), ListFilter{UserID: userID, Status: StatusDone})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byStatus) != 0 {
		t.Fatalf("expected no done orders, got %d", len(byStatus))
	}
}

func TestNotesAndParts(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	order, _ := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "João"})

	updated, err := repo.AppendNote(context.Background(), userID, order.OrderNumber, "cliente pediu urgência")
	if err != nil {
		t.Fatalf("append note failed: %v", err)
	}
	updated, err = repo.AppendNote(context.Background(), userID, order.OrderNumber, "peça encomendada")
	if err != nil {
		t.Fatalf("append note failed: %v", err)
	}
	if updated.Notes != "cliente pediu urgência\npeça encomendada" {
		t.Fatalf("unexpected notes: %q", updated.Notes)
	}

	updated, err = repo.AddPart(context.Background(), userID, order.OrderNumber, Part{Name: "torneira", UnitPrice: 80})
	if err != nil {
		t.Fatalf("add part failed: %v", err)
	}
	if len(updated.Parts) != 1 || updated.Parts[0].Quantity != 1 {
		t.Fatalf("unexpected parts: %#v", updated.Parts)
	}
}

func TestTotalsAndBalance(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clock := now
	repo := NewInMemoryRepository().WithClock(func() time.Time { return clock })
	userID := uuid.New()

	// one order last month, two this month, one cancelled this month
	clock = now.AddDate(0, -1, 0)
	repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "old", TotalAmount: 999})
	clock = now
	repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "a", TotalAmount: 150})
	b, _ := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "b", TotalAmount: 50})
	c, _ := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "c", TotalAmount: 75})
	repo.UpdateStatus(context.Background(), userID, b.OrderNumber, StatusDone)
	repo.UpdateStatus(context.Background(), userID, c.OrderNumber, StatusCancelled)

	totals, err := repo.Totals(context.Background(), ListFilter{UserID: userID})
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Count != 4 || totals.ByStatus[StatusDone] != 1 || totals.ByStatus[StatusCancelled] != 1 {
		t.Fatalf("unexpected totals: %#v", totals)
	}

	bal, err := repo.Balance(context.Background(), userID, "month", now)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if bal.Count != 2 || bal.Sum != 200 {
		t.Fatalf("unexpected month balance: %#v", bal)
	}

	if _, err := repo.Balance(context.Background(), userID, "year", now); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestSearchByClient(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "João Silva", ClientPhone: "5511999990000"})
	repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "Maria"})

	byName, err := repo.SearchByClient(context.Background(), userID, "joão", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byName) != 1 || byName[0].ClientName != "João Silva" {
		t.Fatalf("unexpected name search result: %#v", byName)
	}

	byPhone, err := repo.SearchByClient(context.Background(), userID, "99999", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byPhone) != 1 {
		t.Fatalf("unexpected phone search result: %#v", byPhone)
	}
}

