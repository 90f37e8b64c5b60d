package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/castrolabs/osbot/internal/orders"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{0, "R$ 0,00"},
		{150, "R$ 150,00"},
		{150.5, "R$ 150,50"},
		{1234.56, "R$ 1.234,56"},
		{1234567.8, "R$ 1.234.567,80"},
		{0.059, "R$ 0,06"},
		{-10, "R$ 0,00"},
	}
	for _, tc := range cases {
		if got := FormatMoney(tc.amount); got != tc.want {
			t.Errorf("FormatMoney(%v) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	at := time.Date(2026, 8, 30, 14, 0, 0, 0, time.Local)
	if got := FormatDate(at); got != "30/08/2026 às 14:00" {
		t.Fatalf("unexpected date format: %q", got)
	}
}

func TestPresentOrderCreatedContainsEssentials(t *testing.T) {
	o := &orders.ServiceOrder{
		OrderNumber: "OS-20260830-000001",
		ClientName:  "João",
		Title:       "troca de torneira",
		TotalAmount: 150,
		OpenedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local),
	}
	got := presentOrderCreated(o)
	for _, want := range []string{"OS-20260830-000001", "João", "R$ 150,00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("confirmation missing %q:\n%s", want, got)
		}
	}
}

func TestPresentOrderListCapsAtTen(t *testing.T) {
	var list []*orders.ServiceOrder
	for i := 0; i < 14; i++ {
		list = append(list, &orders.ServiceOrder{
			OrderNumber: fmt.Sprintf("OS-20260830-%06d", i+1),
			ClientName:  "Cliente",
			Status:      orders.StatusOpen,
		})
	}
	got := presentOrderList(list)
	if strings.Count(got, "• *OS-") != 10 {
		t.Fatalf("expected 10 listed rows:\n%s", got)
	}
	if !strings.Contains(got, "mais 4") {
		t.Fatalf("expected +4 marker:\n%s", got)
	}

	if presentOrderList(nil) != "Nenhuma ordem de serviço encontrada." {
		t.Fatal("unexpected empty-list text")
	}
}

func TestPresentBalance(t *testing.T) {
	got := presentBalance(&orders.Balance{Period: "month", Count: 2, Sum: 200})
	if !strings.Contains(got, "R$ 200,00") || !strings.Contains(got, "do mês") || !strings.Contains(got, "2 ordem(ns)") {
		t.Fatalf("unexpected balance text: %q", got)
	}
}

func TestPresentTotals(t *testing.T) {
	got := presentTotals(&orders.Totals{
		Count:        4,
		EstimatedSum: 100,
		FinalSum:     450,
		ByStatus:     map[string]int{orders.StatusOpen: 3, orders.StatusDone: 1},
	})
	for _, want := range []string{"Ordens: 4", "Aberta: 3", "Concluída: 1", "R$ 450,00"} {
		if !strings.Contains(got, want) {
			t.Fatalf("totals missing %q:\n%s", want, got)
		}
	}
}
