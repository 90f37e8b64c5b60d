package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/pkg/logging"
)

func TestAdminListLeads(t *testing.T) {
	leadRepo := leads.NewInMemoryRepository()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		if _, _, err := leadRepo.Upsert(context.Background(), &leads.CadastrarRequest{
			Nome:  "Teste",
			Email: email,
		}); err != nil {
			t.Fatalf("seed lead: %v", err)
		}
	}
	h := NewAdminHandler(leadRepo, notifications.NewInMemoryRepository(), newStubGateway(), logging.Default())

	rec := httptest.NewRecorder()
	h.ListLeads(rec, httptest.NewRequest(http.MethodGet, "/admin/leads", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AdminLeadsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
}

func TestAdminListNotifications(t *testing.T) {
	notifRepo := notifications.NewInMemoryRepository()
	userID := uuid.New()
	n, err := notifRepo.Schedule(context.Background(), &notifications.ScheduleInput{
		UserID:      userID,
		TargetPhone: "5511999990000",
		Body:        "lembrete",
		SendAt:      time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := notifRepo.Cancel(context.Background(), userID, n.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := notifRepo.Schedule(context.Background(), &notifications.ScheduleInput{
		UserID:      userID,
		TargetPhone: "5511999990000",
		Body:        "outro lembrete",
		SendAt:      time.Now().Add(2 * time.Hour),
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	h := NewAdminHandler(leads.NewInMemoryRepository(), notifRepo, newStubGateway(), logging.Default())

	rec := httptest.NewRecorder()
	h.ListNotifications(rec, httptest.NewRequest(http.MethodGet, "/admin/notifications?status=pending", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AdminNotificationsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Notifications[0].Body != "outro lembrete" {
		t.Fatalf("filtered = %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.ListNotifications(rec, httptest.NewRequest(http.MethodGet, "/admin/notifications?status=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d, want 400", rec.Code)
	}
}

func TestAdminSendMessage(t *testing.T) {
	gateway := newStubGateway()
	h := NewAdminHandler(leads.NewInMemoryRepository(), notifications.NewInMemoryRepository(), gateway, logging.Default())

	body := `{"phone":"+55 (11) 99999-0000","message":"oi, tudo certo?"}`
	rec := httptest.NewRecorder()
	h.SendMessage(rec, httptest.NewRequest(http.MethodPost, "/admin/messages", bytes.NewReader([]byte(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	select {
	case sent := <-gateway.texts:
		if sent != "5511999990000|oi, tudo certo?" {
			t.Fatalf("sent = %q", sent)
		}
	default:
		t.Fatal("gateway not called")
	}

	rec = httptest.NewRecorder()
	h.SendMessage(rec, httptest.NewRequest(http.MethodPost, "/admin/messages", bytes.NewReader([]byte(`{"phone":"","message":"x"}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty phone status = %d, want 400", rec.Code)
	}
}
