package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/leads"
	"github.com/castrolabs/osbot/internal/notifications"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// AdminHandler serves the JWT-guarded operator endpoints: lead and
// notification listings plus a manual WhatsApp send.
type AdminHandler struct {
	leads         leads.Repository
	notifications notifications.Repository
	gateway       whatsapp.Gateway
	logger        *logging.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(leadRepo leads.Repository, notifRepo notifications.Repository, gateway whatsapp.Gateway, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{
		leads:         leadRepo,
		notifications: notifRepo,
		gateway:       gateway,
		logger:        logger,
	}
}

// AdminLeadsResponse wraps a page of leads.
type AdminLeadsResponse struct {
	Leads []*leads.Lead `json:"leads"`
	Count int           `json:"count"`
}

// ListLeads returns captured leads, newest first.
// GET /admin/leads
func (h *AdminHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	list, err := h.leads.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("lead list failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if list == nil {
		list = []*leads.Lead{}
	}
	writeJSON(w, http.StatusOK, AdminLeadsResponse{Leads: list, Count: len(list)})
}

// AdminNotificationsResponse wraps a page of scheduled notifications.
type AdminNotificationsResponse struct {
	Notifications []*notifications.Notification `json:"notifications"`
	Count         int                           `json:"count"`
}

// ListNotifications returns scheduled notifications across all users,
// optionally filtered by status.
// GET /admin/notifications
func (h *AdminHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !notifications.ValidStatus(status) {
		writeAPIError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	list, err := h.notifications.ListByUser(r.Context(), uuid.Nil, status, limit)
	if err != nil {
		h.logger.Error("notification list failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if list == nil {
		list = []*notifications.Notification{}
	}
	writeJSON(w, http.StatusOK, AdminNotificationsResponse{Notifications: list, Count: len(list)})
}

// AdminSendRequest is the POST /admin/messages body.
type AdminSendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// AdminSendResponse confirms a manual send.
type AdminSendResponse struct {
	Sent  bool   `json:"sent"`
	Phone string `json:"phone"`
}

// SendMessage delivers a one-off WhatsApp message typed by an operator.
// POST /admin/messages
func (h *AdminHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req AdminSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	phone := whatsapp.NormalizePhone(req.Phone)
	if phone == "" {
		writeAPIError(w, http.StatusBadRequest, "phone is required")
		return
	}
	if req.Message == "" {
		writeAPIError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := h.gateway.SendText(r.Context(), phone, req.Message); err != nil {
		h.logger.Error("manual send failed", "error", err, "phone", phone)
		writeAPIError(w, http.StatusBadGateway, "failed to send message")
		return
	}
	h.logger.Info("manual message sent", "phone", phone)
	writeJSON(w, http.StatusOK, AdminSendResponse{Sent: true, Phone: phone})
}
