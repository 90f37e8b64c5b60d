package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/castrolabs/osbot/internal/chat"
	"github.com/castrolabs/osbot/internal/orders"
	"github.com/castrolabs/osbot/internal/whatsapp"
	"github.com/castrolabs/osbot/pkg/logging"
)

// OrdersAPIHandler exposes service orders over REST for ops tooling.
// The engine tools remain the primary write path; this surface is not
// scoped to a single owner.
type OrdersAPIHandler struct {
	repo   orders.Repository
	store  chat.Store
	logger *logging.Logger
}

// NewOrdersAPIHandler creates the REST handler for service orders.
func NewOrdersAPIHandler(repo orders.Repository, store chat.Store, logger *logging.Logger) *OrdersAPIHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OrdersAPIHandler{repo: repo, store: store, logger: logger}
}

// OrdersListResponse wraps a page of orders.
type OrdersListResponse struct {
	Orders []*orders.ServiceOrder `json:"orders"`
	Count  int                    `json:"count"`
}

// List returns orders filtered by status with limit/offset paging.
// GET /api/os
func (h *OrdersAPIHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !orders.ValidStatus(status) {
		writeAPIError(w, http.StatusBadRequest, "invalid status")
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	list, err := h.repo.List(r.Context(), orders.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("order list failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if list == nil {
		list = []*orders.ServiceOrder{}
	}
	writeJSON(w, http.StatusOK, OrdersListResponse{Orders: list, Count: len(list)})
}

// Get returns one order by UUID or by order number.
// GET /api/os/{id}
func (h *OrdersAPIHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.lookup(r, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeAPIError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("order lookup failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CreateOrderRequest is the POST /api/os body. UserPhone attributes the
// order to a WhatsApp account, creating it on first sight.
type CreateOrderRequest struct {
	UserPhone     string  `json:"user_phone"`
	ClientName    string  `json:"client_name"`
	ClientPhone   string  `json:"client_phone"`
	ClientEmail   string  `json:"client_email"`
	ClientAddress string  `json:"client_address"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Priority      string  `json:"priority"`
	TotalAmount   float64 `json:"total_amount"`
	ExpectedAt    string  `json:"expected_at"`
	Notes         string  `json:"notes"`
}

// Create opens a new order. Requires client_name and total_amount.
// POST /api/os
func (h *OrdersAPIHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ClientName == "" {
		writeAPIError(w, http.StatusBadRequest, "client_name is required")
		return
	}
	if req.TotalAmount <= 0 {
		writeAPIError(w, http.StatusBadRequest, "total_amount must be positive")
		return
	}
	phone := whatsapp.NormalizePhone(req.UserPhone)
	if phone == "" {
		writeAPIError(w, http.StatusBadRequest, "user_phone is required")
		return
	}

	user, err := h.store.ResolveUser(r.Context(), phone, "")
	if err != nil {
		h.logger.Error("user resolve failed", "error", err, "phone", phone)
		writeAPIError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	in := &orders.CreateOrderInput{
		ClientName:    req.ClientName,
		ClientPhone:   whatsapp.NormalizePhone(req.ClientPhone),
		ClientEmail:   req.ClientEmail,
		ClientAddress: req.ClientAddress,
		Title:         req.Title,
		Description:   req.Description,
		Category:      req.Category,
		Priority:      req.Priority,
		TotalAmount:   req.TotalAmount,
		Notes:         req.Notes,
	}
	if req.ExpectedAt != "" {
		at, err := time.Parse(time.RFC3339, req.ExpectedAt)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "expected_at must be RFC3339")
			return
		}
		in.ExpectedAt = &at
	}
	if err := in.Validate(); err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.repo.Create(r.Context(), user.ID, in)
	if err != nil {
		h.logger.Error("order create failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to create order")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// UpdateStatusRequest is the PATCH /api/os/{id}/status body.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves an order to a new status.
// PATCH /api/os/{id}/status
func (h *OrdersAPIHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !orders.ValidStatus(req.Status) {
		writeAPIError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.lookup(r, chi.URLParam(r, "id"))
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeAPIError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("order lookup failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	updated, err := h.repo.UpdateStatus(r.Context(), order.UserID, order.OrderNumber, req.Status)
	if err != nil {
		h.logger.Error("status update failed", "error", err, "order", order.OrderNumber)
		writeAPIError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// lookup accepts either the row UUID or the human order number.
func (h *OrdersAPIHandler) lookup(r *http.Request, id string) (*orders.ServiceOrder, error) {
	if id == "" {
		return nil, orders.ErrOrderNotFound
	}
	if rowID, err := uuid.Parse(id); err == nil {
		return h.repo.GetByID(r.Context(), rowID)
	}
	return h.repo.GetByNumber(r.Context(), uuid.Nil, id)
}

// Balance sums non-cancelled order totals for the current day or month.
// GET /api/balance
func (h *OrdersAPIHandler) Balance(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "day"
	}
	bal, err := h.repo.Balance(r.Context(), uuid.Nil, period, time.Now())
	if errors.Is(err, orders.ErrInvalidPeriod) {
		writeAPIError(w, http.StatusBadRequest, "period must be day or month")
		return
	}
	if err != nil {
		h.logger.Error("balance failed", "error", err)
		writeAPIError(w, http.StatusInternalServerError, "failed to compute balance")
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}
