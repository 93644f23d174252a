package handler

import (
	"net/http"

	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles offers and their lifecycle actions.
type TransactionHandler struct {
	transactions *service.TransactionService
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(transactions *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// CreateTransactionRequest is the body of POST /transactions.
type CreateTransactionRequest struct {
	ListingID string          `json:"listing_id" validate:"required"`
	Type      string          `json:"type" validate:"omitempty,oneof=sale exchange free"`
	Amount    decimal.Decimal `json:"amount" validate:"nonneg_decimal"`
	Notes     string          `json:"notes" validate:"max=1000"`
}

// ReasonRequest is the optional body of reject and cancel, and the required
// body of dispute.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// Create handles POST /api/v1/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	t, err := h.transactions.Create(r.Context(), actor(r), service.CreateTransactionInput{
		ListingID: req.ListingID,
		Type:      req.Type,
		Amount:    req.Amount,
		Notes:     req.Notes,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, t)
}

// Get handles GET /api/v1/transactions/{id}
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.transactions.Get(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, t)
}

// List handles GET /api/v1/transactions?role=buyer|seller|all&status=
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	query := r.URL.Query()
	items, total, err := h.transactions.ListForUser(r.Context(), actor(r), query.Get("role"), query.Get("status"), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Transaction{}
	}
	response.Paginated(w, items, page.Page, page.Limit, total)
}

// Accept handles POST /api/v1/transactions/{id}/accept
func (h *TransactionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.transactions.Accept(r.Context(), actor(r), chi.URLParam(r, "id")))
}

// Reject handles POST /api/v1/transactions/{id}/reject
func (h *TransactionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	reason, err := optionalReason(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.respond(w)(h.transactions.Reject(r.Context(), actor(r), chi.URLParam(r, "id"), reason))
}

// Start handles POST /api/v1/transactions/{id}/start
func (h *TransactionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.transactions.StartProgress(r.Context(), actor(r), chi.URLParam(r, "id")))
}

// Complete handles POST /api/v1/transactions/{id}/complete
func (h *TransactionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.transactions.Complete(r.Context(), actor(r), chi.URLParam(r, "id")))
}

// Cancel handles POST /api/v1/transactions/{id}/cancel
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reason, err := optionalReason(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.respond(w)(h.transactions.Cancel(r.Context(), actor(r), chi.URLParam(r, "id"), reason))
}

// Dispute handles POST /api/v1/transactions/{id}/dispute
func (h *TransactionHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	h.respond(w)(h.transactions.Dispute(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason))
}

func (h *TransactionHandler) respond(w http.ResponseWriter) func(*model.Transaction, error) {
	return func(t *model.Transaction, err error) {
		if err != nil {
			response.Error(w, err)
			return
		}
		response.OK(w, t)
	}
}

// optionalReason reads a ReasonRequest when the request has a body.
func optionalReason(r *http.Request) (string, error) {
	if r.ContentLength == 0 {
		return "", nil
	}
	var req ReasonRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	return req.Reason, nil
}
