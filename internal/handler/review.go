package handler

import (
	"net/http"

	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// ReviewHandler handles seller reviews.
type ReviewHandler struct {
	reviews *service.ReviewService
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// CreateReviewRequest is the body of POST /transactions/{id}/reviews.
// Rating bounds are checked by the service so the failure carries its reason.
type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Create handles POST /api/v1/transactions/{id}/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	rv, err := h.reviews.Create(r.Context(), actor(r), chi.URLParam(r, "id"), req.Rating, req.Comment)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, rv)
}

// Eligibility handles GET /api/v1/transactions/{id}/reviews/eligibility
func (h *ReviewHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	ok, reason, err := h.reviews.CanReview(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"can_review": ok,
		"reason":     reason,
	})
}

// ListForTransaction handles GET /api/v1/transactions/{id}/reviews
func (h *ReviewHandler) ListForTransaction(w http.ResponseWriter, r *http.Request) {
	items, err := h.reviews.ListForTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Review{}
	}
	response.OK(w, items)
}

// ListForUser handles GET /api/v1/users/{id}/reviews
func (h *ReviewHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	items, total, err := h.reviews.ListForUser(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Review{}
	}
	response.Paginated(w, items, page.Page, page.Limit, total)
}

// Stats handles GET /api/v1/users/{id}/reviews/stats
func (h *ReviewHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reviews.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}
