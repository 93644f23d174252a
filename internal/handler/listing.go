package handler

import (
	"net/http"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ListingHandler handles listing and category requests.
type ListingHandler struct {
	listings *service.ListingService
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(listings *service.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// CreateListingRequest is the body of POST /listings.
type CreateListingRequest struct {
	CategoryID        string          `json:"category_id" validate:"required,max=64"`
	Title             string          `json:"title" validate:"required,max=200"`
	Description       string          `json:"description" validate:"max=5000"`
	Price             decimal.Decimal `json:"price" validate:"nonneg_decimal"`
	Condition         string          `json:"condition" validate:"omitempty,oneof=new like_new good fair poor"`
	Location          string          `json:"location" validate:"max=200"`
	TransactionMethod string          `json:"transaction_method" validate:"omitempty,max=200"`
}

// UpdateListingRequest is the body of PUT /listings/{id}. Absent fields are unchanged.
type UpdateListingRequest struct {
	CategoryID        *string          `json:"category_id" validate:"omitempty,max=64"`
	Title             *string          `json:"title" validate:"omitempty,max=200"`
	Description       *string          `json:"description" validate:"omitempty,max=5000"`
	Price             *decimal.Decimal `json:"price"`
	Condition         *string          `json:"condition" validate:"omitempty,oneof=new like_new good fair poor"`
	Location          *string          `json:"location" validate:"omitempty,max=200"`
	TransactionMethod *string          `json:"transaction_method" validate:"omitempty,max=200"`
}

// StatusRequest is the body of PUT /listings/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive deleted"`
}

// Create handles POST /api/v1/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	l, err := h.listings.Create(r.Context(), actor(r), service.ListingInput{
		CategoryID:        req.CategoryID,
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		Condition:         req.Condition,
		Location:          req.Location,
		TransactionMethod: req.TransactionMethod,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, l)
}

// Get handles GET /api/v1/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), actor(r), chi.URLParam(r, "id"), true)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, l)
}

// Update handles PUT /api/v1/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateListingRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	l, err := h.listings.Update(r.Context(), actor(r), chi.URLParam(r, "id"), model.ListingPatch{
		CategoryID:        req.CategoryID,
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		Condition:         req.Condition,
		Location:          req.Location,
		TransactionMethod: req.TransactionMethod,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, l)
}

// SetStatus handles PUT /api/v1/listings/{id}/status
func (h *ListingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	l, err := h.listings.SetStatus(r.Context(), actor(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, l)
}

// Delete handles DELETE /api/v1/listings/{id}. The listing is soft deleted
// unless ?purge=true asks for permanent removal.
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if queryBool(r, "purge") {
		if err := h.listings.Purge(r.Context(), actor(r), id); err != nil {
			response.Error(w, err)
			return
		}
		response.NoContent(w)
		return
	}

	if _, err := h.listings.SetStatus(r.Context(), actor(r), id, model.ListingDeleted); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// Search handles GET /api/v1/listings
func (h *ListingHandler) Search(w http.ResponseWriter, r *http.Request) {
	q, err := listingQuery(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	h.search(w, r, q)
}

// Mine handles GET /api/v1/me/listings
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	q, err := listingQuery(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	q.OwnerID = actor(r)
	h.search(w, r, q)
}

func (h *ListingHandler) search(w http.ResponseWriter, r *http.Request, q model.ListingQuery) {
	items, total, err := h.listings.Search(r.Context(), actor(r), q)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Listing{}
	}
	response.Paginated(w, items, q.Page.Page, q.Page.Limit, total)
}

// Categories handles GET /api/v1/categories
func (h *ListingHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.listings.Categories(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, cats)
}

// listingQuery parses search filters. sort takes a column name, prefixed
// with "-" for descending order.
func listingQuery(r *http.Request) (model.ListingQuery, error) {
	page, err := parsePage(r)
	if err != nil {
		return model.ListingQuery{}, err
	}
	minPrice, err := queryDecimal(r, "min_price")
	if err != nil {
		return model.ListingQuery{}, err
	}
	maxPrice, err := queryDecimal(r, "max_price")
	if err != nil {
		return model.ListingQuery{}, err
	}

	query := r.URL.Query()
	q := model.ListingQuery{
		Status:     query.Get("status"),
		CategoryID: query.Get("category"),
		OwnerID:    query.Get("owner"),
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Text:       strings.TrimSpace(query.Get("q")),
		Page:       page,
	}
	if sort := query.Get("sort"); sort != "" {
		q.SortDesc = strings.HasPrefix(sort, "-")
		q.SortBy = strings.TrimPrefix(sort, "-")
	}
	return q, nil
}
