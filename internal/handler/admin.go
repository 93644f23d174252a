package handler

import (
	"net/http"
	"runtime"
	"time"

	"campustrade-api/internal/model"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// AdminHandler handles the administrator console.
type AdminHandler struct {
	store        repository.Store
	transactions *service.TransactionService
	hub          *notify.Hub
	async        *notify.AsyncPublisher
	startTime    time.Time
}

// NewAdminHandler creates a new admin handler. hub and async may be nil.
func NewAdminHandler(
	store repository.Store,
	transactions *service.TransactionService,
	hub *notify.Hub,
	async *notify.AsyncPublisher,
) *AdminHandler {
	return &AdminHandler{
		store:        store,
		transactions: transactions,
		hub:          hub,
		async:        async,
		startTime:    time.Now(),
	}
}

// ResolveRequest is the body of POST /admin/disputes/{id}/resolve.
type ResolveRequest struct {
	Action     string `json:"action" validate:"required,oneof=cancel complete"`
	Resolution string `json:"resolution" validate:"max=1000"`
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["server_time"] = time.Now().UTC().Format(time.RFC3339)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":   float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":     float64(memStats.Sys) / 1024 / 1024,
		"num_gc":     memStats.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	dbStats, err := h.store.Stats(ctx)
	if err != nil {
		stats["database"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		dbStats["status"] = "connected"
		stats["database"] = dbStats
	}

	if byStatus, err := h.store.Listings().CountByStatus(ctx); err == nil {
		stats["listings_by_status"] = byStatus
	}
	if byStatus, err := h.store.Transactions().CountByStatus(ctx); err == nil {
		stats["transactions_by_status"] = byStatus
	}

	if h.hub != nil {
		users, sessions := h.hub.Online()
		realtime := map[string]interface{}{
			"online_users": users,
			"sessions":     sessions,
		}
		if h.async != nil {
			realtime["dropped_events"] = h.async.Dropped()
		}
		stats["realtime"] = realtime
	}

	response.OK(w, stats)
}

// Disputes handles GET /api/v1/admin/disputes
func (h *AdminHandler) Disputes(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	items, total, err := h.transactions.ListDisputed(r.Context(), actor(r), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Transaction{}
	}
	response.Paginated(w, items, page.Page, page.Limit, total)
}

// Resolve handles POST /api/v1/admin/disputes/{id}/resolve
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	t, err := h.transactions.ResolveDispute(r.Context(), actor(r), chi.URLParam(r, "id"), req.Resolution, req.Action)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, t)
}
