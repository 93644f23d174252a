package handler

import (
	"net/http"

	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// NotificationHandler handles the caller's notification inbox.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/v1/notifications?unread=true
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	items, total, err := h.notifications.List(r.Context(), actor(r), queryBool(r, "unread"), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Notification{}
	}
	response.Paginated(w, items, page.Page, page.Limit, total)
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"count": n})
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "read"})
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/v1/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
