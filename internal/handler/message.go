package handler

import (
	"net/http"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/internal/service"
	"campustrade-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// MessageHandler handles direct messages between users.
type MessageHandler struct {
	messages *service.MessageService
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required"`
	Content    string  `json:"content" validate:"max=4000"`
	ListingID  *string `json:"listing_id" validate:"omitempty"`
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if req.ListingID != nil && strings.TrimSpace(*req.ListingID) == "" {
		req.ListingID = nil
	}

	m, err := h.messages.Send(r.Context(), actor(r), req.ReceiverID, req.Content, req.ListingID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, m)
}

// Conversations handles GET /api/v1/messages
func (h *MessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.messages.Conversations(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	if convs == nil {
		convs = []*model.Conversation{}
	}
	response.OK(w, convs)
}

// Conversation handles GET /api/v1/messages/with/{user_id}
func (h *MessageHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	items, total, err := h.messages.Conversation(r.Context(), actor(r), chi.URLParam(r, "user_id"), page)
	if err != nil {
		response.Error(w, err)
		return
	}
	if items == nil {
		items = []*model.Message{}
	}
	response.Paginated(w, items, page.Page, page.Limit, total)
}

// MarkConversationRead handles POST /api/v1/messages/with/{user_id}/read
func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.messages.MarkConversationRead(r.Context(), actor(r), chi.URLParam(r, "user_id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"updated": n})
}

// MarkRead handles POST /api/v1/messages/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.MarkRead(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "read"})
}

// UnreadCount handles GET /api/v1/messages/unread-count
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.messages.UnreadCount(r.Context(), actor(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]int64{"count": n})
}

// Delete handles DELETE /api/v1/messages/{id}
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.messages.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
