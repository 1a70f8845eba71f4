package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Arjunan-lab/ChattingApp/internal/api/middleware"
	"github.com/Arjunan-lab/ChattingApp/internal/metrics"
	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	To      string `json:"to,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
	Content string `json:"content"`
}

// MessageListResponse represents a conversation or room history.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
}

// SendMessage persists a message from the authenticated user, then
// publishes it to connected sessions.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetUserIDFromContext(r.Context())
	if sender == "" {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg := models.Message{
		From:    sender,
		To:      strings.TrimSpace(req.To),
		RoomID:  strings.TrimSpace(req.RoomID),
		Content: req.Content,
	}

	stored, err := h.store.AppendMessage(r.Context(), msg)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrContentTooLong):
			h.Error(w, http.StatusUnprocessableEntity, "content too long (max 4096 bytes)")
		case errors.Is(err, store.ErrValidation):
			h.Error(w, http.StatusBadRequest, "missing recipient or content")
		default:
			h.logger.Error().Err(err).Str("from", sender).Msg("failed to store message")
			h.Error(w, http.StatusInternalServerError, "failed to store message")
		}
		return
	}

	kind := "direct"
	if stored.RoomID != "" {
		kind = "room"
	}
	metrics.MessagesStored.WithLabelValues(kind).Inc()
	metrics.MessagesPublished.WithLabelValues("http").Inc()
	h.router.Publish(*stored)

	h.JSON(w, http.StatusCreated, stored)
}

// GetConversation returns every message between the caller and userId,
// oldest first.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetUserIDFromContext(r.Context())
	if me == "" {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peer := chi.URLParam(r, "userId")
	if peer == "" {
		h.Error(w, http.StatusBadRequest, "user id is required")
		return
	}

	msgs, err := h.store.ListConversation(r.Context(), me, peer)
	if err != nil {
		h.logger.Error().Err(err).Str("user", me).Str("peer", peer).Msg("failed to list conversation")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: msgs})
}

// GetRoomMessages returns a room's history, oldest first.
func (h *Handler) GetRoomMessages(w http.ResponseWriter, r *http.Request) {
	if middleware.GetUserIDFromContext(r.Context()) == "" {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID := chi.URLParam(r, "roomId")
	msgs, err := h.store.ListRoom(r.Context(), roomID)
	if err != nil {
		h.logger.Error().Err(err).Str("room", roomID).Msg("failed to list room")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: msgs})
}
