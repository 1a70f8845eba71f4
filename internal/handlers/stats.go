package handlers

import (
	"net/http"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int      `json:"total_users"`
	UsersOnline   int      `json:"users_online"`
	Sessions      int      `json:"sessions"`
	TotalMessages int64    `json:"total_messages"`
	Online        []string `json:"online"`
}

// Stats reports roster size, live presence and message volume.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.store.ListUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	total, err := h.store.CountMessages(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count messages")
		return
	}

	online := h.presence.Online()
	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    len(users),
		UsersOnline:   len(online),
		Sessions:      h.hub.SessionCount(),
		TotalMessages: total,
		Online:        online,
	})
}
