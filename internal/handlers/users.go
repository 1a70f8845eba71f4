package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// UserListResponse represents the roster.
type UserListResponse struct {
	Users []UserInfo `json:"users"`
	Total int        `json:"total"`
}

// UserInfo is the public view of a user. Online reflects live sessions.
type UserInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Online   bool   `json:"online"`
	JoinedAt string `json:"joinedAt"`
}

// ListUsers returns the roster sorted by name.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}

	out := make([]UserInfo, len(users))
	for i, u := range users {
		out[i] = UserInfo{
			ID:       u.ID,
			Name:     u.Name,
			Avatar:   u.Avatar,
			Online:   h.presence.IsOnline(u.ID),
			JoinedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	h.JSON(w, http.StatusOK, UserListResponse{Users: out, Total: len(out)})
}

// GetUser handles single user lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if u == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserInfo{
		ID:       u.ID,
		Name:     u.Name,
		Avatar:   u.Avatar,
		Online:   h.presence.IsOnline(u.ID),
		JoinedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}
