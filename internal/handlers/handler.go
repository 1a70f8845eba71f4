package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Arjunan-lab/ChattingApp/internal/models"
	"github.com/Arjunan-lab/ChattingApp/internal/presence"
	"github.com/Arjunan-lab/ChattingApp/internal/realtime"
	"github.com/Arjunan-lab/ChattingApp/internal/store"
)

// Publisher hands a stored message to live delivery.
type Publisher interface {
	Publish(msg models.Message) int
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.DataStore
	redis    *store.RedisStore
	presence *presence.Table
	hub      *realtime.Hub
	router   Publisher
	logger   zerolog.Logger
}

// Deps groups what NewHandler needs. Redis is optional.
type Deps struct {
	Store    store.DataStore
	Redis    *store.RedisStore
	Presence *presence.Table
	Hub      *realtime.Hub
	Router   Publisher
	Logger   zerolog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		redis:    d.Redis,
		presence: d.Presence,
		hub:      d.Hub,
		router:   d.Router,
		logger:   d.Logger,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
