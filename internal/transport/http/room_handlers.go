package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireroom-server/internal/core"
)

// RoomHandlers exposes the live room directory as JSON.
type RoomHandlers struct {
	hub Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListRoomsResponse represents the list rooms response body.
type ListRoomsResponse struct {
	Rooms []core.RoomInfo `json:"rooms"`
}

// ListRooms returns every visible room.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.hub.Rooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "rooms unavailable"})
		return
	}

	c.JSON(http.StatusOK, ListRoomsResponse{Rooms: rooms})
}

// GetRoom returns one visible room. Room ids may contain slashes.
// GET /api/rooms/*id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := strings.TrimPrefix(c.Param("id"), "/")
	if id == "" {
		h.ListRooms(c)
		return
	}

	rooms, err := h.hub.Rooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Str("room", id).Msg("failed to get room")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "rooms unavailable"})
		return
	}

	for _, r := range rooms {
		if r.ID == id {
			c.JSON(http.StatusOK, r)
			return
		}
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
}
