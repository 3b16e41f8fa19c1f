package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"

	"github.com/mossy-p/emocall/internal/models"
	"github.com/mossy-p/emocall/internal/relay"
)

const inspectTimeout = 2 * time.Second

// Rooms serves read-only occupancy queries against the relay.
type Rooms struct {
	relay      *relay.Relay
	iceServers []webrtc.ICEServer
}

func NewRooms(r *relay.Relay, iceServers []webrtc.ICEServer) *Rooms {
	return &Rooms{relay: r, iceServers: iceServers}
}

// GetRoom returns the participant count of one room. Unknown rooms report
// zero participants rather than 404 since rooms exist only while occupied.
func (h *Rooms) GetRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), inspectTimeout)
	defer cancel()

	info, err := h.relay.Room(ctx, roomID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListRooms returns every live room, largest first.
func (h *Rooms) ListRooms(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), inspectTimeout)
	defer cancel()

	rooms, err := h.relay.Rooms(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if rooms == nil {
		rooms = []models.RoomInfo{}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Participants != rooms[j].Participants {
			return rooms[i].Participants > rooms[j].Participants
		}
		return rooms[i].ID < rooms[j].ID
	})
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// ICEServers tells clients which address-discovery servers to configure.
func (h *Rooms) ICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.iceServers})
}
