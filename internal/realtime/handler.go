package realtime

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"consultation_backend/internal/consultations/domain"
	"consultation_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 25 * time.Second

// RoomAuthorizer decides whether a user may watch a consultation.
type RoomAuthorizer interface {
	GetForParticipant(ctx context.Context, id int64, userID string, isExpert bool) (domain.Consultation, error)
}

// Handler serves the SSE streams.
type Handler struct {
	hub       *Hub
	rooms     RoomAuthorizer
	heartbeat time.Duration
}

// NewHandler creates the SSE handler.
func NewHandler(hub *Hub, rooms RoomAuthorizer) *Handler {
	return &Handler{hub: hub, rooms: rooms, heartbeat: heartbeatInterval}
}

// RoomStream streams the events of one consultation room.
func (h *Handler) RoomStream(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, "invalid consultation id", nil)
		return
	}
	if _, err := h.rooms.GetForParticipant(c.Request.Context(), id, identity.UserID(), identity.HasRole(httpkit.RoleExpert)); httpkit.HandleError(c, err) {
		return
	}

	conn := h.hub.Connect(identity.UserID())
	defer h.hub.Disconnect(conn.ID())
	if httpkit.HandleError(c, h.hub.JoinRoom(id, conn.ID())) {
		return
	}

	h.stream(c, conn, gin.H{"connectionId": conn.ID(), "consultationId": id})
}

// UserStream streams the caller's notifications.
func (h *Handler) UserStream(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	conn := h.hub.Connect(identity.UserID())
	defer h.hub.Disconnect(conn.ID())

	h.stream(c, conn, gin.H{"connectionId": conn.ID(), "userId": identity.UserID()})
}

func (h *Handler) stream(c *gin.Context, conn *Connection, hello gin.H) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("connected", hello)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			c.Writer.Flush()
		case ev, ok := <-conn.Events():
			if !ok {
				return
			}
			c.SSEvent(ev.Name, ev)
			c.Writer.Flush()
			if ev.Name == EventRemoved || ev.Name == EventDeleted {
				return
			}
		}
	}
}
