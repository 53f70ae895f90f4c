// Package realtime announces consultation events to connected clients. Each
// consultation has a room; every user also has a private stream for
// notifications. Delivery is best-effort: each connection has a bounded
// buffer and events that do not fit are dropped.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"consultation_backend/internal/metrics"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/logger"

	"github.com/google/uuid"
)

// Room membership events.
const (
	EventJoin         = "join"
	EventLeave        = "leave"
	EventMessage      = "message"
	EventNotification = "notification"
)

// EventRemoved is sent to a connection that lost access to the room.
const EventRemoved = "removed"

// EventDeleted is the last event of a room whose consultation was deleted.
const EventDeleted = "deleted"

const defaultBufferSize = 32

// Event is one frame handed to a connection.
type Event struct {
	Name           string          `json:"event"`
	ConsultationID int64           `json:"consultationId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// Connection is one open client stream.
type Connection struct {
	id     string
	userID string
	events chan Event
	rooms  map[int64]struct{}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// UserID returns the user the connection belongs to.
func (c *Connection) UserID() string { return c.userID }

// Events is closed when the connection is disconnected.
func (c *Connection) Events() <-chan Event { return c.events }

// Hub tracks connections, rooms and user streams.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*Connection
	rooms      map[int64]map[string]*Connection
	users      map[string]map[string]*Connection
	bufferSize int
	instanceID string
	relay      Relay
	stopRelay  func()
	log        *logger.Logger
}

// NewHub creates a hub whose connections buffer up to bufferSize events.
func NewHub(bufferSize int, log *logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		conns:      make(map[string]*Connection),
		rooms:      make(map[int64]map[string]*Connection),
		users:      make(map[string]map[string]*Connection),
		bufferSize: bufferSize,
		instanceID: uuid.NewString(),
		log:        log,
	}
}

// Connect opens a connection for userID.
func (h *Hub) Connect(userID string) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		userID: userID,
		events: make(chan Event, h.bufferSize),
		rooms:  make(map[int64]struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]*Connection)
	}
	h.users[userID][c.id] = c
	h.mu.Unlock()

	metrics.RealtimeConnectionOpened()
	return c
}

// Disconnect closes the connection and leaves every room it joined.
func (h *Hub) Disconnect(connectionID string) {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	left := make([]int64, 0, len(c.rooms))
	for room := range c.rooms {
		h.removeFromRoomLocked(room, c)
		left = append(left, room)
	}
	delete(h.conns, connectionID)
	if conns := h.users[c.userID]; conns != nil {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	}
	close(c.events)
	h.mu.Unlock()

	metrics.RealtimeConnectionClosed()
	for _, room := range left {
		h.announceMembership(room, EventLeave, c)
	}
}

// JoinRoom adds the connection to the consultation's room.
func (h *Hub) JoinRoom(consultationID int64, connectionID string) error {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return apperr.NotFound("connection not found")
	}
	if _, joined := c.rooms[consultationID]; joined {
		h.mu.Unlock()
		return nil
	}
	if h.rooms[consultationID] == nil {
		h.rooms[consultationID] = make(map[string]*Connection)
	}
	h.rooms[consultationID][connectionID] = c
	c.rooms[consultationID] = struct{}{}
	h.mu.Unlock()

	h.announceMembership(consultationID, EventJoin, c)
	return nil
}

// LeaveRoom removes the connection from the consultation's room.
func (h *Hub) LeaveRoom(consultationID int64, connectionID string) {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, joined := c.rooms[consultationID]; !joined {
		h.mu.Unlock()
		return
	}
	h.removeFromRoomLocked(consultationID, c)
	h.mu.Unlock()

	h.announceMembership(consultationID, EventLeave, c)
}

// RoomSize returns the number of local connections in the room.
func (h *Hub) RoomSize(consultationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[consultationID])
}

// Broadcast sends eventName with payload to every member of the room, on
// this instance and, with a relay attached, on every other instance.
func (h *Hub) Broadcast(ctx context.Context, consultationID int64, eventName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "realtime payload is not serializable", err)
	}
	ev := Event{Name: eventName, ConsultationID: consultationID, Data: data}
	h.deliverRoom(consultationID, ev)
	return h.relayOut(ctx, Envelope{Origin: h.instanceID, Room: consultationID, Event: ev})
}

// BroadcastToMembers first removes every room connection whose user is not
// one of members, then broadcasts to the rest. Other instances apply the
// same restriction to their own connections.
func (h *Hub) BroadcastToMembers(ctx context.Context, consultationID int64, eventName string, payload interface{}, members []string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "realtime payload is not serializable", err)
	}
	ev := Event{Name: eventName, ConsultationID: consultationID, Data: data}
	h.restrictRoom(consultationID, members)
	h.deliverRoom(consultationID, ev)
	return h.relayOut(ctx, Envelope{Origin: h.instanceID, Room: consultationID, Members: members, Event: ev})
}

// CloseRoom sends eventName to the room and then empties it.
func (h *Hub) CloseRoom(ctx context.Context, consultationID int64, eventName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "realtime payload is not serializable", err)
	}
	ev := Event{Name: eventName, ConsultationID: consultationID, Data: data}
	h.deliverRoom(consultationID, ev)
	h.restrictRoom(consultationID, nil)
	return h.relayOut(ctx, Envelope{Origin: h.instanceID, Room: consultationID, Close: true, Event: ev})
}

// NotifyUser sends eventName to every stream of userID.
func (h *Hub) NotifyUser(ctx context.Context, userID, eventName string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "realtime payload is not serializable", err)
	}
	ev := Event{Name: eventName, Data: data}
	h.deliverUser(userID, ev)
	return h.relayOut(ctx, Envelope{Origin: h.instanceID, UserID: userID, Event: ev})
}

// Close disconnects every connection and detaches the relay.
func (h *Hub) Close() {
	h.mu.Lock()
	stop := h.stopRelay
	h.stopRelay = nil
	h.relay = nil
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, id := range ids {
		h.Disconnect(id)
	}
}

func (h *Hub) removeFromRoomLocked(room int64, c *Connection) {
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// restrictRoom removes the room connections whose user is not in members and
// tells each of them with EventRemoved. A nil members list empties the room.
func (h *Hub) restrictRoom(room int64, members []string) {
	keep := make(map[string]struct{}, len(members))
	for _, m := range members {
		keep[m] = struct{}{}
	}
	removedEv := Event{Name: EventRemoved, ConsultationID: room}

	h.mu.Lock()
	var removed []*Connection
	for _, c := range h.rooms[room] {
		if _, ok := keep[c.userID]; ok {
			continue
		}
		removed = append(removed, c)
	}
	for _, c := range removed {
		h.removeFromRoomLocked(room, c)
		h.send(c, removedEv)
	}
	h.mu.Unlock()

	for _, c := range removed {
		h.announceMembership(room, EventLeave, c)
	}
}

func (h *Hub) announceMembership(room int64, name string, c *Connection) {
	data, _ := json.Marshal(map[string]string{"userId": c.userID, "connectionId": c.id})
	h.deliverRoom(room, Event{Name: name, ConsultationID: room, Data: data})
}

// deliverRoom and deliverUser hold the read lock while sending so that
// Disconnect cannot close a channel mid-send. Sends never block.
func (h *Hub) deliverRoom(room int64, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		h.send(c, ev)
	}
}

func (h *Hub) deliverUser(userID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.users[userID] {
		h.send(c, ev)
	}
}

func (h *Hub) send(c *Connection, ev Event) {
	select {
	case c.events <- ev:
		metrics.RecordRealtimeDelivery(true)
	default:
		metrics.RecordRealtimeDelivery(false)
		h.log.Warn("realtime buffer full, event dropped", "connection_id", c.id, "user_id", c.userID, "event", ev.Name)
	}
}
