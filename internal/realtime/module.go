package realtime

import (
	"consultation_backend/internal/events"
	apphttp "consultation_backend/internal/http"
	"consultation_backend/platform/logger"
)

// Module mounts the SSE streams and keeps the hub subscribed to the bus.
type Module struct {
	hub     *Hub
	handler *Handler
}

// NewModule creates the realtime module and subscribes the hub to eventBus.
func NewModule(hub *Hub, rooms RoomAuthorizer, eventBus events.Bus, log *logger.Logger) *Module {
	hub.RegisterHandlers(eventBus)
	log.Info("realtime hub subscribed to consultation events")
	return &Module{hub: hub, handler: NewHandler(hub, rooms)}
}

// Name returns the module name for logging
func (m *Module) Name() string { return "realtime" }

// Hub returns the announcer.
func (m *Module) Hub() *Hub { return m.hub }

// RegisterRoutes registers the stream routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/consultations/:id/events", m.handler.RoomStream)
	ctx.Protected.GET("/notifications/stream", m.handler.UserStream)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
