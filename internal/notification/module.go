// Package notification stores in-app notifications for consultation
// participants and hands their e-mail copies to the background worker.
package notification

import (
	"consultation_backend/internal/events"
	apphttp "consultation_backend/internal/http"
	notifhandler "consultation_backend/internal/notification/handler"
	"consultation_backend/internal/notification/inapp"
	"consultation_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the in-app notification store, service and HTTP handler.
type Module struct {
	inAppService *inapp.Service
	inAppHandler *notifhandler.HTTPHandler
	log          *logger.Logger
}

// New creates the notification module.
func New(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger) *Module {
	svc := inapp.NewService(inapp.NewRepository(pool), eventBus, log)
	return &Module{
		inAppService: svc,
		inAppHandler: notifhandler.NewHTTPHandler(svc),
		log:          log,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string { return "notification" }

// RegisterRoutes registers notification API routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if m.inAppHandler == nil {
		return
	}

	notifications := ctx.Protected.Group("/notifications")
	m.inAppHandler.RegisterRoutes(notifications)
}

// InAppService exposes the dispatcher the lifecycle engine notifies through.
func (m *Module) InAppService() *inapp.Service { return m.inAppService }

// SetMailQueue enables e-mail copies of new notifications.
func (m *Module) SetMailQueue(q inapp.MailQueue) {
	m.inAppService.SetMailQueue(q)
	m.log.Info("notification e-mail delivery enabled")
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
