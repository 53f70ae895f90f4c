// Package consultations provides the consultation engagement domain module.
package consultations

import (
	"consultation_backend/internal/consultations/handler"
	"consultation_backend/internal/consultations/repository"
	"consultation_backend/internal/consultations/service"
	"consultation_backend/internal/events"
	apphttp "consultation_backend/internal/http"
	"consultation_backend/platform/logger"
	"consultation_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dependencies are the collaborators the lifecycle engine calls after a
// commit. Any of them can be nil.
type Dependencies struct {
	Notifier   service.Notifier
	Directory  service.Directory
	Classifier service.Classifier
	Policy     service.QuotaPolicy
}

// Module represents the consultations domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new consultations module with all dependencies wired
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, deps Dependencies, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, deps.Notifier, deps.Directory, deps.Classifier, eventBus, log)
	if deps.Policy != "" {
		svc.SetQuotaPolicy(deps.Policy)
	}

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "consultations"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/consultations"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
