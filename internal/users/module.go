package users

import (
	apphttp "consultation_backend/internal/http"
	"consultation_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module exposes the directory to other modules and the profile API.
type Module struct {
	repo    *Repository
	handler *Handler
}

// NewModule creates the users module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := NewRepository(pool)
	return &Module{repo: repo, handler: NewHandler(repo, val)}
}

// Name returns the module name for logging
func (m *Module) Name() string { return "users" }

// Directory returns the user directory.
func (m *Module) Directory() *Repository { return m.repo }

// RegisterRoutes registers the profile routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/users"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
