package users

import (
	"context"
	"net/http"

	"consultation_backend/platform/apperr"
	"consultation_backend/platform/httpkit"
	"consultation_backend/platform/sanitize"
	"consultation_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// ProfileStore is the part of the directory the profile endpoints use.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (Profile, error)
	UpsertProfile(ctx context.Context, userID, displayName, email string) (Profile, error)
}

// UpdateProfileRequest is the request body for saving the caller's profile
type UpdateProfileRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=254"`
}

// Handler serves the caller's directory entry.
type Handler struct {
	store ProfileStore
	val   *validator.Validator
}

// NewHandler creates the profile handler.
func NewHandler(store ProfileStore, val *validator.Validator) *Handler {
	return &Handler{store: store, val: val}
}

// RegisterRoutes registers the profile routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.GetMe)
	rg.PUT("/me", h.UpdateMe)
}

func (h *Handler) GetMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	profile, err := h.store.Get(c.Request.Context(), identity.UserID())
	if apperr.Is(err, apperr.KindNotFound) {
		httpkit.OK(c, Profile{ID: identity.UserID()})
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, profile)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	req.DisplayName = sanitize.Line(req.DisplayName)
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	profile, err := h.store.UpsertProfile(c.Request.Context(), identity.UserID(), req.DisplayName, req.Email)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, profile)
}
