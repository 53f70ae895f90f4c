package handler

import (
	"net/http"
	"strconv"

	"consultation_backend/internal/consultations/service"
	"consultation_backend/internal/consultations/transport"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/httpkit"
	"consultation_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid consultation id"
)

// Handler handles HTTP requests for consultations
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new consultations handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the consultation routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/open", httpkit.RequireRole(httpkit.RoleExpert), h.ListOpen)
	rg.GET("/:id", h.GetByID)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/accept", httpkit.RequireRole(httpkit.RoleExpert), h.Accept)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
	rg.POST("/:id/price", httpkit.RequireRole(httpkit.RoleExpert), h.SetPrice)
	rg.POST("/:id/price/accept", h.AcceptPrice)
	rg.POST("/:id/price/reject", h.RejectPrice)
	rg.PATCH("/:id/category", h.UpdateCategory)
}

func (h *Handler) Create(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.CreateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(req)) {
		return
	}

	id, err := h.svc.Create(c.Request.Context(), service.CreateParams{
		ClientID:      identity.UserID(),
		Title:         req.Title,
		Description:   req.Description,
		RequestedFree: req.IsFree,
		ExpertID:      req.ExpertID,
		IsOpenRequest: req.IsOpenRequest,
		IsPublicable:  req.IsPublicable,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	created, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToResponse(created))
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var query transport.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(query)) {
		return
	}
	statuses, err := query.Statuses()
	if httpkit.HandleError(c, err) {
		return
	}

	ctx := c.Request.Context()
	if query.As == httpkit.RoleExpert {
		if !identity.HasRole(httpkit.RoleExpert) {
			httpkit.HandleError(c, apperr.Forbidden("expert role required"))
			return
		}
		items, err := h.svc.ListForExpert(ctx, identity.UserID(), statuses, query.Limit, query.Offset)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, transport.ToListResponse(items, query.Limit, query.Offset))
		return
	}

	items, err := h.svc.ListForClient(ctx, identity.UserID(), statuses, query.Limit, query.Offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToListResponse(items, query.Limit, query.Offset))
}

func (h *Handler) ListOpen(c *gin.Context) {
	var query transport.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if httpkit.HandleError(c, h.val.Struct(query)) {
		return
	}

	items, err := h.svc.ListOpenRequests(c.Request.Context(), query.Limit, query.Offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToListResponse(items, query.Limit, query.Offset))
}

func (h *Handler) GetByID(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetForParticipant(c.Request.Context(), id, identity.UserID(), identity.HasRole(httpkit.RoleExpert))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToResponse(result))
}

func (h *Handler) Delete(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "deleted"})
}

func (h *Handler) Accept(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		return h.svc.Accept(c.Request.Context(), id, userID)
	})
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		return h.svc.CompleteAs(c.Request.Context(), id, userID)
	})
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		return h.svc.CancelAs(c.Request.Context(), id, userID)
	})
}

func (h *Handler) SetPrice(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		var req transport.SetPriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return apperr.Validation(msgInvalidRequest)
		}
		if err := h.val.Struct(req); err != nil {
			return err
		}
		cents, err := transport.ParseCents(req.Amount.String())
		if err != nil {
			return err
		}
		return h.svc.SetPrice(c.Request.Context(), id, userID, cents)
	})
}

func (h *Handler) AcceptPrice(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		return h.svc.AcceptPrice(c.Request.Context(), id, userID)
	})
}

func (h *Handler) RejectPrice(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		return h.svc.RejectPrice(c.Request.Context(), id, userID)
	})
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	h.transition(c, func(c *gin.Context, id int64, userID string) error {
		var req transport.UpdateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return apperr.Validation(msgInvalidRequest)
		}
		if err := h.val.Struct(req); err != nil {
			return err
		}
		return h.svc.UpdateCategory(c.Request.Context(), id, userID, req.Category)
	})
}

// transition runs one lifecycle operation for the caller and answers with
// the committed record.
func (h *Handler) transition(c *gin.Context, run func(c *gin.Context, id int64, userID string) error) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := run(c, id, identity.UserID()); httpkit.HandleError(c, err) {
		return
	}

	updated, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToResponse(updated))
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return 0, false
	}
	return id, true
}
