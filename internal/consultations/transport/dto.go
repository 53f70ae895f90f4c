package transport

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"consultation_backend/internal/consultations/domain"
	"consultation_backend/platform/apperr"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// CreateConsultationRequest is the request body for creating a consultation
type CreateConsultationRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"required,max=5000"`
	IsFree        bool   `json:"isFree"`
	ExpertID      string `json:"expertId" validate:"omitempty,max=128"`
	IsOpenRequest bool   `json:"isOpenRequest"`
	IsPublicable  bool   `json:"isPublicable"`
}

// SetPriceRequest carries a decimal amount such as 49.95.
type SetPriceRequest struct {
	Amount json.Number `json:"amount" validate:"required"`
}

// UpdateCategoryRequest is the request body for changing the category
type UpdateCategoryRequest struct {
	Category string `json:"category" validate:"required,consultation_category"`
}

// ListQuery are the query parameters of the list endpoints
type ListQuery struct {
	As     string `form:"as" validate:"omitempty,oneof=client expert"`
	Status string `form:"status"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// Statuses parses the comma separated status filter.
func (q ListQuery) Statuses() ([]domain.Status, error) {
	if strings.TrimSpace(q.Status) == "" {
		return nil, nil
	}
	parts := strings.Split(q.Status, ",")
	out := make([]domain.Status, 0, len(parts))
	for _, part := range parts {
		s, err := domain.ParseStatus(part)
		if err != nil {
			return nil, apperr.Validation("unknown status filter").
				WithDetails(map[string]interface{}{"status": strings.TrimSpace(part), "allowed": domain.Statuses()})
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseCents converts a decimal amount with at most two fraction digits to
// integer cents.
func ParseCents(amount string) (int64, error) {
	raw := strings.TrimSpace(amount)
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return 0, apperr.Validation("amount must be a positive decimal")
	}
	if len(frac) > 2 {
		return 0, apperr.Validation("amount must have at most two decimals")
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, apperr.Validation("amount must be a positive decimal")
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, apperr.Validation("amount must be a positive decimal")
	}
	if units > (1<<63-1-cents)/100 {
		return 0, apperr.Validation("amount is too large")
	}
	return units*100 + cents, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ── Responses ─────────────────────────────────────────────────────────────────

// ConsultationResponse is the API representation of a consultation
type ConsultationResponse struct {
	ID            int64      `json:"id"`
	ClientID      string     `json:"clientId"`
	ExpertID      *string    `json:"expertId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	IsFree        bool       `json:"isFree"`
	Price         *string    `json:"price"`
	PriceCents    *int64     `json:"priceCents"`
	IsPaid        bool       `json:"isPaid"`
	IsOpenRequest bool       `json:"isOpenRequest"`
	IsPublicable  bool       `json:"isPublicable"`
	Status        string     `json:"status"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ConsultationListResponse wraps a page of consultations
type ConsultationListResponse struct {
	Items  []ConsultationResponse `json:"items"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// ToResponse maps a domain record to its API shape.
func ToResponse(c domain.Consultation) ConsultationResponse {
	resp := ConsultationResponse{
		ID:            c.ID,
		ClientID:      c.ClientID,
		ExpertID:      c.ExpertID,
		Title:         c.Title,
		Description:   c.Description,
		Category:      c.Category,
		IsFree:        c.IsFree,
		PriceCents:    c.PriceCents,
		IsPaid:        c.IsPaid,
		IsOpenRequest: c.IsOpenRequest,
		IsPublicable:  c.IsPublicable,
		Status:        string(c.Status),
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		CompletedAt:   c.CompletedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.PriceCents != nil {
		price := domain.FormatCents(*c.PriceCents)
		resp.Price = &price
	}
	return resp
}

// ToListResponse maps a page of domain records.
func ToListResponse(items []domain.Consultation, limit, offset int) ConsultationListResponse {
	out := make([]ConsultationResponse, 0, len(items))
	for _, c := range items {
		out = append(out, ToResponse(c))
	}
	return ConsultationListResponse{Items: out, Limit: limit, Offset: offset}
}
