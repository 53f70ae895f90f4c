package domain

import (
	"strings"
	"time"

	"consultation_backend/platform/apperr"
	"consultation_backend/platform/sanitize"
)

// NewConsultation carries the caller supplied fields of a new request.
type NewConsultation struct {
	ClientID      string
	Title         string
	Description   string
	ExpertID      string
	IsOpenRequest bool
	IsPublicable  bool
}

// Draft is a validated, not yet persisted consultation.
type Draft struct {
	Consultation Consultation
	// Notices are owed once the insert commits; the consultation id is
	// not known until then.
	Notices []Notice
}

// SanitizedContent returns the cleaned title and description, or a
// validation error when either is empty afterwards.
func SanitizedContent(title, description string) (string, string, error) {
	t := sanitize.Line(title)
	d := sanitize.Text(description)
	if t == "" {
		return "", "", apperr.Validation("title is required")
	}
	if d == "" {
		return "", "", apperr.Validation("description is required")
	}
	return t, d, nil
}

// Create validates a new request and builds its Pending record. The title
// and description must already be sanitized, category and isFree decided.
func Create(in NewConsultation, category string, isFree bool, now time.Time) (Draft, error) {
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return Draft{}, apperr.Validation("client id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return Draft{}, apperr.Validation("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return Draft{}, apperr.Validation("description is required")
	}

	var expertID *string
	if e := strings.TrimSpace(in.ExpertID); e != "" && !in.IsOpenRequest {
		if e == clientID {
			return Draft{}, apperr.Validation("a consultation cannot be requested from yourself")
		}
		expertID = &e
	}

	c := Consultation{
		ClientID:      clientID,
		ExpertID:      expertID,
		Title:         in.Title,
		Description:   in.Description,
		Category:      category,
		IsFree:        isFree,
		IsOpenRequest: expertID == nil,
		IsPublicable:  in.IsPublicable,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var notices []Notice
	if expertID != nil {
		notices = append(notices, Notice{
			Type:         NotificationConsultationRequest,
			RecipientID:  *expertID,
			ActorID:      clientID,
			FallbackName: FallbackUserName,
			Title:        c.Title,
		})
	}
	return Draft{Consultation: c, Notices: notices}, nil
}

// Accept assigns expertID to a Pending request.
func Accept(c Consultation, expertID string) (Outcome, error) {
	expertID = strings.TrimSpace(expertID)
	if expertID == "" {
		return Outcome{}, apperr.Validation("expert id is required")
	}
	if expertID == c.ClientID {
		return Outcome{}, apperr.Forbidden("a client cannot accept their own consultation")
	}
	if c.ExpertID != nil && !c.IsOpenRequest && *c.ExpertID != expertID {
		return Outcome{}, apperr.Forbidden("consultation was requested from another expert")
	}
	if c.Status != StatusPending {
		return Outcome{}, invalidFrom(c.Status, "accepted")
	}

	next := c.clone()
	next.ExpertID = &expertID
	next.Status = StatusAccepted
	return Outcome{
		Next:  next,
		From:  c.Status,
		Event: EventAccepted,
		Notices: []Notice{{
			Type:         NotificationConsultationAccepted,
			RecipientID:  c.ClientID,
			ActorID:      expertID,
			FallbackName: FallbackExpertName,
			Title:        c.Title,
		}},
	}, nil
}

// Complete closes an Accepted or InProgress consultation.
func Complete(c Consultation, now time.Time) (Outcome, error) {
	if c.Status != StatusAccepted && c.Status != StatusInProgress {
		return Outcome{}, invalidFrom(c.Status, "completed")
	}

	next := c.clone()
	next.Status = StatusCompleted
	completedAt := now
	next.CompletedAt = &completedAt
	return Outcome{
		Next:              next,
		From:              c.Status,
		Event:             EventCompleted,
		ConsumesFreeQuota: c.IsFree,
	}, nil
}

// Cancel moves any non-terminal consultation to Cancelled. When an expert
// had taken the request and no price was on the table yet, the client is
// told the expert declined.
func Cancel(c Consultation) (Outcome, error) {
	if c.Status.IsTerminal() {
		return Outcome{}, invalidFrom(c.Status, "cancelled")
	}

	next := c.clone()
	next.Status = StatusCancelled
	out := Outcome{Next: next, From: c.Status, Event: EventCancelled}

	if c.ExpertID != nil && (c.Status == StatusPending || c.Status == StatusAccepted) {
		out.Event = EventDeclined
		out.Notices = []Notice{{
			Type:         NotificationConsultationDeclined,
			RecipientID:  c.ClientID,
			ActorID:      *c.ExpertID,
			FallbackName: FallbackExpertName,
			Title:        c.Title,
		}}
	}
	return out, nil
}

// SetPrice lets the assigned expert quote a paid consultation.
func SetPrice(c Consultation, expertID string, amountCents int64) (Outcome, error) {
	if amountCents <= 0 {
		return Outcome{}, apperr.Validation("price must be greater than zero")
	}
	if c.ExpertID == nil || *c.ExpertID != strings.TrimSpace(expertID) {
		return Outcome{}, apperr.Forbidden("only the assigned expert can set the price")
	}
	if c.IsFree {
		return Outcome{}, apperr.InvalidTransition("price cannot be set on a free consultation")
	}
	if c.Status != StatusAccepted {
		return Outcome{}, apperr.InvalidTransition("price can only be set on an accepted consultation")
	}

	next := c.clone()
	price := amountCents
	next.PriceCents = &price
	next.Status = StatusAwaitingPayment
	return Outcome{
		Next:  next,
		From:  c.Status,
		Event: EventPriceSet,
		Notices: []Notice{{
			Type:         NotificationPriceSet,
			RecipientID:  c.ClientID,
			ActorID:      *c.ExpertID,
			FallbackName: FallbackExpertName,
			Title:        c.Title,
			PriceCents:   &price,
		}},
	}, nil
}

// AcceptPrice records the client's payment of the quoted price.
func AcceptPrice(c Consultation, clientID string) (Outcome, error) {
	if strings.TrimSpace(clientID) != c.ClientID {
		return Outcome{}, apperr.Forbidden("only the client can accept the price")
	}
	if c.Status != StatusAwaitingPayment {
		return Outcome{}, apperr.InvalidTransition("no price is awaiting payment")
	}
	if c.PriceCents == nil || c.ExpertID == nil {
		return Outcome{}, apperr.InvalidTransition("consultation has no quoted price")
	}

	next := c.clone()
	next.IsPaid = true
	next.Status = StatusInProgress
	return Outcome{
		Next:  next,
		From:  c.Status,
		Event: EventPriceAccepted,
		Notices: []Notice{{
			Type:         NotificationPaymentReceived,
			RecipientID:  *c.ExpertID,
			ActorID:      c.ClientID,
			FallbackName: FallbackClientName,
			Title:        c.Title,
			PriceCents:   c.PriceCents,
		}},
	}, nil
}

// RejectPrice sends the consultation back to the open pool.
func RejectPrice(c Consultation, clientID string) (Outcome, error) {
	if strings.TrimSpace(clientID) != c.ClientID {
		return Outcome{}, apperr.Forbidden("only the client can reject the price")
	}
	if c.Status != StatusAwaitingPayment {
		return Outcome{}, apperr.InvalidTransition("no price is awaiting payment")
	}

	previousExpert := c.AssignedExpert()
	next := c.clone()
	next.ExpertID = nil
	next.PriceCents = nil
	next.IsPaid = false
	next.IsOpenRequest = true
	next.Status = StatusPending

	out := Outcome{Next: next, From: c.Status, Event: EventPriceRejected}
	if previousExpert != "" {
		out.Notices = []Notice{{
			Type:         NotificationPriceRejected,
			RecipientID:  previousExpert,
			ActorID:      c.ClientID,
			FallbackName: FallbackClientName,
			Title:        c.Title,
			PriceCents:   c.PriceCents,
		}}
	}
	return out, nil
}

// UpdateCategory overwrites the category. The category must already be
// canonical; membership in the category set is checked by the caller.
func UpdateCategory(c Consultation, clientID, category string) (Outcome, error) {
	if strings.TrimSpace(category) == "" {
		return Outcome{}, apperr.Validation("category is required")
	}
	if strings.TrimSpace(clientID) != c.ClientID {
		return Outcome{}, apperr.Forbidden("only the client can change the category")
	}
	if c.Status.IsTerminal() {
		return Outcome{}, invalidFrom(c.Status, "edited")
	}

	next := c.clone()
	next.Category = category
	return Outcome{Next: next, From: c.Status, Event: EventCategoryUpdated}, nil
}

// CheckDelete allows the client to delete a consultation that has no
// payment in flight.
func CheckDelete(c Consultation, clientID string) error {
	if strings.TrimSpace(clientID) != c.ClientID {
		return apperr.Forbidden("only the client can delete the consultation")
	}
	if c.Status == StatusAwaitingPayment || c.Status == StatusInProgress {
		return apperr.InvalidTransition("consultation with a payment in progress cannot be deleted")
	}
	return nil
}

func invalidFrom(status Status, action string) *apperr.Error {
	return apperr.InvalidTransition("consultation in status " + string(status) + " cannot be " + action).
		WithDetails(map[string]string{"status": string(status)})
}
