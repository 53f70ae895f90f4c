package domain

import (
	"fmt"
	"time"
)

// Consultation is the engagement record between a client and an expert.
type Consultation struct {
	ID            int64
	ClientID      string
	ExpertID      *string
	Title         string
	Description   string
	Category      string
	IsFree        bool
	PriceCents    *int64
	IsPaid        bool
	IsOpenRequest bool
	IsPublicable  bool
	Status        Status
	Version       int64
	CreatedAt     time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// AssignedExpert returns the expert id or "" when none is assigned.
func (c Consultation) AssignedExpert() string {
	if c.ExpertID == nil {
		return ""
	}
	return *c.ExpertID
}

// IsParticipant reports whether userID is the client or the assigned expert.
func (c Consultation) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.ClientID || userID == c.AssignedExpert())
}

// CanView reports whether userID may read the record. Experts may also read
// open requests nobody has taken yet.
func (c Consultation) CanView(userID string, isExpert bool) bool {
	if c.IsParticipant(userID) {
		return true
	}
	return isExpert && c.Status == StatusPending && c.ExpertID == nil && c.IsOpenRequest
}

func (c Consultation) clone() Consultation {
	next := c
	if c.ExpertID != nil {
		v := *c.ExpertID
		next.ExpertID = &v
	}
	if c.PriceCents != nil {
		v := *c.PriceCents
		next.PriceCents = &v
	}
	if c.CompletedAt != nil {
		v := *c.CompletedAt
		next.CompletedAt = &v
	}
	return next
}

// NotificationType is the category of an in-app notification.
type NotificationType string

const (
	NotificationConsultationRequest  NotificationType = "ConsultationRequest"
	NotificationConsultationAccepted NotificationType = "ConsultationAccepted"
	NotificationConsultationDeclined NotificationType = "ConsultationDeclined"
	NotificationPriceSet             NotificationType = "PriceSet"
	NotificationPaymentReceived      NotificationType = "PaymentReceived"
	NotificationPriceRejected        NotificationType = "PriceRejected"
)

// Display name fallbacks used when the directory has no name for a party.
const (
	FallbackUserName   = "A user"
	FallbackExpertName = "An expert"
	FallbackClientName = "The client"
)

// Notice is a notification a committed transition owes to one party.
// ActorID names the party the message talks about.
type Notice struct {
	Type         NotificationType
	RecipientID  string
	ActorID      string
	FallbackName string
	Title        string
	PriceCents   *int64
}

// Render builds the notification text, substituting the fallback when the
// actor's display name is empty.
func (n Notice) Render(actorName string) string {
	if actorName == "" {
		actorName = n.FallbackName
	}
	switch n.Type {
	case NotificationConsultationRequest:
		return fmt.Sprintf("%s requested a consultation: %q", actorName, n.Title)
	case NotificationConsultationAccepted:
		return fmt.Sprintf("%s accepted your consultation %q", actorName, n.Title)
	case NotificationConsultationDeclined:
		return fmt.Sprintf("%s declined your consultation %q", actorName, n.Title)
	case NotificationPriceSet:
		return fmt.Sprintf("%s set a price of %s for %q", actorName, FormatCents(derefCents(n.PriceCents)), n.Title)
	case NotificationPaymentReceived:
		return fmt.Sprintf("%s accepted the price for %q", actorName, n.Title)
	case NotificationPriceRejected:
		return fmt.Sprintf("%s rejected your price for %q", actorName, n.Title)
	default:
		return fmt.Sprintf("%s updated %q", actorName, n.Title)
	}
}

// FormatCents renders an amount in cents as a decimal with two places.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

func derefCents(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// Realtime event names announced to a consultation room.
const (
	EventCreated         = "created"
	EventAccepted        = "accepted"
	EventDeclined        = "declined"
	EventCancelled       = "cancelled"
	EventCompleted       = "completed"
	EventPriceSet        = "price_set"
	EventPriceAccepted   = "price_accepted"
	EventPriceRejected   = "price_rejected"
	EventCategoryUpdated = "category_updated"
)

// Outcome is the result of a successful transition. Nothing in it has
// happened yet: the caller commits Next and only then fires the rest.
type Outcome struct {
	Next              Consultation
	From              Status
	Event             string
	Notices           []Notice
	ConsumesFreeQuota bool
}
