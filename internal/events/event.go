// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"consultation_backend/platform/events"
	"consultation_backend/platform/logger"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates the process-local bus shared by every module.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Consultation Domain Events
// =============================================================================

// ConsultationTransitioned is published after a lifecycle operation commits.
// Action is the realtime event name (accepted, price_set, ...).
type ConsultationTransitioned struct {
	BaseEvent
	ConsultationID int64   `json:"consultationId"`
	Operation      string  `json:"operation"`
	Action         string  `json:"action"`
	From           string  `json:"from,omitempty"`
	To             string  `json:"to"`
	ClientID       string  `json:"clientId"`
	ExpertID       *string `json:"expertId,omitempty"`
	Category       string  `json:"category"`
	PriceCents     *int64  `json:"priceCents,omitempty"`
	IsPaid         bool    `json:"isPaid"`
	Version        int64   `json:"version"`
}

func (e ConsultationTransitioned) EventName() string { return "consultations.transitioned" }

// ConsultationDeleted is published after a consultation and its dependents
// are removed.
type ConsultationDeleted struct {
	BaseEvent
	ConsultationID int64  `json:"consultationId"`
	ClientID       string `json:"clientId"`
}

func (e ConsultationDeleted) EventName() string { return "consultations.deleted" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationCreated is published when an in-app notification is stored.
type NotificationCreated struct {
	BaseEvent
	NotificationID string    `json:"notificationId"`
	UserID         string    `json:"userId"`
	Type           string    `json:"type"`
	SubjectID      int64     `json:"subjectId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (e NotificationCreated) EventName() string { return "notifications.created" }
