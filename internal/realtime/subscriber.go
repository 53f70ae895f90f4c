package realtime

import (
	"context"

	"consultation_backend/internal/consultations/domain"
	"consultation_backend/internal/events"
)

// RegisterHandlers subscribes the hub to committed transitions and new
// notifications.
func (h *Hub) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ConsultationTransitioned{}.EventName(), h)
	bus.Subscribe(events.ConsultationDeleted{}.EventName(), h)
	bus.Subscribe(events.NotificationCreated{}.EventName(), h)
}

// Handle routes bus events to rooms and user streams.
func (h *Hub) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ConsultationTransitioned:
		if members := roomMembers(e); members != nil {
			return h.BroadcastToMembers(ctx, e.ConsultationID, e.Action, transitionPayload(e), members)
		}
		return h.Broadcast(ctx, e.ConsultationID, e.Action, transitionPayload(e))
	case events.ConsultationDeleted:
		return h.CloseRoom(ctx, e.ConsultationID, EventDeleted, map[string]interface{}{"consultationId": e.ConsultationID})
	case events.NotificationCreated:
		return h.NotifyUser(ctx, e.UserID, EventNotification, e)
	default:
		return nil
	}
}

// roomMembers returns the users still allowed in the room after e, or nil
// while the record is an untaken open request any expert may watch.
func roomMembers(e events.ConsultationTransitioned) []string {
	if e.To == domain.StatusPending.String() && e.ExpertID == nil {
		return nil
	}
	members := []string{e.ClientID}
	if e.ExpertID != nil {
		members = append(members, *e.ExpertID)
	}
	return members
}

func transitionPayload(e events.ConsultationTransitioned) map[string]interface{} {
	payload := map[string]interface{}{
		"consultationId": e.ConsultationID,
		"status":         e.To,
		"category":       e.Category,
		"isPaid":         e.IsPaid,
		"version":        e.Version,
	}
	if e.From != "" {
		payload["previousStatus"] = e.From
	}
	if e.ExpertID != nil {
		payload["expertId"] = *e.ExpertID
	}
	if e.PriceCents != nil {
		payload["priceCents"] = *e.PriceCents
	}
	return payload
}
