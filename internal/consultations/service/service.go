// Package service runs the consultation lifecycle: it loads a record, applies
// a domain transition, commits it under optimistic concurrency and then fires
// the transition's side effects.
package service

import (
	"context"
	"strings"
	"time"

	"consultation_backend/internal/classifier"
	"consultation_backend/internal/consultations/domain"
	"consultation_backend/internal/events"
	"consultation_backend/internal/metrics"
	"consultation_backend/platform/apperr"
	"consultation_backend/platform/logger"
)

// Operation names used in logs, metrics and transition events.
const (
	OpCreate         = "create"
	OpAccept         = "accept"
	OpComplete       = "complete"
	OpCancel         = "cancel"
	OpSetPrice       = "set_price"
	OpAcceptPrice    = "accept_price"
	OpRejectPrice    = "reject_price"
	OpUpdateCategory = "update_category"
	OpDelete         = "delete"
)

// CreateParams are the caller supplied fields of a new consultation.
type CreateParams struct {
	ClientID      string
	Title         string
	Description   string
	RequestedFree bool
	ExpertID      string
	IsOpenRequest bool
	IsPublicable  bool
}

// Service is the consultation lifecycle engine.
type Service struct {
	store      Store
	notifier   Notifier
	directory  Directory
	classifier Classifier
	eventBus   events.Bus
	log        *logger.Logger
	policy     QuotaPolicy
	now        func() time.Time
}

// New creates the lifecycle engine. notifier, directory, classifier and
// eventBus may be nil; the matching side effects are then skipped.
func New(store Store, notifier Notifier, directory Directory, cls Classifier, eventBus events.Bus, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		store:      store,
		notifier:   notifier,
		directory:  directory,
		classifier: cls,
		eventBus:   eventBus,
		log:        log,
		policy:     QuotaAdvisory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetQuotaPolicy changes how repeated free requests are treated.
func (s *Service) SetQuotaPolicy(p QuotaPolicy) {
	s.policy = p
}

// =============================================================================
// Lifecycle operations
// =============================================================================

// Create stores a new Pending consultation and returns its id.
func (s *Service) Create(ctx context.Context, p CreateParams) (int64, error) {
	if strings.TrimSpace(p.ClientID) == "" {
		return 0, s.fail(OpCreate, apperr.Validation("client id is required"))
	}
	title, description, err := domain.SanitizedContent(p.Title, p.Description)
	if err != nil {
		return 0, s.fail(OpCreate, err)
	}

	isFree := s.decideFree(ctx, p.ClientID, p.RequestedFree)
	category := s.classify(ctx, title, description)

	draft, err := domain.Create(domain.NewConsultation{
		ClientID:      p.ClientID,
		Title:         title,
		Description:   description,
		ExpertID:      p.ExpertID,
		IsOpenRequest: p.IsOpenRequest,
		IsPublicable:  p.IsPublicable,
	}, category, isFree, s.now())
	if err != nil {
		return 0, s.fail(OpCreate, err)
	}

	saved, err := s.store.Insert(ctx, draft.Consultation)
	if err != nil {
		return 0, s.fail(OpCreate, err)
	}

	s.committed(ctx, OpCreate, domain.Outcome{
		Next:    saved,
		Event:   domain.EventCreated,
		Notices: draft.Notices,
	}, saved)
	return saved.ID, nil
}

// Accept assigns expertID to a Pending consultation.
func (s *Service) Accept(ctx context.Context, id int64, expertID string) error {
	return s.apply(ctx, OpAccept, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.Accept(c, expertID)
	})
}

// Complete closes an Accepted or InProgress consultation.
func (s *Service) Complete(ctx context.Context, id int64) error {
	return s.apply(ctx, OpComplete, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.Complete(c, s.now())
	})
}

// CompleteAs is Complete restricted to the consultation's participants.
func (s *Service) CompleteAs(ctx context.Context, id int64, userID string) error {
	return s.apply(ctx, OpComplete, id, func(c domain.Consultation) (domain.Outcome, error) {
		if !c.IsParticipant(userID) {
			return domain.Outcome{}, apperr.Forbidden("only participants can complete the consultation")
		}
		return domain.Complete(c, s.now())
	})
}

// Cancel moves a non-terminal consultation to Cancelled.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.apply(ctx, OpCancel, id, domain.Cancel)
}

// CancelAs is Cancel restricted to the consultation's participants.
func (s *Service) CancelAs(ctx context.Context, id int64, userID string) error {
	return s.apply(ctx, OpCancel, id, func(c domain.Consultation) (domain.Outcome, error) {
		if !c.IsParticipant(userID) {
			return domain.Outcome{}, apperr.Forbidden("only participants can cancel the consultation")
		}
		return domain.Cancel(c)
	})
}

// SetPrice quotes amountCents for a paid consultation.
func (s *Service) SetPrice(ctx context.Context, id int64, expertID string, amountCents int64) error {
	return s.apply(ctx, OpSetPrice, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.SetPrice(c, expertID, amountCents)
	})
}

// AcceptPrice records the client's payment.
func (s *Service) AcceptPrice(ctx context.Context, id int64, clientID string) error {
	return s.apply(ctx, OpAcceptPrice, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.AcceptPrice(c, clientID)
	})
}

// RejectPrice returns the consultation to the open pool.
func (s *Service) RejectPrice(ctx context.Context, id int64, clientID string) error {
	return s.apply(ctx, OpRejectPrice, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.RejectPrice(c, clientID)
	})
}

// UpdateCategory lets the client pick another category from the fixed set.
func (s *Service) UpdateCategory(ctx context.Context, id int64, clientID, category string) error {
	canonical, ok := classifier.Parse(category)
	if !ok {
		return s.fail(OpUpdateCategory, apperr.Validation("unknown category").
			WithDetails(map[string]interface{}{"allowed": classifier.Categories()}))
	}
	return s.apply(ctx, OpUpdateCategory, id, func(c domain.Consultation) (domain.Outcome, error) {
		return domain.UpdateCategory(c, clientID, canonical)
	})
}

// =============================================================================
// Reads and housekeeping
// =============================================================================

// Get returns one consultation.
func (s *Service) Get(ctx context.Context, id int64) (domain.Consultation, error) {
	return s.store.GetByID(ctx, id)
}

// GetForParticipant returns the consultation if userID may see it.
func (s *Service) GetForParticipant(ctx context.Context, id int64, userID string, isExpert bool) (domain.Consultation, error) {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Consultation{}, err
	}
	if !c.CanView(userID, isExpert) {
		return domain.Consultation{}, apperr.Forbidden("consultation is not visible to this user")
	}
	return c, nil
}

// ListForClient returns the client's consultations, newest first.
func (s *Service) ListForClient(ctx context.Context, clientID string, statuses []domain.Status, limit, offset int) ([]domain.Consultation, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, apperr.Validation("client id is required")
	}
	return s.store.Find(ctx, domain.Filter{ClientID: clientID, Statuses: statuses, Limit: limit, Offset: offset})
}

// ListForExpert returns the consultations assigned to expertID.
func (s *Service) ListForExpert(ctx context.Context, expertID string, statuses []domain.Status, limit, offset int) ([]domain.Consultation, error) {
	if strings.TrimSpace(expertID) == "" {
		return nil, apperr.Validation("expert id is required")
	}
	return s.store.Find(ctx, domain.Filter{ExpertID: expertID, Statuses: statuses, Limit: limit, Offset: offset})
}

// ListOpenRequests returns Pending open requests no expert has taken.
func (s *Service) ListOpenRequests(ctx context.Context, limit, offset int) ([]domain.Consultation, error) {
	return s.store.Find(ctx, domain.Filter{OpenOnly: true, Limit: limit, Offset: offset})
}

// Delete removes a consultation with its messages and feedback.
func (s *Service) Delete(ctx context.Context, id int64, clientID string) error {
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.fail(OpDelete, err)
	}
	if err := domain.CheckDelete(c, clientID); err != nil {
		return s.fail(OpDelete, err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.fail(OpDelete, err)
	}

	s.log.WithContext(ctx).Info("consultation deleted", "consultation_id", id)
	if s.eventBus != nil {
		err := s.eventBus.PublishSync(context.WithoutCancel(ctx), events.ConsultationDeleted{
			BaseEvent:      events.NewBaseEvent(),
			ConsultationID: id,
			ClientID:       c.ClientID,
		})
		if err != nil {
			s.sideEffectFailed(ctx, "event", OpDelete, err)
		}
	}
	return nil
}

// =============================================================================
// Internals
// =============================================================================

func (s *Service) apply(ctx context.Context, op string, id int64, transition func(domain.Consultation) (domain.Outcome, error)) error {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.fail(op, err)
	}

	out, err := transition(current)
	if err != nil {
		return s.fail(op, err)
	}

	saved, err := s.store.Update(ctx, out.Next)
	if err != nil {
		return s.fail(op, err)
	}

	s.committed(ctx, op, out, saved)
	return nil
}

// committed runs every post-commit side effect. None of them can fail the
// operation any more.
func (s *Service) committed(ctx context.Context, op string, out domain.Outcome, saved domain.Consultation) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithContext(ctx)

	log.Transition(op, saved.ID, string(out.From), string(saved.Status))
	metrics.RecordTransition(op, string(out.From), string(saved.Status))

	for _, n := range out.Notices {
		s.notify(ctx, op, saved.ID, n)
	}

	if out.ConsumesFreeQuota && s.directory != nil {
		if err := s.directory.SetConsumedFreeQuota(ctx, saved.ClientID); err != nil {
			s.sideEffectFailed(ctx, "quota", op, err)
		}
	}

	if s.eventBus != nil {
		err := s.eventBus.PublishSync(ctx, events.ConsultationTransitioned{
			BaseEvent:      events.NewBaseEvent(),
			ConsultationID: saved.ID,
			Operation:      op,
			Action:         out.Event,
			From:           string(out.From),
			To:             string(saved.Status),
			ClientID:       saved.ClientID,
			ExpertID:       saved.ExpertID,
			Category:       saved.Category,
			PriceCents:     saved.PriceCents,
			IsPaid:         saved.IsPaid,
			Version:        saved.Version,
		})
		if err != nil {
			s.sideEffectFailed(ctx, "event", op, err)
		}
	}
}

func (s *Service) notify(ctx context.Context, op string, consultationID int64, n domain.Notice) {
	if s.notifier == nil {
		return
	}
	message := n.Render(s.displayName(ctx, n.ActorID))
	if err := s.notifier.Create(ctx, n.RecipientID, string(n.Type), consultationID, message); err != nil {
		s.sideEffectFailed(ctx, "notification", op, err)
	}
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if s.directory == nil || userID == "" {
		return ""
	}
	name, err := s.directory.DisplayName(ctx, userID)
	if err != nil {
		s.log.WithContext(ctx).DependencyFailure("user_directory", "display_name", err)
		return ""
	}
	return name
}

// decideFree applies the quota policy. A directory failure counts as
// "not consumed".
func (s *Service) decideFree(ctx context.Context, clientID string, requestedFree bool) bool {
	if !requestedFree || s.directory == nil {
		return requestedFree
	}

	consumed, err := s.directory.HasConsumedFreeQuota(ctx, clientID)
	if err != nil {
		s.log.WithContext(ctx).DependencyFailure("user_directory", "has_consumed_free_quota", err)
		return requestedFree
	}
	if !consumed {
		return true
	}

	if s.policy == QuotaStrict {
		s.log.WithContext(ctx).Info("free quota already consumed, creating paid consultation", "client_id", clientID)
		return false
	}
	s.log.WithContext(ctx).Info("free quota already consumed, request stays free", "client_id", clientID)
	return true
}

func (s *Service) classify(ctx context.Context, title, description string) string {
	if s.classifier == nil {
		return classifier.CategoryOther
	}
	if category, ok := classifier.Parse(s.classifier.Classify(ctx, title, description)); ok {
		return category
	}
	return classifier.CategoryOther
}

// fail counts a failed operation. Untyped errors can only come from a
// collaborator and are reported as a dependency failure.
func (s *Service) fail(op string, err error) error {
	if apperr.GetKind(err) == apperr.KindUnknown {
		err = apperr.Dependency("consultation storage unavailable", err).WithOp("consultations.service." + op)
	}
	metrics.RecordOperationFailure(op, kindLabel(err))
	return err
}

func (s *Service) sideEffectFailed(ctx context.Context, effect, op string, err error) {
	metrics.RecordSideEffectFailure(effect)
	s.log.WithContext(ctx).DependencyFailure(effect, op, err)
}

func kindLabel(err error) string {
	switch apperr.GetKind(err) {
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindValidation:
		return "validation"
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindInvalidTransition:
		return "invalid_transition"
	case apperr.KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}
